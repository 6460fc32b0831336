package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// migrationManager implements the MigrationManager interface
type migrationManager struct {
	scanner      FileScanner
	executor     Executor
	migrationDir string
	logger       *zap.Logger
}

// NewMigrationManager creates a new MigrationManager. A nil logger discards output.
func NewMigrationManager(scanner FileScanner, executor Executor, migrationDir string, logger *zap.Logger) MigrationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &migrationManager{
		scanner:      scanner,
		executor:     executor,
		migrationDir: migrationDir,
		logger:       logger.With(zap.String("component", "migration")),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *migrationManager) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		m.logger.Error("failed to initialize schema_migrations table", zap.Error(err))
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.Error("failed to resolve pending migrations", zap.Error(err))
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		m.logger.Debug("database schema up to date")
		return nil
	}

	for i, migration := range pending {
		migrationStart := time.Now()
		logger := m.logger.With(
			zap.String("version", migration.Version),
			zap.String("description", migration.Description),
		)
		logger.Info("executing migration", zap.Int("position", i+1), zap.Int("total", len(pending)))

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.Error("migration failed", zap.Error(err))
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		executionTime := time.Since(migrationStart)
		if err := m.executor.RecordMigration(ctx, migration, executionTime); err != nil {
			logger.Error("failed to record migration", zap.Error(err))
			return NewMigrationError(migration.Version, migration.FilePath,
				"record migration", fmt.Errorf("failed to record migration: %w", err))
		}

		logger.Info("migration applied", zap.Duration("elapsed", executionTime))
	}

	m.logger.Info("migrations completed", zap.Int("applied", len(pending)), zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// GetPendingMigrations returns list of migrations that need to be applied
func (m *migrationManager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations(m.migrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateMigrationSequence(available, applied); err != nil {
		return nil, err
	}

	appliedMap := make(map[int]struct{}, len(applied))
	for _, record := range applied {
		appliedMap[versionNumber(record.Version)] = struct{}{}
	}

	var pending []Migration
	for _, migration := range available {
		if _, ok := appliedMap[versionNumber(migration.Version)]; ok {
			continue
		}
		pending = append(pending, migration)
	}
	return pending, nil
}

// GetMigrationStatus returns status information about migrations
func (m *migrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, err
	}

	currentVersion := ""
	maxVersion := -1
	for _, record := range applied {
		if v := versionNumber(record.Version); v > maxVersion {
			maxVersion = v
			currentVersion = record.Version
		}
	}

	return &MigrationStatus{
		CurrentVersion:    currentVersion,
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}, nil
}

// validateMigrationSequence rejects gaps in the available versions, applied
// versions without a file and applied files whose content changed.
func validateMigrationSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[versionNumber(migration.Version)] = migration
	}

	if len(available) > 0 {
		first := versionNumber(available[0].Version)
		last := versionNumber(available[len(available)-1].Version)
		for version := first; version <= last; version++ {
			if _, ok := byVersion[version]; !ok {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, version)
			}
		}
	}

	for _, record := range applied {
		migration, ok := byVersion[versionNumber(record.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, record.Version)
		}
		if record.Checksum != "" && migration.Checksum != "" && record.Checksum != migration.Checksum {
			return NewMigrationError(record.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
