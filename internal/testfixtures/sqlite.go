package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/mentorbook/internal/adapters"
	"github.com/example/mentorbook/internal/persistence/memory"
	"github.com/example/mentorbook/internal/persistence/sqlite"
	"github.com/example/mentorbook/internal/persistence/sqlite/migration"
)

// NewSQLiteRepositories opens a migrated SQLite store in a temporary
// directory. The store is closed when the test finishes.
func NewSQLiteRepositories(tb testing.TB) adapters.Repositories {
	tb.Helper()

	config := migration.TempFileTestSQLiteConfig(filepath.Join(tb.TempDir(), "mentorbook.db"))
	store, err := sqlite.Open(sqlite.Options{SQLite: &config, StoreTimeout: 5 * time.Second})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return adapters.FromSQLite(store)
}

// NewMemoryRepositories returns repositories over a fresh in-memory store.
func NewMemoryRepositories(testing.TB) adapters.Repositories {
	return adapters.FromMemory(memory.New())
}

// Backends lists every persistence backend a scenario should run against.
func Backends() map[string]func(testing.TB) adapters.Repositories {
	return map[string]func(testing.TB) adapters.Repositories{
		"memory": NewMemoryRepositories,
		"sqlite": NewSQLiteRepositories,
	}
}

// MustStack builds a Stack over repos or fails the test.
func (f *ServiceFactory) MustStack(tb testing.TB, repos adapters.Repositories, opts StackOptions) *Stack {
	tb.Helper()
	stack, err := f.NewStack(repos, opts)
	if err != nil {
		tb.Fatalf("failed to build stack: %v", err)
	}
	return stack
}
