package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		errorContains string
		errorIs       error
	}{
		{
			name: "orders migrations by numeric version",
			files: map[string]string{
				"migrations/010_add_activity_index.sql": "CREATE INDEX idx_a ON activities(user_id);",
				"migrations/001_initial_schema.sql":     "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"migrations/002_add_sessions.sql":       "CREATE TABLE sessions (id TEXT PRIMARY KEY);",
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "ignores non-SQL files",
			files: map[string]string{
				"migrations/001_initial_schema.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"migrations/README.md":              "# notes",
			},
			expectedOrder: []string{"001"},
		},
		{
			name: "rejects invalid filename",
			files: map[string]string{
				"migrations/initial.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
			},
			errorContains: "does not match pattern",
			errorIs:       ErrInvalidMigrationFile,
		},
		{
			name: "rejects duplicate versions",
			files: map[string]string{
				"migrations/001_initial_schema.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"migrations/1_duplicate.sql":        "CREATE TABLE rules (id TEXT PRIMARY KEY);",
			},
			errorIs: ErrDuplicateVersion,
		},
		{
			name: "rejects empty file",
			files: map[string]string{
				"migrations/001_initial_schema.sql": "  \n\t",
			},
			errorContains: "migration file is empty",
		},
		{
			name: "rejects comment-only file",
			files: map[string]string{
				"migrations/001_initial_schema.sql": "-- nothing here\n-- still nothing",
			},
			errorContains: "no SQL statements found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := fstest.MapFS{}
			for name, content := range tt.files {
				files[name] = &fstest.MapFile{Data: []byte(content)}
			}

			migrations, err := NewFileScanner(files).ScanMigrations("migrations")
			if tt.errorContains != "" || tt.errorIs != nil {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errorContains, err)
				}
				if tt.errorIs != nil && !errors.Is(err, tt.errorIs) {
					t.Fatalf("expected error wrapping %v, got %v", tt.errorIs, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("expected checksum for version %s", version)
				}
			}
		})
	}
}

func TestFileScanner_Description(t *testing.T) {
	files := fstest.MapFS{
		"m/001_initial_schema.sql": &fstest.MapFile{Data: []byte("-- Description: Core booking tables\nCREATE TABLE users (id TEXT);")},
		"m/002_add_feedback.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE feedback (id TEXT);")},
	}
	migrations, err := NewFileScanner(files).ScanMigrations("m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if migrations[0].Description != "Core booking tables" {
		t.Fatalf("unexpected description %q", migrations[0].Description)
	}
	if migrations[1].Description != "add feedback" {
		t.Fatalf("unexpected fallback description %q", migrations[1].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- leading comment
CREATE TABLE a (id TEXT);
-- between
CREATE INDEX idx_a ON a(id);
`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Fatalf("unexpected statement %q", statements[1])
	}
}
