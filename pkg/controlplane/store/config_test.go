package store

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyDefaults_SQLitePath(t *testing.T) {
	t.Run("UsesXDGDataHome", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("XDG_DATA_HOME", tmpDir)

		cfg := &Config{Type: DatabaseTypeSQLite}
		cfg.ApplyDefaults()

		expected := filepath.Join(tmpDir, "rolesync", "rolesync.db")
		if cfg.SQLite.Path != expected {
			t.Errorf("SQLite.Path = %q, expected %q", cfg.SQLite.Path, expected)
		}
	})

	t.Run("FallbackWithoutXDG", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")

		cfg := &Config{Type: DatabaseTypeSQLite}
		cfg.ApplyDefaults()

		if filepath.Base(cfg.SQLite.Path) != "rolesync.db" {
			t.Errorf("SQLite.Path = %q, expected filename 'rolesync.db'", cfg.SQLite.Path)
		}
		if !strings.Contains(cfg.SQLite.Path, filepath.Join(".local", "share")) {
			t.Errorf("SQLite.Path = %q, expected it under .local/share", cfg.SQLite.Path)
		}
	})

	t.Run("ExplicitPathKept", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: "/tmp/x.db"}}
		cfg.ApplyDefaults()
		if cfg.SQLite.Path != "/tmp/x.db" {
			t.Errorf("SQLite.Path = %q, expected /tmp/x.db", cfg.SQLite.Path)
		}
	})
}

func TestApplyDefaults_Postgres(t *testing.T) {
	cfg := &Config{Type: DatabaseTypePostgres}
	cfg.ApplyDefaults()

	if cfg.Postgres.Port != 5432 {
		t.Errorf("Port = %d, expected 5432", cfg.Postgres.Port)
	}
	if cfg.Postgres.SSLMode != "disable" {
		t.Errorf("SSLMode = %q, expected disable", cfg.Postgres.SSLMode)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error without host")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "rolesync", SSLMode: "require"}
	want := "host=db port=5432 user=u password=p dbname=rolesync sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
