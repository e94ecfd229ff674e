package db

import (
	"context"
	"path/filepath"
	"testing"
)

func tableExists(t *testing.T, d *Database, name string) bool {
	t.Helper()
	row, err := d.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestOpen_AppliesMigrations(t *testing.T) {
	database := openTestDB(t)

	if !tableExists(t, database, "generations") {
		t.Fatal("generations table missing after Open")
	}

	version, dirty, err := MigrationVersion(database.Path())
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("version = %d dirty = %v, want 2 clean", version, dirty)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	for i := 0; i < 2; i++ {
		if err := MigrateUp(path); err != nil {
			t.Fatalf("MigrateUp() #%d error = %v", i+1, err)
		}
	}
}

func TestMigrate_DownAndUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := MigrateUp(path); err != nil {
		t.Fatal(err)
	}

	if err := MigrateDown(path, 1); err != nil {
		t.Fatalf("MigrateDown(1) error = %v", err)
	}
	if v, _, _ := MigrationVersion(path); v != 1 {
		t.Errorf("version after one step down = %d, want 1", v)
	}

	if err := MigrateDown(path, -1); err != nil {
		t.Fatalf("MigrateDown(-1) error = %v", err)
	}
	if v, _, _ := MigrationVersion(path); v != 0 {
		t.Errorf("version after full rollback = %d, want 0", v)
	}

	if err := MigrateUp(path); err != nil {
		t.Fatalf("MigrateUp() after rollback error = %v", err)
	}
}

func TestMigrationVersion_FreshDatabase(t *testing.T) {
	v, dirty, err := MigrationVersion(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil || v != 0 || dirty {
		t.Errorf("MigrationVersion() = %d, %v, %v", v, dirty, err)
	}
}
