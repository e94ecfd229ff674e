package db

import (
	"path/filepath"
	"testing"
)

func TestDefaultConnectionConfig(t *testing.T) {
	config := DefaultConnectionConfig("/tmp/x.db")
	if config.Path != "/tmp/x.db" || config.BusyTimeout != 5000 || config.MaxOpenConns != 1 || config.MaxIdleConns != 1 {
		t.Errorf("DefaultConnectionConfig() = %+v", config)
	}
}

func TestNewSQLiteConnection_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteConnection(ConnectionConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestNewSQLiteConnection_WAL(t *testing.T) {
	conn, err := NewSQLiteConnectionWithDefaults(filepath.Join(t.TempDir(), "wal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteConnectionWithDefaults() error = %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := conn.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatal(err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}
