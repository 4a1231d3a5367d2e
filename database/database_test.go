package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), Migrations(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_AppliesEmbeddedMigrations(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"users", "sessions", "revoked_tokens", "password_reset_tokens"} {
		var n int
		err := db.Conn.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&n)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestNew_MigrationsRunOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	migrations := fstest.MapFS{
		"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"002_b.sql": {Data: []byte("ALTER TABLE a ADD COLUMN name TEXT;")},
	}

	db, err := New(path, migrations, nil)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	db.Close()

	// İkinci açılışta ALTER TABLE tekrar çalışsaydı hata verirdi.
	db, err = New(path, migrations, nil)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.Conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", n)
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "simple", in: "SELECT 1; SELECT 2;", want: 2},
		{name: "no trailing semicolon", in: "SELECT 1; SELECT 2", want: 2},
		{name: "semicolon in literal", in: "INSERT INTO t VALUES ('a;b'); SELECT 1;", want: 2},
		{name: "escaped quote", in: "INSERT INTO t VALUES ('it''s; fine');", want: 1},
		{name: "comment with apostrophe", in: "-- user'ın tablosu; yorum\nSELECT 1;", want: 1},
		{name: "empty", in: " ; ;\n", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitStatements(tt.in); len(got) != tt.want {
				t.Fatalf("expected %d statements, got %d (%q)", tt.want, len(got), got)
			}
		})
	}
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Conn.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	err := WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO kv (k) VALUES ('committed')")
		return err
	})
	if err != nil {
		t.Fatalf("commit path: %v", err)
	}

	boom := errors.New("boom")
	err = WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO kv (k) VALUES ('rolled-back')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to be returned, got %v", err)
	}

	var n int
	if err := db.Conn.QueryRow("SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the committed row, got %d rows", n)
	}
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Conn.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to be re-raised")
			}
		}()
		_ = WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO kv (k) VALUES ('x')"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var n int
	if err := db.Conn.QueryRow("SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected rollback after panic, got %d rows", n)
	}
}
