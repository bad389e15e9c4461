package db

import (
	"context"
	"testing"
)

func TestOpen_AppliesAllMigrations(t *testing.T) {
	d, err := Open("file:dbopen?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	v, err := Version(d)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 3 {
		t.Fatalf("expected version 3, got %d", v)
	}
	for _, table := range []string{"users", "reports"} {
		var name string
		if err := d.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
	if err := Ping(context.Background(), d); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	d, err := Open("file:dbidem?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	applied, err := Migrate(d)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing applied, got %v", applied)
	}
}

func TestRollbackLast_ThenReapply(t *testing.T) {
	d, err := Open("file:dbrollback?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	v, err := RollbackLast(d)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if v != 3 {
		t.Fatalf("expected to roll back version 3, got %d", v)
	}
	if cur, _ := Version(d); cur != 2 {
		t.Fatalf("expected version 2 after rollback, got %d", cur)
	}
	if _, err := d.Exec(`SELECT reset_token_hash FROM users`); err == nil {
		t.Fatalf("column should be gone after rollback")
	}

	applied, err := Migrate(d)
	if err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	if len(applied) != 1 || applied[0] != 3 {
		t.Fatalf("expected [3] re-applied, got %v", applied)
	}
}

func TestRollbackLast_NilDB(t *testing.T) {
	if _, err := RollbackLast(nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}
