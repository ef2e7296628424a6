package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"planningpoker/internal/kv"
)

func openTestDB(t *testing.T) *PostgresKV {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := strings.TrimSpace(os.Getenv("POKER_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("POKER_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, testMigrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// A second pass must be a no-op.
	if err := ApplyMigrations(ctx, db, testMigrationsDir); err != nil {
		t.Fatalf("reapply migrations: %v", err)
	}
	return NewPostgresKV(db)
}

func TestPostgresKVValues(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "session:x"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Set(ctx, "session:x", []byte(`{"id":"x"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "session:x", []byte(`{"id":"x","name":"n"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := store.Get(ctx, "session:x")
	if err != nil || string(got) != `{"id":"x","name":"n"}` {
		t.Fatalf("Get = %s, %v", got, err)
	}
	if err := store.Del(ctx, "session:x"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := store.Del(ctx, "session:x"); err != nil {
		t.Fatalf("second Del: %v", err)
	}
	if _, err := store.Get(ctx, "session:x"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPostgresKVSets(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c", "a"} {
		if err := store.AddToSet(ctx, "active_sessions", id); err != nil {
			t.Fatalf("AddToSet: %v", err)
		}
	}
	members, err := store.ListSet(ctx, "active_sessions")
	if err != nil || strings.Join(members, ",") != "a,b,c" {
		t.Fatalf("ListSet = %v, %v", members, err)
	}

	if err := store.RemoveFromSet(ctx, "active_sessions", "a", "c"); err != nil {
		t.Fatalf("RemoveFromSet: %v", err)
	}
	members, _ = store.ListSet(ctx, "active_sessions")
	if strings.Join(members, ",") != "b" {
		t.Fatalf("members after remove = %v", members)
	}
}

func TestPostgresKVReportsMissingSchema(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	if _, err := store.db.ExecContext(ctx, `DROP TABLE kv_entries`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, err := store.Get(ctx, "session:x"); !errors.Is(err, ErrSchemaMissing) {
		t.Fatalf("expected ErrSchemaMissing, got %v", err)
	}
}
