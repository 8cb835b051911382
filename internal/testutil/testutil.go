// Package testutil holds the fakes, fixtures and helpers shared by the
// contact bot's package tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/quantumlife/contactbot/internal/storage"
)

// DefaultTimeout bounds every TestContext
const DefaultTimeout = 30 * time.Second

// TestDB opens a migrated in-memory database closed at test end
func TestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenMigrated(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContext is cancelled after DefaultTimeout or at test end
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	t.Cleanup(cancel)
	return ctx
}

// RequireEnv skips the test unless key is set
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		t.Skipf("skipping: %s not set", key)
	}
	return v
}

// AssertNoError stops the test on err
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertEqual reports got != want without stopping the test
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
