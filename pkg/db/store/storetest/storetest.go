// Package storetest opens migrated in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/mwantia/promptgallery/pkg/db/store"
)

// New returns a connected and migrated store backed by a private
// in-memory database. The store is closed when the test finishes.
func New(tb testing.TB) *store.SQLiteStore {
	tb.Helper()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: ":memory:"})
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		tb.Fatalf("failed to connect store: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		tb.Fatalf("failed to migrate store: %v", err)
	}

	tb.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
