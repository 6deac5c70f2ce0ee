package sql_test

import (
	"path/filepath"
	"testing"

	"abroadPlan/internal/storage"
)

func newTestStore(t *testing.T, dbFile string) storage.Store {
	t.Helper()

	store, err := storage.CreateSQLiteStore(filepath.Join(t.TempDir(), dbFile))
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
