package testutil

import (
	"path/filepath"
	"testing"

	"abroadPlan/internal/storage"
)

// SetupTestStore 创建临时目录下的 SQLite 存储，测试结束自动关闭
func SetupTestStore(t testing.TB) storage.Store {
	t.Helper()

	store, err := storage.CreateSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("创建测试数据库失败: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("关闭测试数据库失败: %v", err)
		}
	})
	return store
}
