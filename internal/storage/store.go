package storage

import (
	"context"
	"time"

	"abroadPlan/internal/model"
)

// CacheStore 持久化生成结果缓存
// GetCacheEntry 不判断过期，过期语义由 cache.Gate 负责
type CacheStore interface {
	GetCacheEntry(ctx context.Context, namespace, key string) (*model.CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, e *model.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, namespace, key string) error
	DeleteCacheNamespace(ctx context.Context, namespace string) (int64, error)
	DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error)
	CacheStats(ctx context.Context, now time.Time) ([]model.NamespaceStats, error)
}

// LogStore 上游调用日志
type LogStore interface {
	BatchAddProviderLogs(ctx context.Context, logs []*model.ProviderLog) error
	ListProviderLogs(ctx context.Context, since time.Time, limit, offset int, filter *model.ProviderLogFilter) ([]*model.ProviderLog, error)
	CleanupProviderLogsBefore(ctx context.Context, cutoff time.Time) error
}

// Store 存储接口（组合）
type Store interface {
	CacheStore
	LogStore

	Dialect() string
	Ping(ctx context.Context) error
	Close() error
}
