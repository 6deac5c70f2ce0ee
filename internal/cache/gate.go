// Package cache 生成结果的持久化缓存闸门
// 读：过期即视为不存在；写：整条覆盖，失败只记日志
package cache

import (
	"context"
	"strings"
	"time"

	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/model"
	"abroadPlan/internal/storage"
	"abroadPlan/internal/util"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// EntryKey 缓存记录的复合键
type EntryKey struct {
	Namespace string
	Key       string
}

func (k EntryKey) String() string {
	return k.Namespace + "/" + k.Key
}

// Key 构造复合键：各部分去空白、转小写后以 "|" 连接
func Key(namespace string, parts ...string) EntryKey {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = util.NormalizeKeyPart(p)
	}
	return EntryKey{Namespace: namespace, Key: strings.Join(normalized, "|")}
}

// Gate 缓存闸门
type Gate struct {
	store storage.CacheStore
	now   func() time.Time
	group singleflight.Group
}

// Option Gate 选项
type Option func(*Gate)

// WithClock 注入时钟（测试使用）
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New 创建缓存闸门
func New(store storage.CacheStore, opts ...Option) *Gate {
	g := &Gate{store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Get 读取未过期的记录
// 过期记录视为不存在，并尽力删除（删除失败只记日志）；重复调用结果一致
func (g *Gate) Get(ctx context.Context, k EntryKey) (*model.CacheEntry, bool, error) {
	entry, err := g.store.GetCacheEntry(ctx, k.Namespace, k.Key)
	if err != nil {
		return nil, false, apperrors.DBQueryError("get cache entry", err).
			WithContext("namespace", k.Namespace).
			WithContext("key", k.Key)
	}
	if entry == nil {
		return nil, false, nil
	}
	if entry.Expired(g.now()) {
		if err := g.store.DeleteCacheEntry(ctx, k.Namespace, k.Key); err != nil {
			log.Warn().Err(err).Str("namespace", k.Namespace).Str("key", k.Key).Msg("[WARN] 删除过期缓存失败")
		}
		return nil, false, nil
	}
	return entry, true, nil
}

// Put 写入（覆盖）一条记录
func (g *Gate) Put(ctx context.Context, k EntryKey, payload []byte, ttl time.Duration) error {
	now := g.now()
	err := g.store.UpsertCacheEntry(ctx, &model.CacheEntry{
		Namespace: k.Namespace,
		Key:       k.Key,
		Payload:   payload,
		CreatedAt: model.JSONTime{Time: now},
		ExpiresAt: model.JSONTime{Time: now.Add(ttl)},
	})
	if err != nil {
		return apperrors.PersistenceWrite(k.Namespace, k.Key, err)
	}
	return nil
}

// Invalidate 删除一条记录
func (g *Gate) Invalidate(ctx context.Context, k EntryKey) error {
	if err := g.store.DeleteCacheEntry(ctx, k.Namespace, k.Key); err != nil {
		return apperrors.DBQueryError("delete cache entry", err).
			WithContext("namespace", k.Namespace).
			WithContext("key", k.Key)
	}
	return nil
}

// Clear 清空命名空间（空字符串表示全部）
func (g *Gate) Clear(ctx context.Context, namespace string) (int64, error) {
	n, err := g.store.DeleteCacheNamespace(ctx, namespace)
	if err != nil {
		return 0, apperrors.DBQueryError("clear cache namespace", err)
	}
	return n, nil
}

// Stats 各命名空间统计
func (g *Gate) Stats(ctx context.Context) ([]model.NamespaceStats, error) {
	stats, err := g.store.CacheStats(ctx, g.now())
	if err != nil {
		return nil, apperrors.DBQueryError("cache stats", err)
	}
	return stats, nil
}

// PurgeExpired 删除全部已过期记录
func (g *Gate) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := g.store.DeleteExpiredCacheEntries(ctx, g.now())
	if err != nil {
		return 0, apperrors.DBQueryError("purge expired cache", err)
	}
	return n, nil
}

// RunCleanup 周期性清理过期记录，ctx 取消时返回
func (g *Gate) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := g.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("[WARN] 清理过期缓存失败")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("[INFO] 已清理过期缓存")
			}
		}
	}
}
