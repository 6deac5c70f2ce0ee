package sql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"abroadPlan/internal/model"
)

const (
	upsertCacheStandard = `
		INSERT INTO cache_entries(namespace, cache_key, payload, created_at, expires_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(namespace, cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`

	upsertCacheMySQL = `
		INSERT INTO cache_entries(namespace, cache_key, payload, created_at, expires_at)
		VALUES(?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload = VALUES(payload),
			created_at = VALUES(created_at),
			expires_at = VALUES(expires_at)`
)

// GetCacheEntry 读取缓存记录，不存在时返回 (nil, nil)
// 不判断过期，由调用方决定
func (s *SQLStore) GetCacheEntry(ctx context.Context, namespace, key string) (*model.CacheEntry, error) {
	var (
		payload              string
		createdMs, expiresMs int64
	)
	err := s.queryRow(ctx,
		"SELECT payload, created_at, expires_at FROM cache_entries WHERE namespace = ? AND cache_key = ?",
		namespace, key,
	).Scan(&payload, &createdMs, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &model.CacheEntry{
		Namespace: namespace,
		Key:       key,
		Payload:   []byte(payload),
		CreatedAt: model.JSONTime{Time: time.UnixMilli(createdMs)},
		ExpiresAt: model.JSONTime{Time: time.UnixMilli(expiresMs)},
	}, nil
}

// UpsertCacheEntry 写入或整体覆盖缓存记录（后写者胜）
func (s *SQLStore) UpsertCacheEntry(ctx context.Context, e *model.CacheEntry) error {
	query := upsertCacheStandard
	if s.dialect == DialectMySQL {
		query = upsertCacheMySQL
	}
	createdAt := e.CreatedAt.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.exec(ctx, query,
		e.Namespace, e.Key, string(e.Payload),
		createdAt.Round(0).UnixMilli(), e.ExpiresAt.Time.Round(0).UnixMilli())
	return err
}

// DeleteCacheEntry 删除单条缓存
func (s *SQLStore) DeleteCacheEntry(ctx context.Context, namespace, key string) error {
	_, err := s.exec(ctx, "DELETE FROM cache_entries WHERE namespace = ? AND cache_key = ?", namespace, key)
	return err
}

// DeleteCacheNamespace 清空命名空间；namespace 为空时清空全部
func (s *SQLStore) DeleteCacheNamespace(ctx context.Context, namespace string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if namespace == "" {
		res, err = s.exec(ctx, "DELETE FROM cache_entries")
	} else {
		res, err = s.exec(ctx, "DELETE FROM cache_entries WHERE namespace = ?", namespace)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredCacheEntries 删除 now 之前过期的记录
func (s *SQLStore) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM cache_entries WHERE expires_at <= ?", now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CacheStats 按命名空间统计条目数、已过期数与负载字节数
func (s *SQLStore) CacheStats(ctx context.Context, now time.Time) ([]model.NamespaceStats, error) {
	rows, err := s.query(ctx, `
		SELECT namespace,
			COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(LENGTH(payload)), 0)
		FROM cache_entries
		GROUP BY namespace
		ORDER BY namespace`, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.NamespaceStats, 0)
	for rows.Next() {
		var st model.NamespaceStats
		if err := rows.Scan(&st.Namespace, &st.Entries, &st.Expired, &st.Bytes); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
