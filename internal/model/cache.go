package model

import "time"

// CacheEntry 一条缓存记录
// (Namespace, Key) 唯一；过期即视为不存在
type CacheEntry struct {
	Namespace string   `json:"namespace"`
	Key       string   `json:"key"`
	Payload   []byte   `json:"-"`
	CreatedAt JSONTime `json:"created_at"`
	ExpiresAt JSONTime `json:"expires_at"`
}

// Expired 到达过期时间即过期
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt.Time)
}

// NamespaceStats 单个命名空间的缓存统计
type NamespaceStats struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Expired   int    `json:"expired"`
	Bytes     int64  `json:"bytes"`
}
