package keypool

import (
	"sync"
	"time"
)

// CooldownState Key冷却状态存储
// 进程启动时构造一次并注入Pool；默认实现是进程内存，可替换为共享存储
type CooldownState interface {
	// Get 返回Key的恢复时间；无记录返回 false
	Get(key string) (time.Time, bool)
	// Set 记录Key在 until 之前不可用（覆盖旧值）
	Set(key string, until time.Time)
	// Clear 删除Key的冷却记录
	Clear(key string)
}

// MemoryState 进程内冷却状态
type MemoryState struct {
	mu    sync.RWMutex
	until map[string]time.Time
}

// NewMemoryState 创建内存冷却状态
func NewMemoryState() *MemoryState {
	return &MemoryState{until: make(map[string]time.Time)}
}

// Get 实现 CooldownState
func (m *MemoryState) Get(key string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.until[key]
	return t, ok
}

// Set 实现 CooldownState
func (m *MemoryState) Set(key string, until time.Time) {
	m.mu.Lock()
	m.until[key] = until
	m.mu.Unlock()
}

// Clear 实现 CooldownState
func (m *MemoryState) Clear(key string) {
	m.mu.Lock()
	delete(m.until, key)
	m.mu.Unlock()
}

// Len 当前冷却记录数（含已过期未清理的）
func (m *MemoryState) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.until)
}
