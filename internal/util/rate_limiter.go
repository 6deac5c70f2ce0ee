package util

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LoginRateLimiter 管理员登录速率限制器（防暴力破解）
// 按IP计数，超过上限后锁定一段时间；后台协程定期清理过期记录
type LoginRateLimiter struct {
	attempts map[string]*attemptRecord
	mu       sync.Mutex

	maxAttempts     int
	lockoutDuration time.Duration
	resetInterval   time.Duration
	now             func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

type attemptRecord struct {
	count       int
	lastAttempt time.Time
	lockUntil   time.Time
}

// NewLoginRateLimiter 创建登录速率限制器（5次失败锁定15分钟，1小时无尝试后重置）
func NewLoginRateLimiter() *LoginRateLimiter {
	limiter := &LoginRateLimiter{
		attempts:        make(map[string]*attemptRecord),
		maxAttempts:     5,
		lockoutDuration: 15 * time.Minute,
		resetInterval:   1 * time.Hour,
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}

	go limiter.cleanupLoop()

	return limiter
}

// AllowAttempt 检查是否允许尝试登录并计数
func (rl *LoginRateLimiter) AllowAttempt(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	record, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = &attemptRecord{count: 1, lastAttempt: now}
		return true
	}

	if now.Before(record.lockUntil) {
		return false
	}

	if now.Sub(record.lastAttempt) > rl.resetInterval {
		record.count = 0
	}

	record.count++
	record.lastAttempt = now

	if record.count > rl.maxAttempts {
		record.lockUntil = now.Add(rl.lockoutDuration)
		return false
	}
	return true
}

// RecordSuccess 登录成功后清除该IP的记录
func (rl *LoginRateLimiter) RecordSuccess(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// GetLockoutTime 获取锁定剩余秒数（0=未锁定）
func (rl *LoginRateLimiter) GetLockoutTime(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, exists := rl.attempts[ip]
	if !exists {
		return 0
	}
	if remaining := record.lockUntil.Sub(rl.now()); remaining > 0 {
		return int(remaining.Seconds()) + 1
	}
	return 0
}

func (rl *LoginRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.resetInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *LoginRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, record := range rl.attempts {
		if now.Sub(record.lastAttempt) > rl.resetInterval && now.After(record.lockUntil) {
			delete(rl.attempts, ip)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("登录速率限制器：清理过期记录")
	}
}

// Stop 停止后台清理协程（可重复调用）
func (rl *LoginRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}
