// Package keypool 管理单个上游API的多把密钥：轮询选择、限流冷却、冷却到期自动恢复
package keypool

import (
	"sync"
	"sync/atomic"
	"time"

	"abroadPlan/internal/config"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/util"

	"github.com/rs/zerolog/log"
)

// Credential 一次选择的结果
// CoolingUntil 非零表示所有Key都在冷却，返回的是最早恢复的那一把
type Credential struct {
	Index        int
	Key          string
	CoolingUntil time.Time
}

// Cooling 是否为冷却中的Key
func (c Credential) Cooling() bool {
	return !c.CoolingUntil.IsZero()
}

// KeyStats 单个Key的运行统计（Key已脱敏）
type KeyStats struct {
	Index        int        `json:"index"`
	MaskedKey    string     `json:"masked_key"`
	Fingerprint  string     `json:"fingerprint"`
	Selections   uint64     `json:"selections"`
	RateLimited  uint64     `json:"rate_limited"`
	Successes    uint64     `json:"successes"`
	CoolingUntil *time.Time `json:"cooling_until,omitempty"`
}

type keyCounters struct {
	selections  atomic.Uint64
	rateLimited atomic.Uint64
	successes   atomic.Uint64
}

// Pool 单个Provider的密钥池
// 密钥列表启动后不可变，只有冷却状态会变化
type Pool struct {
	name            string
	keys            []string
	index           map[string]int
	counters        []keyCounters
	state           CooldownState
	defaultCooldown time.Duration
	now             func() time.Time

	cursor atomic.Uint64
	mu     sync.Mutex // 串行化"检查过期→清除"，避免并发选择时重复清理
}

// Option Pool构造选项
type Option func(*Pool)

// WithState 注入冷却状态存储
func WithState(state CooldownState) Option {
	return func(p *Pool) { p.state = state }
}

// WithDefaultCooldown 429未携带重置时间时的冷却窗口
func WithDefaultCooldown(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.defaultCooldown = d
		}
	}
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New 创建密钥池；空列表视为配置错误
func New(name string, keys []string, opts ...Option) (*Pool, error) {
	if len(keys) == 0 {
		return nil, apperrors.MissingConfig(name + " API keys")
	}

	p := &Pool{
		name:            name,
		keys:            append([]string(nil), keys...),
		index:           make(map[string]int, len(keys)),
		counters:        make([]keyCounters, len(keys)),
		defaultCooldown: config.DefaultKeyCooldown,
		now:             time.Now,
	}
	for i, k := range p.keys {
		p.index[k] = i
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.state == nil {
		p.state = NewMemoryState()
	}
	return p, nil
}

// Name Provider名称
func (p *Pool) Name() string { return p.name }

// Size Key数量
func (p *Pool) Size() int { return len(p.keys) }

// SelectKey 从轮询游标开始选择第一把可用Key
// 过期的冷却记录在扫描时顺带清除；全部冷却时返回最早恢复的Key
func (p *Pool) SelectKey() Credential {
	n := len(p.keys)
	start := int((p.cursor.Add(1) - 1) % uint64(n))
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	earliest := -1
	var earliestUntil time.Time

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		key := p.keys[idx]

		until, cooling := p.state.Get(key)
		if cooling && !now.Before(until) {
			p.state.Clear(key)
			cooling = false
		}
		if !cooling {
			p.counters[idx].selections.Add(1)
			return Credential{Index: idx, Key: key}
		}

		if earliest < 0 || until.Before(earliestUntil) {
			earliest = idx
			earliestUntil = until
		}
	}

	p.counters[earliest].selections.Add(1)
	return Credential{Index: earliest, Key: p.keys[earliest], CoolingUntil: earliestUntil}
}

// ReportRateLimited 记录Key被限流；resumeAt 为零时使用默认冷却窗口
func (p *Pool) ReportRateLimited(key string, resumeAt time.Time) time.Time {
	idx, ok := p.index[key]
	if !ok {
		return time.Time{}
	}
	if resumeAt.IsZero() {
		resumeAt = p.now().Add(p.defaultCooldown)
	}
	p.state.Set(key, resumeAt)
	p.counters[idx].rateLimited.Add(1)

	log.Warn().
		Str("provider", p.name).
		Str("key", util.MaskAPIKey(key)).
		Time("resume_at", resumeAt).
		Msg("[COOLDOWN] key rate limited")
	return resumeAt
}

// ReportSuccess Key调用成功，清除冷却记录
func (p *Pool) ReportSuccess(key string) {
	idx, ok := p.index[key]
	if !ok {
		return
	}
	p.counters[idx].successes.Add(1)
	if _, cooling := p.state.Get(key); cooling {
		p.state.Clear(key)
	}
}

// Available 当前未冷却的Key数量
func (p *Pool) Available() int {
	now := p.now()
	n := 0
	for _, key := range p.keys {
		if until, cooling := p.state.Get(key); !cooling || !now.Before(until) {
			n++
		}
	}
	return n
}

// Stats 每个Key的统计快照（供管理接口展示）
func (p *Pool) Stats() []KeyStats {
	now := p.now()
	out := make([]KeyStats, len(p.keys))
	for i, key := range p.keys {
		s := KeyStats{
			Index:       i,
			MaskedKey:   util.MaskAPIKey(key),
			Fingerprint: util.KeyFingerprint(key),
			Selections:  p.counters[i].selections.Load(),
			RateLimited: p.counters[i].rateLimited.Load(),
			Successes:   p.counters[i].successes.Load(),
		}
		if until, cooling := p.state.Get(key); cooling && now.Before(until) {
			u := until
			s.CoolingUntil = &u
		}
		out[i] = s
	}
	return out
}
