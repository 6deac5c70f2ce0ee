// Package dispatch 为单个下游API串行化调用：FIFO排队、相邻两次调用的开始时间至少间隔 minDelay
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrDispatcherClosed 调度器已关闭
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Task 排队执行的任务
type Task func(ctx context.Context) (any, error)

type result struct {
	value any
	err   error
}

type request struct {
	ctx  context.Context
	task Task
	done chan result // 容量1，每个请求只写一次
}

// Dispatcher 速率受限的串行调度器
// 队列 + 单个按需启动的drain协程；任务按提交顺序逐个执行，互不重叠
type Dispatcher struct {
	name    string
	limiter *rate.Limiter

	mu      sync.Mutex
	queue   []*request
	running bool
	closed  bool

	dispatched atomic.Uint64
	skipped    atomic.Uint64
}

// Stats 调度器运行统计
type Stats struct {
	Name       string        `json:"name"`
	MinDelay   time.Duration `json:"min_delay_ns"`
	Pending    int           `json:"pending"`
	Dispatched uint64        `json:"dispatched"`
	Skipped    uint64        `json:"skipped"`
}

// New 创建调度器；minDelay<=0 表示不限速
func New(name string, minDelay time.Duration) *Dispatcher {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	return &Dispatcher{
		name:    name,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name 调度器名称
func (d *Dispatcher) Name() string { return d.name }

// Do 提交任务并等待其结果
// 排队期间 ctx 结束则立即返回 ctx.Err()，任务轮到时被跳过
func (d *Dispatcher) Do(ctx context.Context, task Task) (any, error) {
	done, err := d.enqueue(ctx, task)
	if err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit Do 的泛型版本
func Submit[T any](ctx context.Context, d *Dispatcher, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := d.Do(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, task Task) (<-chan result, error) {
	req := &request{ctx: ctx, task: task, done: make(chan result, 1)}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDispatcherClosed
	}
	d.queue = append(d.queue, req)
	if !d.running {
		d.running = true
		go d.drain()
	}
	return req.done, nil
}

// drain 逐个取出队首任务执行，队列为空时退出（下次提交时重新启动）
func (d *Dispatcher) drain() {
	for {
		req := d.next()
		if req == nil {
			return
		}
		d.run(req)
	}
}

func (d *Dispatcher) next() *request {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		d.running = false
		return nil
	}
	req := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return req
}

func (d *Dispatcher) run(req *request) {
	if err := req.ctx.Err(); err != nil {
		d.skipped.Add(1)
		req.done <- result{err: err}
		return
	}

	// 等待距上一次开始满 minDelay；等待期间调用方放弃则归还令牌
	res := d.limiter.Reserve()
	if delay := res.Delay(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-req.ctx.Done():
			timer.Stop()
			res.Cancel()
			d.skipped.Add(1)
			req.done <- result{err: req.ctx.Err()}
			return
		}
	}

	d.dispatched.Add(1)
	value, err := d.execute(req)
	req.done <- result{value: value, err: err}
}

// execute 执行任务并兜住panic，保证每个请求都有结果
func (d *Dispatcher) execute(req *request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("dispatcher", d.name).Interface("panic", r).Msg("[ERROR] dispatched task panicked")
			err = errors.New("dispatched task panicked")
		}
	}()
	return req.task(req.ctx)
}

// Pending 排队中的任务数（不含正在执行的）
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Stats 运行统计快照
func (d *Dispatcher) Stats() Stats {
	var minDelay time.Duration
	if l := d.limiter.Limit(); l != rate.Inf && l > 0 {
		minDelay = time.Duration(float64(time.Second) / float64(l))
	}
	return Stats{
		Name:       d.name,
		MinDelay:   minDelay,
		Pending:    d.Pending(),
		Dispatched: d.dispatched.Load(),
		Skipped:    d.skipped.Load(),
	}
}

// Close 拒绝后续提交，并以 ErrDispatcherClosed 结束所有排队中的任务
// 正在执行的任务不受影响
func (d *Dispatcher) Close() {
	d.mu.Lock()
	pending := d.queue
	d.queue = nil
	d.closed = true
	d.mu.Unlock()

	for _, req := range pending {
		req.done <- result{err: ErrDispatcherClosed}
	}
}
