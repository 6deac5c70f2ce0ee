package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const spacingSlack = 5 * time.Millisecond

func TestFIFOAndSpacing(t *testing.T) {
	const minDelay = 40 * time.Millisecond
	d := New("llm", minDelay)

	var (
		mu      sync.Mutex
		order   []int
		starts  []time.Time
		running atomic.Int32
		overlap atomic.Bool
	)

	chans := make([]<-chan result, 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		ch, err := d.enqueue(context.Background(), func(ctx context.Context) (any, error) {
			if running.Add(1) > 1 {
				overlap.Store(true)
			}
			defer running.Add(-1)

			mu.Lock()
			order = append(order, i)
			starts = append(starts, time.Now())
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)
			return i * 10, nil
		})
		if err != nil {
			t.Fatalf("enqueue() error = %v", err)
		}
		chans = append(chans, ch)
	}

	for i, ch := range chans {
		r := <-ch
		if r.err != nil {
			t.Fatalf("任务%d出错: %v", i, r.err)
		}
		if r.value.(int) != i*10 {
			t.Errorf("任务%d拿到了别人的结果: %v", i, r.value)
		}
	}

	if overlap.Load() {
		t.Fatal("任务执行存在重叠")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("执行顺序不是FIFO: %v", order)
		}
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < minDelay-spacingSlack {
			t.Errorf("第%d与第%d个任务间隔 %v < %v", i-1, i, gap, minDelay)
		}
	}
}

func TestSubmitGeneric(t *testing.T) {
	d := New("search", 0)
	got, err := Submit(context.Background(), d, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Submit() = %q, %v", got, err)
	}

	wantErr := errors.New("boom")
	_, err = Submit(context.Background(), d, func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("错误应原样返回, got %v", err)
	}
}

func TestCancelledWhileQueuedIsSkipped(t *testing.T) {
	d := New("llm", 0)
	release := make(chan struct{})
	started := make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := d.Do(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
		firstDone <- err
	}()
	<-started

	var ran atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	secondDone := make(chan error, 1)
	go func() {
		_, err := d.Do(ctx, func(ctx context.Context) (any, error) {
			ran.Store(true)
			return nil, nil
		})
		secondDone <- err
	}()

	waitFor(t, func() bool { return d.Pending() == 1 })
	cancel()

	if err := <-secondDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("排队中取消应返回 context.Canceled, got %v", err)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("第一个任务 error = %v", err)
	}

	// 再提交一个任务，确保被取消的任务已被drain跳过
	if _, err := d.Do(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Error("已取消的任务不应被执行")
	}
	if d.Stats().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", d.Stats().Skipped)
	}
}

func TestCancelledDuringSpacingWait(t *testing.T) {
	d := New("llm", time.Hour)

	if _, err := d.Do(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := d.Do(ctx, func(ctx context.Context) (any, error) { return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("期望 DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("等待间隔期间应响应取消")
	}
}

func TestPanicDoesNotStopQueue(t *testing.T) {
	d := New("llm", 0)
	_, err := d.Do(context.Background(), func(ctx context.Context) (any, error) {
		panic("bad task")
	})
	if err == nil {
		t.Fatal("panic应转为错误")
	}
	v, err := d.Do(context.Background(), func(ctx context.Context) (any, error) { return 7, nil })
	if err != nil || v.(int) != 7 {
		t.Fatalf("后续任务应正常执行: %v, %v", v, err)
	}
}

func TestClose(t *testing.T) {
	d := New("llm", 0)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = d.Do(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	queued := make(chan error, 1)
	go func() {
		_, err := d.Do(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })
		queued <- err
	}()
	waitFor(t, func() bool { return d.Pending() == 1 })

	d.Close()
	close(release)

	if err := <-queued; !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("排队任务应收到 ErrDispatcherClosed, got %v", err)
	}
	if _, err := d.Do(context.Background(), func(ctx context.Context) (any, error) { return nil, nil }); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("关闭后提交应被拒绝, got %v", err)
	}
}

func TestStatsMinDelay(t *testing.T) {
	d := New("search", 200*time.Millisecond)
	s := d.Stats()
	if s.Name != "search" {
		t.Errorf("Name = %s", s.Name)
	}
	if diff := s.MinDelay - 200*time.Millisecond; diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("MinDelay = %v", s.MinDelay)
	}
	if New("x", 0).Stats().MinDelay != 0 {
		t.Error("不限速时 MinDelay 应为0")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("等待条件超时")
}
