package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/model"
	"abroadPlan/internal/storage"
)

type country struct {
	Name string   `json:"name"`
	Pros []string `json:"pros"`
}

func enoughPros(c country) error {
	if len(c.Pros) < 2 {
		return apperrors.IncompleteResult("pros", len(c.Pros), 2)
	}
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGate(t *testing.T) (*Gate, storage.Store, *clock) {
	t.Helper()
	store, err := storage.CreateSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)}
	return New(store, WithClock(clk.Now)), store, clk
}

func TestKey(t *testing.T) {
	k := Key("country", "  Germany ", "Computer  Science", "")
	if k.Namespace != "country" || k.Key != "germany|computer science|" {
		t.Errorf("Key() = %+v", k)
	}
	if Key("country", "GERMANY") != Key("country", "germany") {
		t.Error("keys should normalize case")
	}
}

func TestGate_GetPutIdempotent(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	k := Key("visa", "germany")

	if _, ok, err := g.Get(ctx, k); ok || err != nil {
		t.Fatalf("Get(miss) = %v, %v", ok, err)
	}

	if err := g.Put(ctx, k, []byte(`{"a":1}`), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		entry, ok, err := g.Get(ctx, k)
		if err != nil || !ok {
			t.Fatalf("Get #%d = %v, %v", i, ok, err)
		}
		if string(entry.Payload) != `{"a":1}` {
			t.Errorf("Get #%d payload = %s", i, entry.Payload)
		}
	}
}

func TestGate_ExpiredIsAbsent(t *testing.T) {
	g, store, clk := newTestGate(t)
	ctx := context.Background()
	k := Key("jobs", "go", "berlin")

	if err := g.Put(ctx, k, []byte(`{}`), time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	clk.Advance(time.Hour + time.Second)

	if _, ok, err := g.Get(ctx, k); ok || err != nil {
		t.Fatalf("Get(expired) = %v, %v; want absent", ok, err)
	}
	// 过期记录被顺带删除
	raw, err := store.GetCacheEntry(ctx, k.Namespace, k.Key)
	if err != nil || raw != nil {
		t.Errorf("expired row still stored: %v, %v", raw, err)
	}
}

func TestLoad_MissThenHit(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	spec := Spec[country]{Key: Key("country", "germany"), TTL: time.Hour, Complete: enoughPros}

	var calls int32
	produce := func(context.Context) (country, error) {
		atomic.AddInt32(&calls, 1)
		return country{Name: "Germany", Pros: []string{"free tuition", "jobs"}}, nil
	}

	v, cached, err := Load(ctx, g, spec, produce)
	if err != nil || cached || v.Name != "Germany" {
		t.Fatalf("first Load() = %+v, %v, %v", v, cached, err)
	}
	v, cached, err = Load(ctx, g, spec, produce)
	if err != nil || !cached || len(v.Pros) != 2 {
		t.Fatalf("second Load() = %+v, %v, %v", v, cached, err)
	}
	if calls != 1 {
		t.Errorf("produce calls = %d, want 1", calls)
	}
}

func TestLoad_ExpiredRegenerates(t *testing.T) {
	g, _, clk := newTestGate(t)
	ctx := context.Background()
	spec := Spec[country]{Key: Key("country", "canada"), TTL: 12 * time.Hour, Complete: enoughPros}

	version := "old"
	produce := func(context.Context) (country, error) {
		return country{Name: version, Pros: []string{"a", "b"}}, nil
	}
	if _, _, err := Load(ctx, g, spec, produce); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	clk.Advance(12*time.Hour + time.Second)
	version = "new"

	v, cached, err := Load(ctx, g, spec, produce)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cached || v.Name != "new" {
		t.Errorf("Load() = %+v cached=%v; want regenerated value", v, cached)
	}

	// 新结果已写回
	entry, ok, err := g.Get(ctx, spec.Key)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if !entry.ExpiresAt.Time.Equal(clk.Now().Add(12 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", entry.ExpiresAt.Time)
	}
}

func TestLoad_InvalidCachedEntryIsReplaced(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	spec := Spec[country]{Key: Key("country", "japan"), TTL: time.Hour, Complete: enoughPros}

	t.Run("不完整的缓存", func(t *testing.T) {
		if err := g.Put(ctx, spec.Key, []byte(`{"name":"Japan","pros":["food"]}`), time.Hour); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		v, cached, err := Load(ctx, g, spec, func(context.Context) (country, error) {
			return country{Name: "Japan", Pros: []string{"food", "safety"}}, nil
		})
		if err != nil || cached || len(v.Pros) != 2 {
			t.Errorf("Load() = %+v, %v, %v", v, cached, err)
		}
	})

	t.Run("不完整的缓存只再生成一次", func(t *testing.T) {
		k := Spec[country]{Key: Key("country", "korea"), TTL: time.Hour, Complete: enoughPros}
		if err := g.Put(ctx, k.Key, []byte(`{"name":"Korea","pros":["food"]}`), time.Hour); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		calls := 0
		_, _, err := Load(ctx, g, k, func(context.Context) (country, error) {
			calls++
			return country{Name: "Korea", Pros: []string{"transit"}}, nil
		})
		if !errors.Is(err, apperrors.ErrIncompleteResult) {
			t.Fatalf("Load() error = %v, want IncompleteResult", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
		if _, ok, _ := g.Get(ctx, k.Key); ok {
			t.Error("incomplete entry should be removed")
		}
	})

	t.Run("无法解码的缓存", func(t *testing.T) {
		if err := g.Put(ctx, spec.Key, []byte(`not json`), time.Hour); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		_, cached, err := Load(ctx, g, spec, func(context.Context) (country, error) {
			return country{Name: "Japan", Pros: []string{"a", "b"}}, nil
		})
		if err != nil || cached {
			t.Errorf("Load() cached=%v err=%v", cached, err)
		}
	})
}

func TestLoad_IncompleteRegeneratesOnce(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()

	t.Run("第二次完整", func(t *testing.T) {
		spec := Spec[country]{Key: Key("country", "spain"), TTL: time.Hour, Complete: enoughPros}
		calls := 0
		v, _, err := Load(ctx, g, spec, func(context.Context) (country, error) {
			calls++
			if calls == 1 {
				return country{Name: "Spain"}, nil
			}
			return country{Name: "Spain", Pros: []string{"sun", "food"}}, nil
		})
		if err != nil || len(v.Pros) != 2 || calls != 2 {
			t.Errorf("Load() = %+v, %v calls=%d", v, err, calls)
		}
	})

	t.Run("两次都不完整", func(t *testing.T) {
		spec := Spec[country]{Key: Key("country", "italy"), TTL: time.Hour, Complete: enoughPros}
		calls := 0
		_, _, err := Load(ctx, g, spec, func(context.Context) (country, error) {
			calls++
			return country{Name: "Italy", Pros: []string{"art"}}, nil
		})
		if !errors.Is(err, apperrors.ErrIncompleteResult) {
			t.Fatalf("Load() error = %v, want IncompleteResult", err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
		if _, ok, _ := g.Get(ctx, spec.Key); ok {
			t.Error("incomplete result must not be cached")
		}
	})

	t.Run("生成错误直接返回", func(t *testing.T) {
		spec := Spec[country]{Key: Key("country", "peru"), TTL: time.Hour}
		calls := 0
		_, _, err := Load(ctx, g, spec, func(context.Context) (country, error) {
			calls++
			return country{}, apperrors.ProviderFatal("llm", 400, "")
		})
		if !errors.Is(err, apperrors.ErrProviderFatal) || calls != 1 {
			t.Errorf("Load() error = %v calls=%d", err, calls)
		}
	})
}

func TestLoad_ConcurrentMissesCoalesce(t *testing.T) {
	g, _, _ := newTestGate(t)
	ctx := context.Background()
	spec := Spec[country]{Key: Key("country", "norway"), TTL: time.Hour}

	release := make(chan struct{})
	var calls int32
	produce := func(context.Context) (country, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return country{Name: "Norway"}, nil
	}

	const n = 5
	var wg sync.WaitGroup
	results := make([]country, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = Load(ctx, g, spec, produce)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i].Name != "Norway" {
			t.Errorf("caller %d: %+v, %v", i, results[i], errs[i])
		}
	}
	if calls < 1 || calls > n {
		t.Errorf("produce calls = %d", calls)
	}
	if calls != 1 {
		t.Logf("produce calls = %d (some callers arrived after the first finished)", calls)
	}
}

type failingStore struct {
	storage.CacheStore
}

func (failingStore) GetCacheEntry(context.Context, string, string) (*model.CacheEntry, error) {
	return nil, nil
}

func (failingStore) UpsertCacheEntry(context.Context, *model.CacheEntry) error {
	return errors.New("disk full")
}

func TestLoad_PutFailureIsIgnored(t *testing.T) {
	g := New(failingStore{})
	v, cached, err := Load(context.Background(), g, Spec[country]{Key: Key("visa", "fr"), TTL: time.Hour},
		func(context.Context) (country, error) { return country{Name: "France"}, nil })
	if err != nil || cached || v.Name != "France" {
		t.Errorf("Load() = %+v, %v, %v", v, cached, err)
	}

	if err := g.Put(context.Background(), Key("visa", "fr"), nil, time.Hour); !errors.Is(err, apperrors.ErrPersistenceWrite) {
		t.Errorf("Put() error = %v, want PersistenceWrite", err)
	}
}

func TestGate_StatsClearPurge(t *testing.T) {
	g, _, clk := newTestGate(t)
	ctx := context.Background()

	_ = g.Put(ctx, Key("jobs", "a"), []byte(`{}`), time.Minute)
	_ = g.Put(ctx, Key("jobs", "b"), []byte(`{}`), time.Hour)
	_ = g.Put(ctx, Key("visa", "c"), []byte(`{}`), time.Hour)
	clk.Advance(2 * time.Minute)

	stats, err := g.Stats(ctx)
	if err != nil || len(stats) != 2 || stats[0].Expired != 1 {
		t.Fatalf("Stats() = %+v, %v", stats, err)
	}

	n, err := g.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("PurgeExpired() = %d, %v", n, err)
	}
	n, err = g.Clear(ctx, "")
	if err != nil || n != 2 {
		t.Errorf("Clear() = %d, %v", n, err)
	}
}
