package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"abroadPlan/internal/config"
	"abroadPlan/internal/dispatch"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/keypool"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestClient 创建指向 httptest 服务器的客户端，时钟固定，退避极短
func newTestClient(t *testing.T, url string, keys ...string) (*Client, *keypool.Pool) {
	t.Helper()
	clock := func() time.Time { return testNow }
	pool, err := keypool.New("llm", keys, keypool.WithClock(clock))
	if err != nil {
		t.Fatalf("keypool.New: %v", err)
	}
	d := dispatch.New("llm", 0)
	t.Cleanup(d.Close)

	c := &Client{
		Provider:   "llm",
		BaseURL:    url,
		AuthStyle:  config.AuthBearer,
		HTTP:       &http.Client{},
		Pool:       pool,
		Dispatcher: d,
		Policy: Policy{
			MaxRetries:      3,
			Timeout:         2 * time.Second,
			BackoffInitial:  time.Millisecond,
			BackoffMax:      2 * time.Millisecond,
			MaxCooldownWait: 0,
			ResetParser:     DefaultResetParser(),
		},
		now: clock,
	}
	return c, pool
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func TestCall_Success(t *testing.T) {
	var gotKey, gotBody, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = bearer(r)
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1")
	resp, err := c.Call(context.Background(), Request{Endpoint: "/chat/completions", Body: []byte(`{"q":1}`)})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(resp.Body) != `{"ok":true}` || resp.Attempts != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if gotKey != "k1" || gotPath != "/chat/completions" || gotBody != `{"q":1}` {
		t.Errorf("request key=%q path=%q body=%q", gotKey, gotPath, gotBody)
	}
}

func TestCall_HeaderAuthStyle(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "serper-key")
	c.AuthStyle = config.AuthHeader
	if _, err := c.Call(context.Background(), Request{Endpoint: "/search"}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if gotKey != "serper-key" || gotAuth != "" {
		t.Errorf("X-API-KEY=%q Authorization=%q", gotKey, gotAuth)
	}
}

// 429 不带任何恢复时间：当前Key冷却默认60秒，换下一把Key成功
func TestCall_RateLimitedWithoutMetadataRotates(t *testing.T) {
	var keys []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, bearer(r))
		mu.Unlock()
		if bearer(r) == "k1" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, pool := newTestClient(t, srv.URL, "k1", "k2")
	resp, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.KeyIndex != 1 || resp.Attempts != 2 {
		t.Errorf("resp KeyIndex=%d Attempts=%d, want 1/2", resp.KeyIndex, resp.Attempts)
	}
	if strings.Join(keys, ",") != "k1,k2" {
		t.Errorf("keys used = %v", keys)
	}

	stats := pool.Stats()
	if stats[0].CoolingUntil == nil || !stats[0].CoolingUntil.Equal(testNow.Add(60*time.Second)) {
		t.Errorf("k1 cooling until %v, want now+60s", stats[0].CoolingUntil)
	}
	if stats[1].CoolingUntil != nil {
		t.Errorf("k2 should not be cooling")
	}
}

func TestCall_RateLimitedHonorsResetMetadata(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		body   string
		want   time.Time
	}{
		{"Retry-After秒数", http.Header{"Retry-After": {"5"}}, `{}`, testNow.Add(5 * time.Second)},
		{"私有重置头", http.Header{"X-Ratelimit-Reset-Requests": {"2m"}}, `{}`, testNow.Add(2 * time.Minute)},
		{"消息中的时长", nil, `{"error":{"message":"Please try again in 7.5s"}}`, testNow.Add(7500 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, vs := range tt.header {
					for _, v := range vs {
						w.Header().Add(k, v)
					}
				}
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, pool := newTestClient(t, srv.URL, "k1")
			_, err := c.Call(context.Background(), Request{Endpoint: "/x"})
			if !errors.Is(err, apperrors.ErrKeysExhausted) {
				t.Fatalf("Call() error = %v, want KeysExhausted", err)
			}
			until := pool.Stats()[0].CoolingUntil
			if until == nil || !until.Equal(tt.want) {
				t.Errorf("cooling until %v, want %v", until, tt.want)
			}
		})
	}
}

func TestCall_AllKeysRateLimited(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1", "k2")
	_, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if !errors.Is(err, apperrors.ErrKeysExhausted) {
		t.Fatalf("Call() error = %v, want KeysExhausted", err)
	}
	if got := apperrors.HTTPStatus(err); got != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d, want 429", got)
	}
	if !strings.Contains(err.Error(), "slow down") {
		t.Errorf("error should carry last provider message: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want one per key", hits.Load())
	}
}

func TestCall_RetryableRetriesSameKey(t *testing.T) {
	var hits atomic.Int32
	var keys []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, bearer(r))
		mu.Unlock()
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1", "k2")
	resp, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.Attempts != 2 || strings.Join(keys, ",") != "k1,k1" {
		t.Errorf("attempts=%d keys=%v, want 2 attempts on k1", resp.Attempts, keys)
	}
}

func TestCall_RetryableExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1")
	_, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if !errors.Is(err, apperrors.ErrKeysExhausted) {
		t.Fatalf("Call() error = %v, want KeysExhausted", err)
	}
	if got := apperrors.HTTPStatus(err); got != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want 503", got)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want MaxRetries", hits.Load())
	}
}

func TestCall_FatalStatusStopsImmediately(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1", "k2")
	_, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if !errors.Is(err, apperrors.ErrProviderFatal) {
		t.Fatalf("Call() error = %v, want ProviderFatal", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
	if msg := apperrors.PublicMessage(err); strings.Contains(msg, "model not found") {
		t.Errorf("public message leaks provider text: %q", msg)
	}
}

func TestCall_PerAttemptTimeoutIsRetryable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1")
	c.Policy.Timeout = 50 * time.Millisecond
	resp, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestCall_AllKeysCoolingBeyondWait(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, pool := newTestClient(t, srv.URL, "k1")
	pool.ReportRateLimited("k1", testNow.Add(time.Hour))

	_, err := c.Call(context.Background(), Request{Endpoint: "/x"})
	if !errors.Is(err, apperrors.ErrKeysExhausted) {
		t.Fatalf("Call() error = %v, want KeysExhausted", err)
	}
	if apperrors.HTTPStatus(err) != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d, want 429", apperrors.HTTPStatus(err))
	}
	if hits.Load() != 0 {
		t.Errorf("cooling key should not be used, hits = %d", hits.Load())
	}
}

func TestCall_WaitsForShortCooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, pool := newTestClient(t, srv.URL, "k1")
	c.Policy.MaxCooldownWait = 10 * time.Second
	var waited time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		waited = d
		return nil
	}
	pool.ReportRateLimited("k1", testNow.Add(3*time.Second))

	if _, err := c.Call(context.Background(), Request{Endpoint: "/x"}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if waited != 3*time.Second {
		t.Errorf("waited %v, want 3s", waited)
	}
	if pool.Stats()[0].CoolingUntil != nil {
		t.Error("success should clear cooldown")
	}
}

func TestCall_DetachedFromCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Call(ctx, Request{Endpoint: "/x"}); err != nil {
		t.Fatalf("Call() with cancelled caller error = %v", err)
	}
}

func TestCall_ObserverSeesEveryAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearer(r) == "k1-secret-value" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, "k1-secret-value", "k2-secret-value")
	var attempts []Attempt
	c.Observer = func(a Attempt) { attempts = append(attempts, a) }

	if _, err := c.Call(context.Background(), Request{Endpoint: "/chat"}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
	if attempts[0].Outcome.Kind != KindRateLimited || attempts[1].Outcome.Kind != KindOK {
		t.Errorf("outcomes = %v, %v", attempts[0].Outcome.Kind, attempts[1].Outcome.Kind)
	}
	if attempts[0].Number != 1 || attempts[1].Number != 2 || attempts[1].Endpoint != "/chat" {
		t.Errorf("attempt metadata = %+v", attempts)
	}
	if strings.Contains(attempts[0].KeyMask, "secret") {
		t.Errorf("key not masked: %q", attempts[0].KeyMask)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   Kind
	}{
		{200, nil, KindOK},
		{204, nil, KindOK},
		{429, nil, KindRateLimited},
		{502, nil, KindRetryable},
		{503, nil, KindRetryable},
		{500, nil, KindFatal},
		{401, nil, KindFatal},
		{0, context.DeadlineExceeded, KindRetryable},
		{0, context.Canceled, KindFatal},
		{0, errors.New("read: connection reset by peer"), KindRetryable},
	}
	for _, tt := range tests {
		if got := classify(tt.status, tt.err).Kind; got != tt.want {
			t.Errorf("classify(%d, %v) = %v, want %v", tt.status, tt.err, got, tt.want)
		}
	}
}
