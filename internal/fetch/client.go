// Package fetch 带密钥轮换、限流冷却与退避重试的上游调用
//
// 每次调用都在所属Provider的调度器内执行，保证同一上游的请求串行且有最小间隔。
// 单次尝试的结果分为四类：
//   - 2xx：成功，清除当前Key的冷却
//   - 429：按响应解析恢复时间冷却当前Key，换下一把
//   - 502/503/超时/网络中断：指数退避后用同一把Key重试
//   - 其他：立即失败
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"abroadPlan/internal/config"
	"abroadPlan/internal/dispatch"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/keypool"
	"abroadPlan/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("abroadPlan/fetch")

var (
	errRetry = errors.New("retryable attempt")
	errStop  = errors.New("stop retrying")
)

// Request 一次上游调用
type Request struct {
	Method   string // 默认 POST
	Endpoint string // 追加在 BaseURL 之后的路径
	Body     []byte
	Header   http.Header
}

// Response 成功的上游响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	KeyIndex   int
	Attempts   int
}

// Attempt 单次尝试的记录，交给 Observer
type Attempt struct {
	Provider string
	Endpoint string
	KeyIndex int
	KeyMask  string
	Number   int
	Outcome  Outcome
	Duration time.Duration
	Message  string
}

// Observer 每次尝试结束后回调（同步调用，实现方不应阻塞）
type Observer func(Attempt)

// Policy 重试与冷却策略
type Policy struct {
	MaxRetries      int           // 单把Key上可重试错误的最大尝试次数
	MaxKeys         int           // 最多轮换的Key数量，0表示池大小
	Timeout         time.Duration // 单次尝试硬超时
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	MaxCooldownWait time.Duration // 全部Key冷却时最多等待多久
	ResetParser     ResetParser
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      config.DefaultMaxRetries,
		Timeout:         config.DefaultRequestTimeout,
		BackoffInitial:  config.DefaultBackoffInitial,
		BackoffMax:      config.DefaultBackoffMax,
		MaxCooldownWait: config.DefaultMaxCooldownWait,
		ResetParser:     DefaultResetParser(),
	}
}

// PolicyFromConfig 以Provider配置覆盖默认策略
func PolicyFromConfig(cfg *config.ProviderConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxRetries > 0 {
		p.MaxRetries = cfg.MaxRetries
	}
	if cfg.Timeout > 0 {
		p.Timeout = cfg.Timeout
	}
	if cfg.MaxCooldownWait > 0 {
		p.MaxCooldownWait = cfg.MaxCooldownWait
	}
	return p
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.BackoffInitial <= 0 {
		p.BackoffInitial = def.BackoffInitial
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = def.BackoffMax
	}
	if p.MaxCooldownWait < 0 {
		p.MaxCooldownWait = 0
	}
	return p
}

// Client 绑定到单个Provider的调用器
type Client struct {
	Provider   string
	BaseURL    string
	AuthStyle  string
	HTTP       *http.Client
	Pool       *keypool.Pool
	Dispatcher *dispatch.Dispatcher
	Policy     Policy
	Observer   Observer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New 根据Provider配置创建Client；httpClient 为 nil 时使用共享传输配置
func New(cfg *config.ProviderConfig, pool *keypool.Pool, d *dispatch.Dispatcher, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{
		Provider:   cfg.Name,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		AuthStyle:  cfg.AuthStyle,
		HTTP:       httpClient,
		Pool:       pool,
		Dispatcher: d,
		Policy:     PolicyFromConfig(cfg),
	}
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Call 在调度器内执行一次完整的调用（含轮换与重试）
// 调用与入站请求的取消解耦：客户端断开不会中断已经开始的上游调用
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	ctx = context.WithoutCancel(ctx)
	if c.Dispatcher == nil {
		return c.do(ctx, req)
	}
	return dispatch.Submit(ctx, c.Dispatcher, func(ctx context.Context) (*Response, error) {
		return c.do(ctx, req)
	})
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "fetch."+c.Provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider", c.Provider),
			attribute.String("endpoint", req.Endpoint),
		))
	defer span.End()

	policy := c.Policy.withDefaults()
	maxKeys := policy.MaxKeys
	if maxKeys <= 0 || maxKeys > c.Pool.Size() {
		maxKeys = c.Pool.Size()
	}

	var (
		lastErr         error
		lastRateLimited bool
		attempts        int
	)

	for k := 0; k < maxKeys; k++ {
		cred := c.Pool.SelectKey()
		if cred.Cooling() {
			wait := cred.CoolingUntil.Sub(c.clock())
			if wait > policy.MaxCooldownWait {
				lastRateLimited = true
				if lastErr == nil {
					lastErr = fmt.Errorf("all %d keys cooling, next resumes in %s", c.Pool.Size(), wait.Round(time.Second))
				}
				break
			}
			if wait > 0 {
				log.Info().Str("provider", c.Provider).Int("key_index", cred.Index).
					Dur("wait", wait).Msg("[COOLDOWN] all keys cooling, waiting for earliest")
				if err := c.wait(ctx, wait); err != nil {
					lastErr = err
					break
				}
			}
		}

		resp, out, n := c.tryKey(ctx, policy, cred, req, attempts)
		attempts += n

		switch out.Kind {
		case KindOK:
			resp.KeyIndex = cred.Index
			resp.Attempts = attempts
			span.SetAttributes(attribute.Int("attempts", attempts), attribute.Int("http.status_code", resp.StatusCode))
			return resp, nil
		case KindFatal:
			err := c.fatalError(out, resp)
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.ErrCodeProviderFatal))
			return nil, err
		case KindRateLimited:
			lastRateLimited = true
			lastErr = out.Err
		case KindRetryable:
			lastRateLimited = false
			lastErr = apperrors.ProviderTransient(c.Provider, out.Status, out.Err)
		}
	}

	err := apperrors.KeysExhausted(c.Provider, c.Pool.Size(), lastRateLimited, lastErr)
	log.Warn().Str("provider", c.Provider).Str("endpoint", req.Endpoint).Int("attempts", attempts).
		Bool("rate_limited", lastRateLimited).Err(lastErr).Msg("[WARN] provider keys exhausted")
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperrors.ErrCodeKeysExhausted))
	return nil, err
}

// tryKey 用同一把Key尝试，直到成功、不可重试或重试次数用尽
// 返回最后一次尝试的响应与结果，以及尝试次数
func (c *Client) tryKey(ctx context.Context, policy Policy, cred keypool.Credential, req Request, base int) (*Response, Outcome, int) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BackoffInitial
	b.MaxInterval = policy.BackoffMax
	b.MaxElapsedTime = 0
	b.Reset()

	retries := uint64(0)
	if policy.MaxRetries > 1 {
		retries = uint64(policy.MaxRetries - 1)
	}

	var (
		resp *Response
		last Outcome
		n    int
	)
	op := func() error {
		n++
		resp, last = c.attempt(ctx, policy, cred, req, base+n)
		switch last.Kind {
		case KindOK:
			return nil
		case KindRetryable:
			return errRetry
		default:
			return backoff.Permanent(errStop)
		}
	}
	notify := func(_ error, wait time.Duration) {
		log.Warn().Str("provider", c.Provider).Int("key_index", cred.Index).Int("status", last.Status).
			Dur("backoff", wait).Msg("[RETRY] transient provider failure")
	}

	_ = backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx), notify)
	return resp, last, n
}

// attempt 单次HTTP请求，带独立超时，并根据结果更新密钥池
func (c *Client) attempt(ctx context.Context, policy Policy, cred keypool.Credential, req Request, number int) (*Response, Outcome) {
	start := c.clock()
	attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	attemptCtx, span := tracer.Start(attemptCtx, "fetch.attempt", trace.WithAttributes(
		attribute.String("provider", c.Provider),
		attribute.Int("key_index", cred.Index),
		attribute.Int("attempt", number),
	))
	defer span.End()

	resp, err := c.send(attemptCtx, cred.Key, req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	out := classify(status, err)

	var msg string
	if resp != nil && out.Kind != KindOK {
		msg = util.SanitizeLogMessage(util.ErrorMessage(resp.Body))
	} else if err != nil {
		msg = util.SanitizeError(err)
	}

	switch out.Kind {
	case KindOK:
		c.Pool.ReportSuccess(cred.Key)
	case KindRateLimited:
		var resumeAt time.Time
		if policy.ResetParser != nil {
			if t, ok := policy.ResetParser.ResetAt(resp, c.clock()); ok {
				resumeAt = t
			}
		}
		until := c.Pool.ReportRateLimited(cred.Key, resumeAt)
		out.Err = fmt.Errorf("rate limited until %s: %s", until.Format(time.RFC3339), msg)
	default:
		if out.Err == nil {
			out.Err = fmt.Errorf("status %d: %s", status, msg)
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", out.Status), attribute.String("outcome", out.Kind.String()))
	if out.Kind != KindOK {
		span.SetStatus(codes.Error, out.Kind.String())
		log.Debug().Str("provider", c.Provider).Str("endpoint", req.Endpoint).Int("key_index", cred.Index).
			Int("attempt", number).Int("status", out.Status).Str("outcome", out.Kind.String()).
			Str("message", msg).Msg("provider attempt failed")
	}

	if c.Observer != nil {
		c.Observer(Attempt{
			Provider: c.Provider,
			Endpoint: req.Endpoint,
			KeyIndex: cred.Index,
			KeyMask:  util.MaskAPIKey(cred.Key),
			Number:   number,
			Outcome:  out,
			Duration: c.clock().Sub(start),
			Message:  msg,
		})
	}
	return resp, out
}

func (c *Client) send(ctx context.Context, key string, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+req.Endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	switch c.AuthStyle {
	case config.AuthHeader:
		httpReq.Header.Set("X-API-KEY", key)
	default:
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	limit := int64(config.MaxErrorBodyBytes)
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		limit = config.MaxResponseBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, nil
}

func (c *Client) fatalError(out Outcome, resp *Response) error {
	if resp != nil {
		return apperrors.ProviderFatal(c.Provider, out.Status, util.SanitizeLogMessage(util.ErrorMessage(resp.Body)))
	}
	msg := ""
	if out.Err != nil {
		msg = util.SanitizeError(out.Err)
	}
	return apperrors.ProviderFatal(c.Provider, out.Status, msg)
}
