// Package service 业务端点：缓存闸门 → 上游调用（经调度器）→ JSON提取 → 结果整形
package service

import (
	"context"
	"strings"

	"abroadPlan/internal/cache"
	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/extract"
	"abroadPlan/internal/provider"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("abroadPlan/service")

// Completer 文本生成（provider.Chat 实现）
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Searcher 网页与图片搜索（provider.Search 实现）
type Searcher interface {
	Search(ctx context.Context, query string, num int) ([]provider.OrganicResult, error)
	Images(ctx context.Context, query string, num int) ([]provider.ImageResult, error)
}

// Planner 出国规划各端点的实现
type Planner struct {
	gate   *cache.Gate
	llm    Completer
	search Searcher

	imageConcurrency int
}

// NewPlanner 创建 Planner
func NewPlanner(gate *cache.Gate, llm Completer, search Searcher) *Planner {
	return &Planner{
		gate:             gate,
		llm:              llm,
		search:           search,
		imageConcurrency: 4,
	}
}

// Gate 底层缓存闸门（管理接口使用）
func (p *Planner) Gate() *cache.Gate { return p.gate }

// ask 发送提示词并把回答解码为 T
func ask[T any](ctx context.Context, llm Completer, prompt string) (T, error) {
	var zero T
	raw, err := llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return zero, err
	}
	return extract.Decode[T](raw)
}

// askRecords 发送提示词并提取记录数组
func askRecords[E any](ctx context.Context, llm Completer, prompt, field string) ([]E, error) {
	raw, err := llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return extract.Records[E](raw, field)
}

// validOnly 丢弃未通过 validate 标签校验的元素
func validOnly[E any](items []E) []E {
	out := make([]E, 0, len(items))
	for i := range items {
		if extract.Valid(&items[i]) {
			out = append(out, items[i])
		}
	}
	return out
}

func atLeast(what string, got, want int) error {
	if got < want {
		return apperrors.IncompleteResult(what, got, want)
	}
	return nil
}

// required 去空白后校验必填参数
func required(name, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", apperrors.BadRequest(name + " is required")
	}
	return v, nil
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "service."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, cached bool, err error) {
	span.SetAttributes(attribute.Bool("cache.hit", cached))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}

// orDefault 空值时使用默认文案（拼提示词用）
func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
