package cache

import (
	"context"
	"errors"
	"time"

	apperrors "abroadPlan/internal/errors"
	"abroadPlan/internal/util"

	"github.com/rs/zerolog/log"
)

// Spec 一次缓存加载的参数
type Spec[T any] struct {
	Key EntryKey
	TTL time.Duration
	// Complete 返回 nil 表示结果完整；否则返回 IncompleteResult 描述缺口
	// 为空时任何结果都视为完整
	Complete func(T) error
}

func (s Spec[T]) check(v T) error {
	if s.Complete == nil {
		return nil
	}
	return s.Complete(v)
}

// Load 缓存优先加载
//
// 命中且完整：直接返回（cached=true）
// 命中但无法解码：删除后按未命中处理
// 命中但不完整：删除后只生成一次（缓存内容已算作第一次结果）
// 未命中：调用 produce；结果不完整时再生成一次，仍不完整返回 IncompleteResult
// 生成成功后写入缓存，写入失败只记日志
// 同一键的并发未命中合并为一次生成
func Load[T any](ctx context.Context, g *Gate, spec Spec[T], produce func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	k := spec.Key

	entry, ok, err := g.Get(ctx, k)
	if err != nil {
		// 读失败按未命中处理
		log.Warn().Err(err).Str("namespace", k.Namespace).Str("key", k.Key).Msg("[WARN] 读取缓存失败")
	}
	attempts := 2
	if ok {
		var v T
		decodeErr := util.UnmarshalJSON(entry.Payload, &v)
		if decodeErr == nil {
			if spec.check(v) == nil {
				return v, true, nil
			}
			attempts = 1
		}
		log.Info().Str("namespace", k.Namespace).Str("key", k.Key).Msg("[INFO] 缓存内容无效，重新生成")
		if err := g.Invalidate(ctx, k); err != nil {
			log.Warn().Err(err).Str("namespace", k.Namespace).Str("key", k.Key).Msg("[WARN] 删除无效缓存失败")
		}
	}

	// 合并后的生成不受单个调用方取消影响
	detached := context.WithoutCancel(ctx)
	res, err, _ := g.group.Do(k.String(), func() (any, error) {
		v, err := generate(detached, spec, attempts, produce)
		if err != nil {
			return nil, err
		}
		store(detached, g, k, spec.TTL, v)
		return v, nil
	})
	if err != nil {
		return zero, false, err
	}
	return res.(T), false, nil
}

// generate 生成并校验完整性，最多 attempts 次
func generate[T any](ctx context.Context, spec Spec[T], attempts int, produce func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := produce(ctx)
		if err != nil {
			// 解析出的记录不足同样视为不完整，允许再生成一次
			if errors.Is(err, apperrors.ErrIncompleteResult) {
				lastErr = err
				continue
			}
			return zero, err
		}
		if err := spec.check(v); err != nil {
			lastErr = err
			log.Info().
				Str("namespace", spec.Key.Namespace).
				Str("key", spec.Key.Key).
				Int("attempt", attempt).
				Str("reason", err.Error()).
				Msg("[INFO] 生成结果不完整")
			continue
		}
		return v, nil
	}
	if !errors.Is(lastErr, apperrors.ErrIncompleteResult) {
		lastErr = apperrors.IncompleteResult(spec.Key.Namespace, 0, 1)
	}
	return zero, lastErr
}

func store[T any](ctx context.Context, g *Gate, k EntryKey, ttl time.Duration, v T) {
	payload, err := util.MarshalJSON(v)
	if err != nil {
		log.Warn().Err(err).Str("namespace", k.Namespace).Str("key", k.Key).Msg("[WARN] 缓存序列化失败")
		return
	}
	if err := g.Put(ctx, k, payload, ttl); err != nil {
		log.Warn().Err(err).Str("namespace", k.Namespace).Str("key", k.Key).Msg("[WARN] 缓存写入失败，结果照常返回")
	}
}
