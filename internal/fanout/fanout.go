// Package fanout 并发执行一组独立任务，单项失败以兜底值替换
package fanout

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Gather 并发执行 fn(0..n-1)，最多 limit 个同时进行（limit<=0 不限制）
// 返回与输入同序的结果；失败项由 fallback(i, err) 生成
// 单项失败不会取消其他项，Gather 本身从不失败
func Gather[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (T, error), fallback func(i int, err error) T) []T {
	results := make([]T, n)
	if n == 0 {
		return results
	}

	// 不使用 errgroup.WithContext：兄弟任务之间互不取消
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := run(ctx, i, fn)
			if err != nil {
				results[i] = fallback(i, err)
				return nil
			}
			results[i] = v
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// run 执行单项任务，panic 转为错误交给 fallback
func run[T any](ctx context.Context, i int, fn func(ctx context.Context, i int) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("index", i).Interface("panic", r).Msg("[ERROR] fan-out task panicked")
			err = fmt.Errorf("fan-out task %d panicked: %v", i, r)
		}
	}()
	return fn(ctx, i)
}
