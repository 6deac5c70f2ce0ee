package fetch

import (
	"time"

	"abroadPlan/internal/util"
)

// ResetParser 从429响应中解析Key的恢复时间
// 各家Provider携带方式不同，按需组合
type ResetParser interface {
	ResetAt(resp *Response, now time.Time) (time.Time, bool)
}

// ResetParserFunc 函数适配器
type ResetParserFunc func(resp *Response, now time.Time) (time.Time, bool)

// ResetAt 实现 ResetParser
func (f ResetParserFunc) ResetAt(resp *Response, now time.Time) (time.Time, bool) {
	return f(resp, now)
}

var (
	// RetryAfterParser Retry-After 与 x-ratelimit-reset-* 响应头
	RetryAfterParser ResetParser = ResetParserFunc(func(resp *Response, now time.Time) (time.Time, bool) {
		return util.ParseRetryAfter(resp.Header, now)
	})

	// MessageDurationParser 错误消息中的 "try again in 7.66s"
	MessageDurationParser ResetParser = ResetParserFunc(func(resp *Response, now time.Time) (time.Time, bool) {
		return util.ParseResetDurationFromMessage(resp.Body, now)
	})

	// TimestampParser 错误消息中的 "YYYY-MM-DD HH:MM:SS"
	TimestampParser ResetParser = ResetParserFunc(func(resp *Response, _ time.Time) (time.Time, bool) {
		return util.ParseResetTimestampFromMessage(resp.Body)
	})
)

// Chain 依次尝试，返回第一个落在未来的恢复时间
func Chain(parsers ...ResetParser) ResetParser {
	return ResetParserFunc(func(resp *Response, now time.Time) (time.Time, bool) {
		if resp == nil {
			return time.Time{}, false
		}
		for _, p := range parsers {
			if t, ok := p.ResetAt(resp, now); ok && t.After(now) {
				return t, true
			}
		}
		return time.Time{}, false
	})
}

// DefaultResetParser 响应头优先，其次消息中的时长，最后消息中的时间戳
func DefaultResetParser() ResetParser {
	return Chain(RetryAfterParser, MessageDurationParser, TimestampParser)
}
