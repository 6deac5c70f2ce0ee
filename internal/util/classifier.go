package util

import (
	"context"
	"errors"
	"net"
	"strings"
)

// HTTP状态码错误分类器
// 上游只有四种结局：成功、限流（换Key）、暂时故障（同Key退避重试）、致命（立即失败）

// StatusClientClosedRequest 调用方取消请求（Nginx扩展状态码）
const StatusClientClosedRequest = 499

// ErrorLevel 错误级别枚举
type ErrorLevel int

const (
	// ErrorLevelNone 无错误（2xx成功）
	ErrorLevelNone ErrorLevel = iota
	// ErrorLevelRateLimited 限流：冷却当前Key，轮换下一个Key
	ErrorLevelRateLimited
	// ErrorLevelTransient 暂时故障：退避后用同一个Key重试
	ErrorLevelTransient
	// ErrorLevelFatal 致命错误：不重试，直接返回
	ErrorLevelFatal
)

// String 便于日志输出
func (l ErrorLevel) String() string {
	switch l {
	case ErrorLevelNone:
		return "ok"
	case ErrorLevelRateLimited:
		return "rate_limited"
	case ErrorLevelTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// statusCodeLevelMap 状态码到错误级别的映射表
// 仅 429 换Key、502/503 重试，其余非2xx一律致命
var statusCodeLevelMap = map[int]ErrorLevel{
	429: ErrorLevelRateLimited,
	502: ErrorLevelTransient,
	503: ErrorLevelTransient,
}

// ClassifyHTTPStatus 分类HTTP状态码，返回错误级别
func ClassifyHTTPStatus(statusCode int) ErrorLevel {
	if statusCode >= 200 && statusCode < 300 {
		return ErrorLevelNone
	}
	if level, ok := statusCodeLevelMap[statusCode]; ok {
		return level
	}
	return ErrorLevelFatal
}

// ClassifyError 统一错误分类器（请求未拿到HTTP响应时使用）
//
// 返回:
//   - statusCode: 用于日志的等效HTTP状态码
//   - level: 错误级别
//
// 分层：快速路径（context错误）→ net.Error → 字符串匹配
func ClassifyError(err error) (statusCode int, level ErrorLevel) {
	if err == nil {
		return 200, ErrorLevelNone
	}

	// 调用方主动取消：不重试
	if errors.Is(err, context.Canceled) {
		return StatusClientClosedRequest, ErrorLevelFatal
	}

	// 单次请求超时：视为上游暂时故障
	if errors.Is(err, context.DeadlineExceeded) {
		return 504, ErrorLevelTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 504, ErrorLevelTransient
	}

	if status, level, ok := classifyErrorByString(err.Error()); ok {
		return status, level
	}

	// 其余传输层错误（拨号、读写）按网络中断处理
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return 502, ErrorLevelTransient
	}

	// 构造请求失败等本地错误：重试无意义
	return 500, ErrorLevelFatal
}

// classifyErrorByString 通过字符串匹配分类网络错误
func classifyErrorByString(errStr string) (int, ErrorLevel, bool) {
	errLower := strings.ToLower(errStr)

	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"http2: response body closed",
		"stream error:",
		"no such host",
		"host unreachable",
		"network unreachable",
		"connection timeout",
		"no route to host",
		"tls handshake timeout",
	}
	for _, p := range transientPatterns {
		if strings.Contains(errLower, p) {
			return 502, ErrorLevelTransient, true
		}
	}
	return 0, ErrorLevelNone, false
}
