package util

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// 上游限流响应中的重置时间解析
// 不同Provider携带的方式不一样：标准头、私有头、错误消息里的自然语言

// resetTimestampRegex 匹配错误消息中的重置时间（不依赖具体语言文案）
// 格式示例: 2025-12-09 18:08:11
var resetTimestampRegex = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

// tryAgainRegex 匹配 "Please try again in 7.66s" / "try again in 1m30.5s" / "try again in 250ms"
var tryAgainRegex = regexp.MustCompile(`(?i)try again in\s+(\d+(?:\.\d+)?(?:ms|h|m|s)(?:\d+(?:\.\d+)?(?:ms|h|m|s))*)`)

// rateLimitHeaders 私有限流头（值为时长如 "7.66s" 或秒数）
var rateLimitHeaders = []string{
	"X-Ratelimit-Reset-Requests",
	"X-Ratelimit-Reset-Tokens",
	"X-Ratelimit-Reset",
}

// errorResponse 常见的错误体结构（OpenAI兼容 / Serper）
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func (r *errorResponse) text() string {
	if r.Error.Message != "" {
		return r.Error.Message
	}
	return r.Message
}

// ErrorMessage 提取错误体中的message字段，非JSON时返回原文
func ErrorMessage(body []byte) string {
	var resp errorResponse
	if err := sonic.Unmarshal(body, &resp); err == nil {
		if msg := resp.text(); msg != "" {
			return msg
		}
	}
	return string(body)
}

// ParseRetryAfter 从响应头解析恢复时间
// Retry-After 支持秒数与HTTP日期；私有头取最晚的那个
func ParseRetryAfter(headers http.Header, now time.Time) (time.Time, bool) {
	if headers == nil {
		return time.Time{}, false
	}

	if v := strings.TrimSpace(headers.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs * float64(time.Second))), true
		}
		if t, err := http.ParseTime(v); err == nil {
			return t, true
		}
	}

	var latest time.Time
	for _, name := range rateLimitHeaders {
		v := strings.TrimSpace(headers.Get(name))
		if v == "" {
			continue
		}
		if t, ok := parseResetValue(v, now); ok && t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return time.Time{}, false
	}
	return latest, true
}

// parseResetValue 解析单个重置值：时长（"7.66s"）、秒数、或Unix时间戳
func parseResetValue(v string, now time.Time) (time.Time, bool) {
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return now.Add(d), true
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	// 大于十年的秒数视为Unix时间戳
	if n > 10*365*24*3600 {
		return time.Unix(int64(n), 0), true
	}
	return now.Add(time.Duration(n * float64(time.Second))), true
}

// ParseResetDurationFromMessage 从错误消息中解析 "try again in 7.66s"
func ParseResetDurationFromMessage(body []byte, now time.Time) (time.Time, bool) {
	if len(body) == 0 {
		return time.Time{}, false
	}
	m := tryAgainRegex.FindStringSubmatch(ErrorMessage(body))
	if len(m) < 2 {
		return time.Time{}, false
	}
	d, err := time.ParseDuration(m[1])
	if err != nil || d < 0 {
		return time.Time{}, false
	}
	return now.Add(d), true
}

// ParseResetTimestampFromMessage 从错误消息中提取 YYYY-MM-DD HH:MM:SS 格式的重置时间
func ParseResetTimestampFromMessage(body []byte) (time.Time, bool) {
	if len(body) == 0 {
		return time.Time{}, false
	}
	timeStr := resetTimestampRegex.FindString(ErrorMessage(body))
	if timeStr == "" {
		return time.Time{}, false
	}
	resetTime, err := time.ParseInLocation("2006-01-02 15:04:05", timeStr, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return resetTime, true
}
