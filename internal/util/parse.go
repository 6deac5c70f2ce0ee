package util

import (
	"strings"
	"unicode"
)

// ParseBool 解析常见的布尔字符串表示
// 返回 (value, ok)：ok 表示是否为有效的布尔值
func ParseBool(raw string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// ParseBoolDefault 解析布尔字符串，无效值时返回默认值
func ParseBoolDefault(raw string, defaultVal bool) bool {
	if val, ok := ParseBool(raw); ok {
		return val
	}
	return defaultVal
}

// NormalizeKeyPart 缓存键片段归一化：去首尾空白、小写、内部连续空白折叠为单个空格
func NormalizeKeyPart(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace)
	return strings.Join(fields, " ")
}

// TruncateRunes 按字符数截断（不切断多字节字符）
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
