package util

import (
	"fmt"
	"strings"
	"unicode"

	"abroadPlan/internal/config"
)

// SanitizeLogMessage 消毒日志消息，防止日志注入
// 上游返回的错误文本、LLM原文在写入日志或provider_logs前都要经过这里
func SanitizeLogMessage(msg string) string {
	if msg == "" {
		return ""
	}

	msg = strings.ReplaceAll(msg, "\n", "\\n")
	msg = strings.ReplaceAll(msg, "\r", "\\r")
	msg = strings.ReplaceAll(msg, "\t", "\\t")

	var builder strings.Builder
	builder.Grow(len(msg))

	for _, r := range msg {
		if unicode.IsPrint(r) || r == ' ' {
			builder.WriteRune(r)
		} else if r < 32 || r == 0x7f {
			fmt.Fprintf(&builder, "\\x%02x", r)
		}
	}

	msg = builder.String()

	if len(msg) > config.LogMaxMessageLength {
		msg = TruncateRunes(msg, config.LogMaxMessageLength) + "...[truncated]"
	}

	return msg
}

// SanitizeError 消毒error对象的Error()输出
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeLogMessage(err.Error())
}
