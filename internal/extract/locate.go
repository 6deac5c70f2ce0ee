package extract

import (
	"regexp"
	"strings"
)

var (
	// thinkBlockRegex 推理模型输出的思考块
	thinkBlockRegex = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(think|thinking|reasoning)>`)
	// thinkTagRegex 未闭合的孤立标签
	thinkTagRegex = regexp.MustCompile(`(?i)</?(think|thinking|reasoning)>`)
	// fenceRegex 代码围栏，语言标记可选；允许末尾围栏缺失（输出被截断）
	fenceRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n?(.*?)(?:```|$)")
)

// stripNoise 去掉思考块与孤立标签
func stripNoise(raw string) string {
	s := thinkBlockRegex.ReplaceAllString(raw, "")
	s = thinkTagRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// preferFenced 优先返回第一个包含 { 或 [ 的围栏块内容
func preferFenced(s string) string {
	for _, m := range fenceRegex.FindAllStringSubmatch(s, -1) {
		body := strings.TrimSpace(m[1])
		if strings.ContainsAny(body, "{[") {
			return body
		}
	}
	return s
}

// locate 返回 (从第一个开括号到最后一个闭括号的片段, 从第一个开括号到结尾的片段)
// 找不到任何开括号时 ok=false
func locate(raw string) (span, tail string, ok bool) {
	s := preferFenced(stripNoise(raw))

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", "", false
	}
	tail = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s[start:]), "```"))

	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return tail, tail, true
	}
	return s[start : end+1], tail, true
}

// scanBalanced 从 s[start]（必须是 { 或 [）开始找到与之配对的闭括号，感知字符串与转义
// 返回闭括号之后的位置；未闭合返回 -1
func scanBalanced(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
