package extract

import (
	"strings"
	"unicode/utf8"
)

// repair 单遍扫描修复常见的LLM JSON缺陷：
//   - 对象/数组末尾多余的逗号
//   - 相邻值之间缺失的逗号（}{、][）
//   - 中文/弯引号作为字符串定界符
//   - 字符串内未转义的换行与控制字符
//   - 截断：未闭合的字符串、悬空的键/冒号/逗号、半截字面量、未闭合的括号
//   - 多个顶层值：包成数组
//
// 顶层值闭合后若后面不再紧跟另一个值，其余文本（解释性文字）被丢弃
func repair(s string) string {
	r := &repairer{out: make([]byte, 0, len(s)+16)}
	r.run(s)
	return r.finish()
}

type repairer struct {
	out   []byte
	stack []byte // 期望的闭括号

	inString    bool
	smartString bool // 由弯引号开启的字符串
	escaped     bool

	keyPos      bool // 对象中下一个字符串是键
	danglingKey bool // 已写出键但还没有冒号
	multi       bool // 出现了多个顶层值
}

func (r *repairer) run(s string) {
	for i := 0; i < len(s); {
		c, size := utf8.DecodeRuneInString(s[i:])
		i += size

		if r.inString {
			r.stringRune(c)
			continue
		}

		switch c {
		case '"', '“', '”':
			r.openString(c != '"')
		case '{', '[':
			r.insertCommaIfAdjacent()
			if c == '{' {
				r.stack = append(r.stack, '}')
				r.keyPos = true
			} else {
				r.stack = append(r.stack, ']')
				r.keyPos = false
			}
			r.out = append(r.out, byte(c))
		case '}', ']':
			if !r.closeUntil(byte(c)) {
				continue
			}
			if len(r.stack) == 0 {
				next := skipSeparators(s, i)
				if next < len(s) && (s[next] == '{' || s[next] == '[') {
					r.multi = true
					r.out = append(r.out, ',')
					i = next
					continue
				}
				return
			}
		case ',':
			if len(r.stack) == 0 {
				continue
			}
			r.trimTrailingComma()
			if last := r.lastSignificant(); last == '{' || last == '[' {
				continue
			}
			r.out = append(r.out, ',')
			r.keyPos = r.top() == '}'
		case ':':
			r.danglingKey = false
			r.keyPos = false
			r.out = append(r.out, ':')
		default:
			if len(r.stack) == 0 {
				continue
			}
			r.out = utf8.AppendRune(r.out, c)
		}
	}
}

func (r *repairer) openString(smart bool) {
	if len(r.stack) == 0 {
		return
	}
	r.insertCommaIfAdjacent()
	r.inString = true
	r.smartString = smart
	r.escaped = false
	r.out = append(r.out, '"')
}

func (r *repairer) stringRune(c rune) {
	if r.escaped {
		r.escaped = false
		r.out = utf8.AppendRune(r.out, c)
		return
	}
	switch {
	case c == '\\':
		r.escaped = true
		r.out = append(r.out, '\\')
	case !r.smartString && c == '"':
		r.closeString()
	case r.smartString && (c == '”' || c == '“'):
		r.closeString()
	case r.smartString && c == '"':
		r.out = append(r.out, '\\', '"')
	case c == '\n':
		r.out = append(r.out, '\\', 'n')
	case c == '\r':
		r.out = append(r.out, '\\', 'r')
	case c == '\t':
		r.out = append(r.out, '\\', 't')
	case c < 0x20:
		r.out = append(r.out, '\\', 'u', '0', '0', hexDigit(byte(c)>>4), hexDigit(byte(c)&0xf))
	default:
		r.out = utf8.AppendRune(r.out, c)
	}
}

func (r *repairer) closeString() {
	r.inString = false
	r.smartString = false
	r.out = append(r.out, '"')
	if r.keyPos && r.top() == '}' {
		r.danglingKey = true
		r.keyPos = false
	}
}

// closeUntil 弹栈直到遇到与 c 匹配的括号；栈中没有匹配项时忽略该字符
func (r *repairer) closeUntil(c byte) bool {
	match := -1
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == c {
			match = i
			break
		}
	}
	if match < 0 {
		return false
	}
	for len(r.stack) > match {
		r.closeTop()
	}
	return true
}

func (r *repairer) closeTop() {
	closer := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	r.fixDangling()
	r.out = append(r.out, closer)
	r.keyPos = false
	r.danglingKey = false
}

// fixDangling 在闭合前处理悬空的逗号、冒号、键与半截字面量
func (r *repairer) fixDangling() {
	r.trimSpace()
	if r.danglingKey {
		r.out = append(r.out, ':', 'n', 'u', 'l', 'l')
		r.danglingKey = false
		return
	}
	if n := len(r.out); n > 0 && r.out[n-1] == ':' {
		r.out = append(r.out, 'n', 'u', 'l', 'l')
		return
	}
	r.completeLiteral()
	r.trimTrailingComma()
}

// completeLiteral 补全被截断的 true/false/null 与数字
func (r *repairer) completeLiteral() {
	n := len(r.out)
	j := n
	for j > 0 && isLiteralByte(r.out[j-1]) {
		j--
	}
	if j == n {
		return
	}
	word := string(r.out[j:])
	for _, lit := range []string{"true", "false", "null"} {
		if word != lit && strings.HasPrefix(lit, word) {
			r.out = append(r.out[:j], lit...)
			return
		}
	}
	switch r.out[n-1] {
	case '.', '-', '+', 'e', 'E':
		if word[0] == '-' || (word[0] >= '0' && word[0] <= '9') {
			r.out = append(r.out, '0')
		}
	}
}

// insertCommaIfAdjacent 数组内两个值之间缺逗号时补上
func (r *repairer) insertCommaIfAdjacent() {
	if r.top() != ']' {
		return
	}
	switch r.lastSignificant() {
	case '}', ']', '"':
		r.out = append(r.out, ',')
	}
}

// lastSignificant 最后一个非空白输出字符
func (r *repairer) lastSignificant() byte {
	for i := len(r.out) - 1; i >= 0; i-- {
		switch r.out[i] {
		case ' ', '\n', '\r', '\t':
			continue
		}
		return r.out[i]
	}
	return 0
}

func (r *repairer) trimSpace() {
	for len(r.out) > 0 {
		switch r.out[len(r.out)-1] {
		case ' ', '\n', '\r', '\t':
			r.out = r.out[:len(r.out)-1]
			continue
		}
		return
	}
}

func (r *repairer) trimTrailingComma() {
	r.trimSpace()
	if n := len(r.out); n > 0 && r.out[n-1] == ',' {
		r.out = r.out[:n-1]
	}
}

func (r *repairer) top() byte {
	if len(r.stack) == 0 {
		return 0
	}
	return r.stack[len(r.stack)-1]
}

func (r *repairer) finish() string {
	if r.inString {
		if r.escaped {
			r.out = r.out[:len(r.out)-1]
			r.escaped = false
		}
		r.closeString()
	}
	for len(r.stack) > 0 {
		r.closeTop()
	}
	r.trimTrailingComma()
	if r.multi {
		return "[" + string(r.out) + "]"
	}
	return string(r.out)
}

func skipSeparators(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\n', '\r', '\t', ',':
			i++
			continue
		}
		return i
	}
	return i
}

func isLiteralByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+'
}

func hexDigit(b byte) byte {
	return "0123456789abcdef"[b&0xf]
}
