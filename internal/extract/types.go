package extract

import (
	"bytes"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Text 宽松的文本字段：LLM 有时把字符串写成数字、布尔、数组或对象
// 统一折叠成一段可读文本，null 视为空串
type Text string

// UnmarshalJSON 实现 json.Unmarshaler
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := sonic.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case '[':
		var parts []Text
		if err := sonic.Unmarshal(b, &parts); err != nil {
			return err
		}
		*t = Text(joinNonEmpty(parts, ", "))
	case '{':
		var m map[string]Text
		if err := sonic.Unmarshal(b, &m); err != nil {
			return err
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]Text, 0, len(keys))
		for _, k := range keys {
			if m[k] != "" {
				pairs = append(pairs, Text(k+": "+string(m[k])))
			}
		}
		*t = Text(joinNonEmpty(pairs, "; "))
	default:
		*t = Text(b)
	}
	return nil
}

// String 实现 fmt.Stringer
func (t Text) String() string { return string(t) }

// StringList 宽松的字符串列表：接受数组，也接受单个字符串
type StringList []string

// UnmarshalJSON 实现 json.Unmarshaler
func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = StringList{}
		return nil
	}

	if b[0] != '[' {
		var single Text
		if err := single.UnmarshalJSON(b); err != nil {
			return err
		}
		if single == "" {
			*l = StringList{}
		} else {
			*l = StringList{string(single)}
		}
		return nil
	}

	var items []Text
	if err := sonic.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, it := range items {
		if it != "" {
			out = append(out, string(it))
		}
	}
	*l = out
	return nil
}

func joinNonEmpty(parts []Text, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, string(p))
		}
	}
	return strings.Join(out, sep)
}
