package util

import "github.com/bytedance/sonic"

// MarshalJSON 使用sonic进行JSON序列化
func MarshalJSON(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// UnmarshalJSON 使用sonic进行JSON反序列化
func UnmarshalJSON(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// ValidJSON 判断是否为合法JSON文本
func ValidJSON(data []byte) bool {
	return sonic.Valid(data)
}
