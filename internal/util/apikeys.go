// Package util 提供通用工具函数
package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaskAPIKey 将API Key脱敏为 "abcd...klmn" 格式（前4位 + ... + 后4位）
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// KeyFingerprint 返回Key的短指纹（sha256前12位十六进制）
// 用于冷却状态外部存储和管理接口，避免明文Key出现在任何持久化位置
func KeyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}
