package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误代码类型（便于机器识别和监控）
type ErrorCode string

const (
	// 配置相关错误
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG" // 配置缺失（如未配置任何API Key）
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG" // 配置无效

	// 上游调用错误
	ErrCodeProviderTransient ErrorCode = "PROVIDER_TRANSIENT" // 502/503/超时/网络中断
	ErrCodeKeysExhausted     ErrorCode = "KEYS_EXHAUSTED"     // 所有Key轮换/重试耗尽
	ErrCodeProviderFatal     ErrorCode = "PROVIDER_FATAL"     // 其他非2xx，不重试

	// 响应内容错误
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE" // 无法定位/修复JSON
	ErrCodeIncompleteResult  ErrorCode = "INCOMPLETE_RESULT"  // 结构合法但数据不完整

	// 持久化
	ErrCodePersistenceWrite ErrorCode = "PERSISTENCE_WRITE" // 缓存写入失败（仅记录日志）
	ErrCodeDBQuery          ErrorCode = "DB_QUERY"

	// 请求相关
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
)

// AppError 应用级错误结构（支持错误链和上下文信息）
type AppError struct {
	Code    ErrorCode      // 错误代码（机器可识别）
	Message string         // 错误消息（内部，可能包含上游细节）
	Err     error          // 底层错误
	Context map[string]any // 错误上下文（便于调试和监控）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现错误链
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，支持 errors.Is(err, &AppError{Code: ...})
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// WithContext 添加错误上下文
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Sentinel 值，仅用于 errors.Is 比较
var (
	ErrMissingConfig     = &AppError{Code: ErrCodeMissingConfig}
	ErrInvalidConfig     = &AppError{Code: ErrCodeInvalidConfig}
	ErrProviderTransient = &AppError{Code: ErrCodeProviderTransient}
	ErrKeysExhausted     = &AppError{Code: ErrCodeKeysExhausted}
	ErrProviderFatal     = &AppError{Code: ErrCodeProviderFatal}
	ErrMalformedResponse = &AppError{Code: ErrCodeMalformedResponse}
	ErrIncompleteResult  = &AppError{Code: ErrCodeIncompleteResult}
	ErrPersistenceWrite  = &AppError{Code: ErrCodePersistenceWrite}
	ErrBadRequest        = &AppError{Code: ErrCodeBadRequest}
	ErrUnauthorized      = &AppError{Code: ErrCodeUnauthorized}
	ErrNotFound          = &AppError{Code: ErrCodeNotFound}
)

// ============== 配置错误工厂函数 ==============

// MissingConfig 必需配置缺失（启动时快速失败）
func MissingConfig(name string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("required configuration %s is missing", name),
		Context: map[string]any{"name": name},
	}
}

// InvalidConfig 配置值非法
func InvalidConfig(name string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("configuration %s is invalid", name),
		Err:     err,
		Context: map[string]any{"name": name},
	}
}

// ============== 上游错误工厂函数 ==============

// ProviderTransient 可重试的上游错误
func ProviderTransient(provider string, status int, err error) *AppError {
	return &AppError{
		Code:    ErrCodeProviderTransient,
		Message: fmt.Sprintf("provider %s transient failure (status %d)", provider, status),
		Err:     err,
		Context: map[string]any{"provider": provider, "status": status},
	}
}

// KeysExhausted 所有Key均已尝试或处于冷却，携带最后一次错误
// rateLimited 表示最后一次失败是否为429
func KeysExhausted(provider string, keyCount int, rateLimited bool, last error) *AppError {
	return &AppError{
		Code:    ErrCodeKeysExhausted,
		Message: fmt.Sprintf("all %d keys for provider %s exhausted", keyCount, provider),
		Err:     last,
		Context: map[string]any{
			"provider":     provider,
			"key_count":    keyCount,
			"rate_limited": rateLimited,
		},
	}
}

// ProviderFatal 不可重试的上游错误
func ProviderFatal(provider string, status int, body string) *AppError {
	return &AppError{
		Code:    ErrCodeProviderFatal,
		Message: fmt.Sprintf("provider %s returned status %d", provider, status),
		Context: map[string]any{"provider": provider, "status": status, "body": body},
	}
}

// ============== 响应内容错误工厂函数 ==============

// MalformedResponse LLM响应中无法找到或修复JSON
func MalformedResponse(reason string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeMalformedResponse,
		Message: reason,
		Err:     err,
	}
}

// IncompleteResult 解析成功但未达到完整性阈值
func IncompleteResult(what string, got, want int) *AppError {
	return &AppError{
		Code:    ErrCodeIncompleteResult,
		Message: fmt.Sprintf("%s incomplete: got %d, want at least %d", what, got, want),
		Context: map[string]any{"what": what, "got": got, "want": want},
	}
}

// ============== 持久化错误工厂函数 ==============

// PersistenceWrite 缓存写入失败
func PersistenceWrite(namespace, key string, err error) *AppError {
	return &AppError{
		Code:    ErrCodePersistenceWrite,
		Message: fmt.Sprintf("failed to persist %s/%s", namespace, key),
		Err:     err,
		Context: map[string]any{"namespace": namespace, "key": key},
	}
}

// DBQueryError 数据库查询失败
func DBQueryError(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeDBQuery,
		Message: fmt.Sprintf("database query failed: %s", operation),
		Err:     err,
		Context: map[string]any{"operation": operation},
	}
}

// ============== 请求错误工厂函数 ==============

// BadRequest 请求参数错误（消息会直接返回给调用方）
func BadRequest(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized 未授权
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// NotFound 资源不存在
func NotFound(resource string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: resource + " not found"}
}

// ============== 对外映射 ==============

// publicMessages 对外错误文案（不包含任何上游细节）
var publicMessages = map[ErrorCode]string{
	ErrCodeMissingConfig:     "The service is not configured correctly. Please contact support.",
	ErrCodeInvalidConfig:     "The service is not configured correctly. Please contact support.",
	ErrCodeProviderTransient: "The data provider is temporarily unavailable. Please try again shortly.",
	ErrCodeKeysExhausted:     "Too many requests right now. Please try again in a minute.",
	ErrCodeProviderFatal:     "An unexpected error occurred while fetching data.",
	ErrCodeMalformedResponse: "An unexpected error occurred while processing the data.",
	ErrCodeIncompleteResult:  "We could not gather complete information. Please try again.",
	ErrCodePersistenceWrite:  "An unexpected error occurred.",
	ErrCodeDBQuery:           "An unexpected error occurred.",
	ErrCodeUnauthorized:      "Unauthorized.",
}

// As 提取 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf 返回错误码，非 AppError 返回空
func CodeOf(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// HTTPStatus 将错误映射为对外HTTP状态码
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeKeysExhausted:
		if limited, _ := appErr.Context["rate_limited"].(bool); limited {
			return http.StatusTooManyRequests
		}
		return http.StatusServiceUnavailable
	case ErrCodeProviderTransient, ErrCodeIncompleteResult:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 返回可展示给终端用户的错误消息
// BadRequest/NotFound 的消息由本服务生成，可以直接透出
func PublicMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "An unexpected error occurred."
	}
	switch appErr.Code {
	case ErrCodeBadRequest, ErrCodeNotFound:
		return appErr.Message
	}
	if msg, ok := publicMessages[appErr.Code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
