package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"参数错误", BadRequest("country is required"), http.StatusBadRequest},
		{"未授权", Unauthorized("missing token"), http.StatusUnauthorized},
		{"限流耗尽", KeysExhausted("groq", 3, true, fmt.Errorf("429")), http.StatusTooManyRequests},
		{"非限流耗尽", KeysExhausted("groq", 3, false, fmt.Errorf("503")), http.StatusServiceUnavailable},
		{"暂时不可用", ProviderTransient("groq", 503, nil), http.StatusServiceUnavailable},
		{"数据不完整", IncompleteResult("programs", 1, 3), http.StatusServiceUnavailable},
		{"格式错误", MalformedResponse("no json", nil), http.StatusInternalServerError},
		{"配置缺失", MissingConfig("GROQ_API_KEY"), http.StatusInternalServerError},
		{"普通错误", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"包装后仍可识别", fmt.Errorf("wrap: %w", BadRequest("x")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublicMessageHidesProviderText(t *testing.T) {
	err := ProviderFatal("groq", 400, `{"error":"secret upstream detail"}`)
	msg := PublicMessage(err)
	if strings.Contains(msg, "secret") || strings.Contains(msg, "groq") {
		t.Fatalf("对外消息泄露上游细节: %q", msg)
	}

	bad := BadRequest("country is required")
	if PublicMessage(bad) != "country is required" {
		t.Errorf("BadRequest 消息应直接透出, got %q", PublicMessage(bad))
	}
}

func TestIsByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", KeysExhausted("serper", 2, true, nil))
	if !stderrors.Is(err, ErrKeysExhausted) {
		t.Fatal("errors.Is 应按错误码匹配")
	}
	if stderrors.Is(err, ErrProviderFatal) {
		t.Fatal("不同错误码不应匹配")
	}
	if CodeOf(err) != ErrCodeKeysExhausted {
		t.Errorf("CodeOf() = %q", CodeOf(err))
	}
}

func TestKeysExhaustedCarriesLastError(t *testing.T) {
	last := stderrors.New("rate limit reached")
	err := KeysExhausted("groq", 2, true, last)
	if !stderrors.Is(err, last) {
		t.Fatal("应保留最后一次错误")
	}
	if !strings.Contains(err.Error(), "rate limit reached") {
		t.Errorf("Error() 应包含最后一次错误: %s", err.Error())
	}
}
