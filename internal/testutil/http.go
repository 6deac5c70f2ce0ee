package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"abroadPlan/internal/util"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewRequest 创建 HTTP 请求
func NewRequest(method, target string, body []byte) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, target, nil)
	}
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

// MustNewJSONRequest 创建 JSON 请求，序列化失败时直接终止测试
func MustNewJSONRequest(t testing.TB, method, target string, v any) *http.Request {
	t.Helper()

	b, err := util.MarshalJSON(v)
	if err != nil {
		t.Fatalf("marshal json failed: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ServeHTTP 执行 HTTP 处理器并返回响应
func ServeHTTP(t testing.TB, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// MustUnmarshalJSON 反序列化 JSON，失败时终止测试
func MustUnmarshalJSON(t testing.TB, b []byte, v any) {
	t.Helper()
	if err := util.UnmarshalJSON(b, v); err != nil {
		t.Fatalf("unmarshal json failed: %v (body=%s)", err, b)
	}
}

// APIResponse 统一响应信封
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Cached  bool   `json:"cached"`
}

// MustParseAPIResponse 解析 API 响应，失败时终止测试
func MustParseAPIResponse[T any](t testing.TB, body []byte) APIResponse[T] {
	t.Helper()

	var resp APIResponse[T]
	MustUnmarshalJSON(t, body, &resp)
	return resp
}
