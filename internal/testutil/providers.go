package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"abroadPlan/internal/config"
	"abroadPlan/internal/provider"
	"abroadPlan/internal/util"
)

// ChatServer 脚本化的 OpenAI 兼容上游
// 按顺序返回 Replies，用完后重复最后一条；Status 非零时直接返回该状态码
type ChatServer struct {
	*httptest.Server

	mu      sync.Mutex
	replies []string
	prompts []string
	status  int
	calls   atomic.Int32
}

// NewChatServer 启动假的 chat completions 服务
func NewChatServer(t testing.TB, replies ...string) *ChatServer {
	t.Helper()

	s := &ChatServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *ChatServer) handle(w http.ResponseWriter, r *http.Request) {
	n := int(s.calls.Add(1))

	var req struct {
		Messages []provider.Message `json:"messages"`
	}
	b, _ := io.ReadAll(r.Body)
	_ = util.UnmarshalJSON(b, &req)

	s.mu.Lock()
	if len(req.Messages) > 0 {
		s.prompts = append(s.prompts, req.Messages[len(req.Messages)-1].Content)
	}
	status := s.status
	reply := ""
	if len(s.replies) > 0 {
		reply = s.replies[min(n, len(s.replies))-1]
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"scripted failure"}}`))
		return
	}

	body, _ := util.MarshalJSON(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"},
		},
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// SetStatus 之后的请求都返回该状态码（0 恢复正常）
func (s *ChatServer) SetStatus(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Calls 收到的请求数
func (s *ChatServer) Calls() int { return int(s.calls.Load()) }

// Prompts 收到的用户消息
func (s *ChatServer) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// SearchServer 假的 Serper 兼容上游
// 图片查询包含 FailImagesFor 中的任一子串时返回 502
type SearchServer struct {
	*httptest.Server

	Organic       []provider.OrganicResult
	FailImagesFor []string
	calls         atomic.Int32
}

// NewSearchServer 启动假的搜索服务
func NewSearchServer(t testing.TB, organic []provider.OrganicResult, failImagesFor ...string) *SearchServer {
	t.Helper()

	s := &SearchServer{Organic: organic, FailImagesFor: failImagesFor}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *SearchServer) handle(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)

	var req struct {
		Q string `json:"q"`
	}
	b, _ := io.ReadAll(r.Body)
	_ = util.UnmarshalJSON(b, &req)

	var payload any
	switch r.URL.Path {
	case "/search":
		payload = map[string]any{"organic": s.Organic}
	case "/images":
		for _, bad := range s.FailImagesFor {
			if bad != "" && strings.Contains(strings.ToLower(req.Q), strings.ToLower(bad)) {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
		}
		payload = map[string]any{"images": []provider.ImageResult{
			{Title: req.Q, ImageURL: "https://img.test/" + util.NormalizeKeyPart(req.Q) + ".jpg"},
		}}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, _ := util.MarshalJSON(payload)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// Calls 收到的请求数
func (s *SearchServer) Calls() int { return int(s.calls.Load()) }

// ProviderConfig 指向测试服务器的 Provider 配置（单Key、零间隔、单次重试）
func ProviderConfig(name, baseURL string, keys ...string) *config.ProviderConfig {
	if len(keys) == 0 {
		keys = []string{"test-key-" + name}
	}
	auth := config.AuthBearer
	if name == config.ProviderSearch {
		auth = config.AuthHeader
	}
	return &config.ProviderConfig{
		Name:       name,
		BaseURL:    baseURL,
		Model:      "test-model",
		AuthStyle:  auth,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		MaxTokens:  1024,
		Keys:       keys,
	}
}
