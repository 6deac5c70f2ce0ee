package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"abroadPlan/internal/config"
	"abroadPlan/internal/testutil"
)

const testAdminPassword = "test_password_123"

type testEnv struct {
	srv     *Server
	handler http.Handler
	chat    *testutil.ChatServer
	search  *testutil.SearchServer
}

func newTestEnv(t *testing.T, authTokens []string, replies ...string) *testEnv {
	t.Helper()

	chat := testutil.NewChatServer(t, replies...)
	search := testutil.NewSearchServer(t, nil)

	cfg := &config.EnvConfig{
		Port:             "8080",
		AdminPassword:    testAdminPassword,
		AuthTokens:       authTokens,
		CORSOrigins:      []string{"https://planner.example.com"},
		LogBufferSize:    100,
		LogWorkers:       1,
		LogRetentionDays: 7,
		Providers: map[string]*config.ProviderConfig{
			config.ProviderLLM:    testutil.ProviderConfig(config.ProviderLLM, chat.URL),
			config.ProviderSearch: testutil.ProviderConfig(config.ProviderSearch, search.URL),
		},
	}

	srv, err := NewServer(cfg, testutil.SetupTestStore(t), nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &testEnv{srv: srv, handler: srv.Handler(), chat: chat, search: search}
}

// adminToken 登录并返回管理Token
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	req := testutil.MustNewJSONRequest(t, http.MethodPost, "/admin/login", map[string]string{"password": testAdminPassword})
	w := testutil.ServeHTTP(t, e.handler, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	resp := testutil.MustParseAPIResponse[struct {
		Token string `json:"token"`
	}](t, w.Body.Bytes())
	return resp.Data.Token
}

func (e *testEnv) adminGet(t *testing.T, method, target, token string) []byte {
	t.Helper()

	req := testutil.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := testutil.ServeHTTP(t, e.handler, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s status = %d body=%s", method, target, w.Code, w.Body.String())
	}
	return w.Body.Bytes()
}

const countryReply = `{"name":"Canada","overview":"Welcoming immigration policies.","pros":["Safe","Post-study work permit","Nature"]}`
