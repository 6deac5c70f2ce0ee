package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	apperrors "abroadPlan/internal/errors"
)

func setProviderKeys(t *testing.T) {
	t.Helper()
	t.Setenv("GROQ_API_KEY", "gsk_primary")
	t.Setenv("SERPER_API_KEY", "serper_primary")
}

func TestLoadKeys(t *testing.T) {
	t.Setenv("TESTP_API_KEY", "k0, k1")
	t.Setenv("TESTP_API_KEY_1", "k2")
	t.Setenv("TESTP_API_KEY_2", "k1")
	t.Setenv("TESTP_API_KEY_3", "k3")
	t.Setenv("TESTP_API_KEYS", "k4,,k0")

	got := LoadKeys("TESTP")
	want := []string{"k0", "k1", "k2", "k3", "k4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("LoadKeys() = %v, want %v", got, want)
	}
}

func TestLoadKeysStopsAtGap(t *testing.T) {
	t.Setenv("GAPP_API_KEY_1", "a")
	t.Setenv("GAPP_API_KEY_3", "c")

	got := LoadKeys("GAPP")
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("编号不连续时应停止读取, got %v", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("缺少密钥时快速失败", func(t *testing.T) {
		t.Setenv("GROQ_API_KEY", "")
		t.Setenv("SERPER_API_KEY", "serper_primary")
		_, err := LoadFromEnv()
		if err == nil {
			t.Fatal("期望配置错误")
		}
		if !stderrors.Is(err, apperrors.ErrMissingConfig) {
			t.Errorf("期望 MISSING_CONFIG, got %v", err)
		}
	})

	t.Run("默认值", func(t *testing.T) {
		setProviderKeys(t)
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v", err)
		}
		if cfg.ListenAddr() != ":8080" {
			t.Errorf("ListenAddr() = %s", cfg.ListenAddr())
		}
		llm := cfg.Providers[ProviderLLM]
		if llm.AuthStyle != AuthBearer || llm.MaxRetries != DefaultMaxRetries {
			t.Errorf("LLM默认配置错误: %+v", llm)
		}
		if cfg.Providers[ProviderSearch].AuthStyle != AuthHeader {
			t.Error("搜索Provider应使用 X-API-KEY 头")
		}
	})

	t.Run("环境变量覆盖", func(t *testing.T) {
		setProviderKeys(t)
		t.Setenv("GROQ_MIN_DELAY", "1500")
		t.Setenv("GROQ_BASE_URL", "http://localhost:9999/v1/")
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv() error = %v", err)
		}
		llm := cfg.Providers[ProviderLLM]
		if llm.MinDelay != 1500*time.Millisecond {
			t.Errorf("MinDelay = %v", llm.MinDelay)
		}
		if llm.BaseURL != "http://localhost:9999/v1" {
			t.Errorf("BaseURL 应去掉尾部斜杠: %s", llm.BaseURL)
		}
	})

	t.Run("非法端口", func(t *testing.T) {
		setProviderKeys(t)
		t.Setenv("PORT", "70000")
		if _, err := LoadFromEnv(); err == nil {
			t.Fatal("期望端口校验失败")
		}
	})
}

func TestLoadProviderFile(t *testing.T) {
	setProviderKeys(t)
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  llm:
    model: mixtral-8x7b
    min_delay: 2s
    max_retries: 5
  search:
    timeout: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ABROAD_CONFIG", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	llm := cfg.Providers[ProviderLLM]
	if llm.Model != "mixtral-8x7b" || llm.MinDelay != 2*time.Second || llm.MaxRetries != 5 {
		t.Errorf("YAML覆盖未生效: %+v", llm)
	}
	if llm.BaseURL == "" {
		t.Error("未覆盖字段应保留默认值")
	}
	if cfg.Providers[ProviderSearch].Timeout != 10*time.Second {
		t.Errorf("search timeout = %v", cfg.Providers[ProviderSearch].Timeout)
	}
}

func TestLoadProviderFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("providers: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := LoadProviderFile(path, DefaultProviders())
	if !stderrors.Is(err, apperrors.ErrInvalidConfig) {
		t.Fatalf("期望 INVALID_CONFIG, got %v", err)
	}
}
