package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "abroadPlan/internal/errors"

	"gopkg.in/yaml.v3"
)

// Provider 名称
const (
	ProviderLLM    = "llm"
	ProviderSearch = "search"
)

// 鉴权头风格
const (
	AuthBearer = "bearer"    // Authorization: Bearer <key>
	AuthHeader = "x-api-key" // X-API-KEY: <key>
)

// ProviderConfig 单个上游API的调用参数
// 密钥只来自环境变量，不写入YAML
type ProviderConfig struct {
	Name            string        `yaml:"-"`
	KeyPrefix       string        `yaml:"key_prefix"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	AuthStyle       string        `yaml:"auth_style"`
	MinDelay        time.Duration `yaml:"min_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	DefaultCooldown time.Duration `yaml:"default_cooldown"`
	MaxCooldownWait time.Duration `yaml:"max_cooldown_wait"`
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`

	Keys []string `yaml:"-"`
}

type providerFile struct {
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// DefaultProviders 内置的两个上游：OpenAI兼容的Chat接口与Serper兼容的搜索接口
func DefaultProviders() map[string]*ProviderConfig {
	return map[string]*ProviderConfig{
		ProviderLLM: {
			Name:            ProviderLLM,
			KeyPrefix:       "GROQ",
			BaseURL:         "https://api.groq.com/openai/v1",
			Model:           "llama-3.3-70b-versatile",
			AuthStyle:       AuthBearer,
			MinDelay:        DefaultLLMMinDelay,
			Timeout:         DefaultRequestTimeout,
			MaxRetries:      DefaultMaxRetries,
			DefaultCooldown: DefaultKeyCooldown,
			MaxCooldownWait: DefaultMaxCooldownWait,
			Temperature:     0.3,
			MaxTokens:       4096,
		},
		ProviderSearch: {
			Name:            ProviderSearch,
			KeyPrefix:       "SERPER",
			BaseURL:         "https://google.serper.dev",
			AuthStyle:       AuthHeader,
			MinDelay:        DefaultSearchMinDelay,
			Timeout:         30 * time.Second,
			MaxRetries:      DefaultMaxRetries,
			DefaultCooldown: DefaultKeyCooldown,
			MaxCooldownWait: DefaultMaxCooldownWait,
		},
	}
}

// LoadProviderFile 读取YAML并覆盖已有Provider的非零字段
func LoadProviderFile(path string, into map[string]*ProviderConfig) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 路径来自运维配置
	if err != nil {
		return apperrors.InvalidConfig("ABROAD_CONFIG", fmt.Errorf("failed to read config file: %w", err))
	}

	var file providerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return apperrors.InvalidConfig("ABROAD_CONFIG", fmt.Errorf("failed to parse config file: %w", err))
	}

	for name, override := range file.Providers {
		if override == nil {
			continue
		}
		base, ok := into[name]
		if !ok {
			base = &ProviderConfig{
				Name:            name,
				AuthStyle:       AuthBearer,
				MaxRetries:      DefaultMaxRetries,
				Timeout:         DefaultRequestTimeout,
				DefaultCooldown: DefaultKeyCooldown,
				MaxCooldownWait: DefaultMaxCooldownWait,
			}
			into[name] = base
		}
		base.merge(override)
	}
	return nil
}

func (p *ProviderConfig) merge(o *ProviderConfig) {
	if o.KeyPrefix != "" {
		p.KeyPrefix = o.KeyPrefix
	}
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
	}
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.AuthStyle != "" {
		p.AuthStyle = strings.ToLower(o.AuthStyle)
	}
	if o.MinDelay > 0 {
		p.MinDelay = o.MinDelay
	}
	if o.Timeout > 0 {
		p.Timeout = o.Timeout
	}
	if o.MaxRetries > 0 {
		p.MaxRetries = o.MaxRetries
	}
	if o.DefaultCooldown > 0 {
		p.DefaultCooldown = o.DefaultCooldown
	}
	if o.MaxCooldownWait > 0 {
		p.MaxCooldownWait = o.MaxCooldownWait
	}
	if o.Temperature > 0 {
		p.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
}

// applyEnv 叠加环境变量：<PREFIX>_BASE_URL、<PREFIX>_MODEL、<PREFIX>_MIN_DELAY 等，以及密钥
func (p *ProviderConfig) applyEnv() {
	prefix := p.KeyPrefix
	if prefix == "" {
		prefix = strings.ToUpper(p.Name)
		p.KeyPrefix = prefix
	}
	p.BaseURL = strings.TrimRight(getEnvOrDefault(prefix+"_BASE_URL", p.BaseURL), "/")
	p.Model = getEnvOrDefault(prefix+"_MODEL", p.Model)
	p.MinDelay = getDurationEnv(prefix+"_MIN_DELAY", p.MinDelay)
	p.Timeout = getDurationEnv(prefix+"_TIMEOUT", p.Timeout)
	p.MaxRetries = getIntEnv(prefix+"_MAX_RETRIES", p.MaxRetries)
	p.DefaultCooldown = getDurationEnv(prefix+"_COOLDOWN", p.DefaultCooldown)
	p.Temperature = getFloatEnv(prefix+"_TEMPERATURE", p.Temperature)
	p.MaxTokens = getIntEnv(prefix+"_MAX_TOKENS", p.MaxTokens)
	p.Keys = LoadKeys(prefix)
}

// Validate 密钥为空即为配置错误（启动时快速失败）
func (p *ProviderConfig) Validate() error {
	if len(p.Keys) == 0 {
		return apperrors.MissingConfig(p.KeyPrefix + "_API_KEY")
	}
	if p.BaseURL == "" {
		return apperrors.MissingConfig(p.KeyPrefix + "_BASE_URL")
	}
	if p.AuthStyle != AuthBearer && p.AuthStyle != AuthHeader {
		return apperrors.InvalidConfig(p.KeyPrefix+"_AUTH_STYLE", fmt.Errorf("unknown auth style %q", p.AuthStyle))
	}
	if p.Timeout <= 0 {
		return apperrors.InvalidConfig(p.KeyPrefix+"_TIMEOUT", fmt.Errorf("timeout must be positive"))
	}
	if p.MaxRetries < 1 || p.MaxRetries > 10 {
		return apperrors.InvalidConfig(p.KeyPrefix+"_MAX_RETRIES", fmt.Errorf("超出合理范围 [1, 10]: %d", p.MaxRetries))
	}
	return nil
}
