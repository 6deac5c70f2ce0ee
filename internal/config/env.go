package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "abroadPlan/internal/errors"
)

// EnvConfig 统一环境变量配置结构
type EnvConfig struct {
	// 服务配置
	Port          string
	GinMode       string
	AdminPassword string   // 为空时禁用管理API
	AuthTokens    []string // 为空时业务API不鉴权
	CORSOrigins   []string

	// 数据库配置（优先级：Postgres > MySQL > SQLite）
	SQLitePath  string
	JournalMode string
	MySQLDSN    string
	PostgresDSN string

	// 日志配置
	LogLevel         string
	LogBufferSize    int
	LogWorkers       int
	LogRetentionDays int

	// 链路追踪
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string

	// 上游Provider
	ConfigFile string
	Providers  map[string]*ProviderConfig
}

// LoadFromEnv 从环境变量加载配置并验证
// 若设置了 ABROAD_CONFIG，先读取YAML中的Provider参数，再叠加环境变量中的密钥
func LoadFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}

	// 服务配置
	cfg.Port = getEnvOrDefault("PORT", DefaultPort)
	cfg.GinMode = os.Getenv("GIN_MODE")
	cfg.AdminPassword = os.Getenv("ABROAD_ADMIN_PASS")
	cfg.AuthTokens = splitList(os.Getenv("ABROAD_AUTH"))
	cfg.CORSOrigins = splitList(getEnvOrDefault("ABROAD_CORS_ORIGINS", "*"))

	// 数据库配置
	cfg.SQLitePath = getEnvOrDefault("SQLITE_PATH", "data/abroad.db")
	cfg.JournalMode = getEnvOrDefault("SQLITE_JOURNAL_MODE", "WAL")
	cfg.MySQLDSN = os.Getenv("ABROAD_MYSQL")
	cfg.PostgresDSN = os.Getenv("DATABASE_URL")

	// 日志配置
	cfg.LogLevel = getEnvOrDefault("ABROAD_LOG_LEVEL", "info")
	cfg.LogBufferSize = getIntEnv("ABROAD_LOG_BUFFER", DefaultLogBufferSize)
	cfg.LogWorkers = getIntEnv("ABROAD_LOG_WORKERS", DefaultLogWorkers)
	cfg.LogRetentionDays = getIntEnv("ABROAD_LOG_RETENTION_DAYS", DefaultLogRetentionDays)

	// 链路追踪
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPInsecure = getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true)
	cfg.ServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", "abroad-plan")

	// Provider：默认值 → YAML覆盖 → 环境变量覆盖
	cfg.Providers = DefaultProviders()
	cfg.ConfigFile = os.Getenv("ABROAD_CONFIG")
	if cfg.ConfigFile != "" {
		if err := LoadProviderFile(cfg.ConfigFile, cfg.Providers); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Providers {
		p.applyEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return cfg, nil
}

// Validate 验证配置合法性
func (c *EnvConfig) Validate() error {
	portNum, err := strconv.Atoi(strings.TrimPrefix(c.Port, ":"))
	if err != nil || portNum < 1 || portNum > 65535 {
		return apperrors.InvalidConfig("PORT", fmt.Errorf("无效端口号: %s", c.Port))
	}

	if c.LogWorkers < 1 || c.LogWorkers > 16 {
		return apperrors.InvalidConfig("ABROAD_LOG_WORKERS", fmt.Errorf("超出合理范围 [1, 16]: %d", c.LogWorkers))
	}

	for _, name := range []string{ProviderLLM, ProviderSearch} {
		p, ok := c.Providers[name]
		if !ok {
			return apperrors.MissingConfig("provider " + name)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ListenAddr 返回 ":port" 形式的监听地址
func (c *EnvConfig) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// LoadKeys 按约定读取某个前缀的全部API Key
// 支持：PREFIX_API_KEY、PREFIX_API_KEY_1..N（连续编号）、PREFIX_API_KEYS（逗号分隔）
// 结果按出现顺序去重
func LoadKeys(prefix string) []string {
	var raw []string
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		raw = append(raw, splitList(v)...)
	}
	for i := 1; ; i++ {
		v := os.Getenv(fmt.Sprintf("%s_API_KEY_%d", prefix, i))
		if v == "" {
			break
		}
		raw = append(raw, strings.TrimSpace(v))
	}
	if v := os.Getenv(prefix + "_API_KEYS"); v != "" {
		raw = append(raw, splitList(v)...)
	}

	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// 辅助函数：获取环境变量或默认值
func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// 辅助函数：获取整数环境变量
func getIntEnv(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

// 辅助函数：获取时长环境变量（支持 "1500ms" 或纯数字毫秒）
func getBoolEnv(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(val); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(val); err == nil && d >= 0 {
		return d
	}
	return defaultValue
}

// 辅助函数：获取浮点环境变量
func getFloatEnv(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultValue
}

// splitList 逗号分隔并去除空白项
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
