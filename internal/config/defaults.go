package config

import "time"

// HTTP服务器配置常量
const (
	// DefaultPort 默认监听端口
	DefaultPort = "8080"

	// DefaultMaxBodyBytes 入站请求体上限（CV文本走POST）
	DefaultMaxBodyBytes = 256 * 1024

	// MaxCVTextLength CV纯文本最大字符数
	MaxCVTextLength = 60000

	// DefaultShutdownTimeout 优雅关闭等待时间
	DefaultShutdownTimeout = 15 * time.Second
)

// 上游调用配置常量
const (
	// DefaultMaxRetries 单个Key上可重试错误（502/503/超时）的最大尝试次数
	DefaultMaxRetries = 3

	// DefaultRequestTimeout 单次上游请求的硬超时
	DefaultRequestTimeout = 45 * time.Second

	// DefaultKeyCooldown 429未携带重置时间时的默认冷却窗口
	DefaultKeyCooldown = 60 * time.Second

	// DefaultMaxCooldownWait 全部Key冷却时最多等待的时长，超过即报 KeysExhausted
	DefaultMaxCooldownWait = 10 * time.Second

	// DefaultBackoffInitial 指数退避起始间隔
	DefaultBackoffInitial = 500 * time.Millisecond

	// DefaultBackoffMax 指数退避单次上限
	DefaultBackoffMax = 8 * time.Second

	// DefaultLLMMinDelay LLM调度器相邻两次调用的最小间隔
	DefaultLLMMinDelay = 1 * time.Second

	// DefaultSearchMinDelay 搜索调度器最小间隔
	DefaultSearchMinDelay = 200 * time.Millisecond

	// MaxErrorBodyBytes 读取错误响应体的上限
	MaxErrorBodyBytes = 64 * 1024

	// MaxResponseBodyBytes 读取成功响应体的上限
	MaxResponseBodyBytes = 4 * 1024 * 1024
)

// HTTP客户端配置常量
const (
	// HTTPDialTimeout DNS解析+TCP连接建立超时
	HTTPDialTimeout = 30 * time.Second

	// HTTPKeepAliveInterval TCP keepalive间隔
	HTTPKeepAliveInterval = 15 * time.Second

	// HTTPTLSHandshakeTimeout TLS握手超时
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPMaxIdleConns 全局空闲连接池大小
	HTTPMaxIdleConns = 100

	// HTTPMaxIdleConnsPerHost 单host空闲连接数
	HTTPMaxIdleConnsPerHost = 5

	// HTTPMaxConnsPerHost 单host最大连接数
	HTTPMaxConnsPerHost = 50

	// HTTPIdleConnTimeout 空闲连接回收时间
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPResponseHeaderTimeout 等待响应头超时（LLM生成较慢，略小于单次请求硬超时）
	HTTPResponseHeaderTimeout = 40 * time.Second
)

// 缓存TTL常量
// 易变数据（生活成本、住宿、招聘）以小时计，稳定数据（签证、院校）以周计
const (
	TTLCountryDetails    = 12 * time.Hour
	TTLRecommendations   = 24 * time.Hour
	TTLUniversityDetails = 14 * 24 * time.Hour
	TTLUniversityList    = 14 * 24 * time.Hour
	TTLJobs              = 6 * time.Hour
	TTLScholarships      = 7 * 24 * time.Hour
	TTLVisa              = 30 * 24 * time.Hour
	TTLAccommodation     = 12 * time.Hour
	TTLCVParse           = 30 * 24 * time.Hour
)

// 日志系统配置常量
const (
	// DefaultLogBufferSize 默认日志缓冲区大小（条数）
	DefaultLogBufferSize = 1000

	// DefaultLogWorkers 默认日志Worker协程数
	// 保持1以保证写入顺序
	DefaultLogWorkers = 1

	// LogBatchSize 批量写入日志的大小（条数）
	LogBatchSize = 100

	// LogBatchTimeout 批量写入超时时间
	LogBatchTimeout = 1 * time.Second

	// LogFlushTimeout 单次日志刷盘的超时时间
	LogFlushTimeout = 300 * time.Millisecond

	// LogDropAlertThreshold 日志丢弃告警阈值
	LogDropAlertThreshold = 100

	// LogMaxMessageLength 单条日志消息最大长度
	LogMaxMessageLength = 2000

	// DefaultLogRetentionDays 上游调用日志保留天数
	DefaultLogRetentionDays = 7

	// LogCleanupInterval 日志清理间隔
	LogCleanupInterval = 1 * time.Hour
)

// 缓存维护配置常量
const (
	// CacheCleanupInterval 过期缓存清理间隔
	CacheCleanupInterval = 30 * time.Minute
)

// Token认证配置常量
const (
	// TokenRandomBytes Token随机字节数（生成64字符十六进制）
	TokenRandomBytes = 32

	// TokenExpiry 管理Token有效期
	TokenExpiry = 24 * time.Hour

	// TokenCleanupInterval Token清理间隔
	TokenCleanupInterval = 1 * time.Hour
)

// 数据库配置常量
const (
	// SQLiteConnMaxLifetime 连接最大生命周期
	SQLiteConnMaxLifetime = 5 * time.Minute

	// SQLMaxOpenConns MySQL/Postgres最大连接数
	SQLMaxOpenConns = 10

	// SQLMaxIdleConns MySQL/Postgres最大空闲连接数
	SQLMaxIdleConns = 10

	// StartupDBPingTimeout 启动时数据库连通性检查超时
	StartupDBPingTimeout = 10 * time.Second

	// StartupMigrationTimeout 启动时迁移超时
	StartupMigrationTimeout = 30 * time.Second
)
