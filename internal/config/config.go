package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"onebox/backend/internal/domain"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// IMAPConfig 定义邮箱采集会话的公共配置
type IMAPConfig struct {
	Folder         string        // 采集的邮箱文件夹，默认 "INBOX"
	BackfillWindow time.Duration // 回填时间窗口，默认 7 天
	AuthTimeout    time.Duration // 连接与认证的超时，默认 15s
	MinBackoff     time.Duration // 会话重启的最小退避，默认 1s
	MaxBackoff     time.Duration // 会话重启的最大退避，默认 2m
}

// ClassifierConfig 定义分类策略配置
type ClassifierConfig struct {
	Mode         string        // 分类策略: "rule"（规则匹配）或 "llm"（外部模型）
	Endpoint     string        // LLM 接口地址（chat completions 兼容）
	APIKey       string        // LLM 接口密钥
	Model        string        // LLM 模型名
	Timeout      time.Duration // 单次分类调用超时，默认 10s
	CacheSize    int           // 分类结果缓存条目上限，默认 2048
	CacheTTL     time.Duration // 分类结果缓存有效期，默认 1h
}

// ElasticConfig 定义 Elasticsearch 索引存储配置
type ElasticConfig struct {
	Addresses []string // 节点地址列表；为空时退回内存索引（开发环境）
	Username  string   // Basic Auth 用户名
	Password  string   // Basic Auth 密码
	Index     string   // 索引名，默认 "emails"
}

// RedisConfig 定义 Redis 采集状态存储配置
type RedisConfig struct {
	Address  string // Redis 服务地址；为空时仅用会话内存做进度记录
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// NotifyConfig 定义通知目标配置
type NotifyConfig struct {
	SlackWebhookURL string  // Slack Incoming Webhook 地址，留空禁用
	WebhookURL      string  // 通用 Webhook 地址，留空禁用
	WebhookSecret   string  // 通用 Webhook 的 HMAC 签名密钥，留空不签名
	Timeout         time.Duration // 单次投递超时，默认 10s
	RatePerMinute   int     // 每个目标每分钟的投递上限，默认 60
	Workers         int     // 投递协程池大小，默认 4
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空仅输出到标准输出
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig
	IMAP       IMAPConfig
	Accounts   []domain.Account // 采集的邮箱账户列表
	Classifier ClassifierConfig
	Elastic    ElasticConfig
	Redis      RedisConfig
	Notify     NotifyConfig
	CORS       CORSConfig
	Log        LogConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ONEBOX_
// 例如: ONEBOX_SERVER_PORT, ONEBOX_ELASTIC_ADDRESSES
//
// 账户列表通过 ONEBOX_IMAP_ACCOUNTS 提供，取值为 JSON 数组：
//
//	[{"id":"a@example.com","host":"imap.example.com","port":993,
//	  "username":"a@example.com","password":"...","use_tls":true}]
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("onebox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("imap.folder", "INBOX")
	viper.SetDefault("imap.backfill_days", 7)
	viper.SetDefault("imap.auth_timeout", "15s")
	viper.SetDefault("imap.min_backoff", "1s")
	viper.SetDefault("imap.max_backoff", "2m")
	viper.SetDefault("imap.accounts", "")
	viper.SetDefault("classifier.mode", "rule")
	viper.SetDefault("classifier.endpoint", "")
	viper.SetDefault("classifier.api_key", "")
	viper.SetDefault("classifier.model", "")
	viper.SetDefault("classifier.timeout", "10s")
	viper.SetDefault("classifier.cache_size", 2048)
	viper.SetDefault("classifier.cache_ttl", "1h")
	viper.SetDefault("elastic.addresses", "")
	viper.SetDefault("elastic.username", "")
	viper.SetDefault("elastic.password", "")
	viper.SetDefault("elastic.index", "emails")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("notify.slack_webhook_url", "")
	viper.SetDefault("notify.webhook_url", "")
	viper.SetDefault("notify.webhook_secret", "")
	viper.SetDefault("notify.timeout", "10s")
	viper.SetDefault("notify.rate_per_minute", 60)
	viper.SetDefault("notify.workers", 4)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.log_file", "")

	backfillDays := viper.GetInt("imap.backfill_days")
	if backfillDays <= 0 {
		backfillDays = 7
	}

	authTimeout, err := time.ParseDuration(viper.GetString("imap.auth_timeout"))
	if err != nil {
		authTimeout = 15 * time.Second
	}
	minBackoff, err := time.ParseDuration(viper.GetString("imap.min_backoff"))
	if err != nil {
		minBackoff = time.Second
	}
	maxBackoff, err := time.ParseDuration(viper.GetString("imap.max_backoff"))
	if err != nil {
		maxBackoff = 2 * time.Minute
	}

	classifierTimeout, err := time.ParseDuration(viper.GetString("classifier.timeout"))
	if err != nil {
		classifierTimeout = 10 * time.Second
	}
	cacheTTL, err := time.ParseDuration(viper.GetString("classifier.cache_ttl"))
	if err != nil {
		cacheTTL = time.Hour
	}

	notifyTimeout, err := time.ParseDuration(viper.GetString("notify.timeout"))
	if err != nil {
		notifyTimeout = 10 * time.Second
	}

	mode := strings.ToLower(viper.GetString("classifier.mode"))
	if mode != "rule" && mode != "llm" {
		return nil, fmt.Errorf("classifier.mode must be \"rule\" or \"llm\", got %q", mode)
	}
	if mode == "llm" && viper.GetString("classifier.endpoint") == "" {
		return nil, fmt.Errorf("classifier.endpoint is required when classifier.mode is \"llm\"")
	}

	accounts, err := parseAccounts(viper.GetString("imap.accounts"))
	if err != nil {
		return nil, err
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		IMAP: IMAPConfig{
			Folder:         viper.GetString("imap.folder"),
			BackfillWindow: time.Duration(backfillDays) * 24 * time.Hour,
			AuthTimeout:    authTimeout,
			MinBackoff:     minBackoff,
			MaxBackoff:     maxBackoff,
		},
		Accounts: accounts,
		Classifier: ClassifierConfig{
			Mode:      mode,
			Endpoint:  viper.GetString("classifier.endpoint"),
			APIKey:    viper.GetString("classifier.api_key"),
			Model:     viper.GetString("classifier.model"),
			Timeout:   classifierTimeout,
			CacheSize: viper.GetInt("classifier.cache_size"),
			CacheTTL:  cacheTTL,
		},
		Elastic: ElasticConfig{
			Addresses: parseList(viper.GetString("elastic.addresses")),
			Username:  viper.GetString("elastic.username"),
			Password:  viper.GetString("elastic.password"),
			Index:     viper.GetString("elastic.index"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Notify: NotifyConfig{
			SlackWebhookURL: viper.GetString("notify.slack_webhook_url"),
			WebhookURL:      viper.GetString("notify.webhook_url"),
			WebhookSecret:   viper.GetString("notify.webhook_secret"),
			Timeout:         notifyTimeout,
			RatePerMinute:   viper.GetInt("notify.rate_per_minute"),
			Workers:         viper.GetInt("notify.workers"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.log_file"),
		},
	}

	return cfg, nil
}

// parseAccounts 解析 JSON 格式的账户列表并逐个校验。
//
// 账户凭据缺失属于启动期致命错误，这是核心中唯一的进程级失败路径。
func parseAccounts(value string) ([]domain.Account, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("ONEBOX_IMAP_ACCOUNTS is required: no mailbox accounts configured")
	}

	var accounts []domain.Account
	if err := json.Unmarshal([]byte(value), &accounts); err != nil {
		return nil, fmt.Errorf("invalid ONEBOX_IMAP_ACCOUNTS: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("ONEBOX_IMAP_ACCOUNTS must contain at least one account")
	}

	seen := make(map[string]bool, len(accounts))
	for i := range accounts {
		if accounts[i].Port == 0 {
			accounts[i].Port = 993
		}
		if err := accounts[i].Validate(); err != nil {
			return nil, err
		}
		if seen[accounts[i].ID] {
			return nil, fmt.Errorf("duplicate account id %q", accounts[i].ID)
		}
		seen[accounts[i].ID] = true
	}

	return accounts, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 依次尝试当前目录与父目录；文件不存在时静默跳过。
func loadEnvFile() {
	candidates := []string{".env", filepath.Join("..", ".env")}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}
