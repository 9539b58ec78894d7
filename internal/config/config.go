package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// LegacyConfig 定义遗产访问子系统的业务配置
type LegacyConfig struct {
	BaseURL             string        // 对外链接基址，用于拼接验证/解锁/取消链接
	SweepInterval       time.Duration // 服务内置不活跃扫描的执行间隔
	ReminderInterval    time.Duration // 服务内置提醒扫描的执行间隔
	PublicRatePerMinute int           // 公开端点（验证/解锁）每 IP 每分钟限额
}

// MailConfig 定义出站邮件配置
type MailConfig struct {
	Driver   string // "smtp" 或 "log"（开发模式仅记录日志）
	Host     string // SMTP 中继地址
	Port     int    // SMTP 端口，默认 587
	Username string
	Password string
	From     string // 发件人地址
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空仅输出到控制台
}

// DatabaseConfig 定义 SQL 数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空不启用
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 存储配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis 存储
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义承载令牌验证配置（身份协作方）
type JWTConfig struct {
	Secret string // JWT 签名密钥，必须至少 32 字符
	Issuer string // JWT 签发者标识，默认 "heritage"
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Legacy   LegacyConfig
	Mail     MailConfig
	CORS     CORSConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: HERITAGE_
// 例如: HERITAGE_SERVER_HOST, HERITAGE_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("heritage")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("legacy.base_url", "https://heritage.local")
	viper.SetDefault("legacy.sweep_interval", "1h")
	viper.SetDefault("legacy.reminder_interval", "24h")
	viper.SetDefault("legacy.public_rate_per_minute", 30)
	viper.SetDefault("mail.driver", "log")
	viper.SetDefault("mail.host", "localhost")
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("mail.username", "")
	viper.SetDefault("mail.password", "")
	viper.SetDefault("mail.from", "no-reply@heritage.local")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.log_file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "heritage")

	sweepInterval, err := time.ParseDuration(viper.GetString("legacy.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid legacy.sweep_interval: %w", err)
	}

	reminderInterval, err := time.ParseDuration(viper.GetString("legacy.reminder_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid legacy.reminder_interval: %w", err)
	}

	baseURL := strings.TrimRight(viper.GetString("legacy.base_url"), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("legacy.base_url must not be empty")
	}

	publicRate := viper.GetInt("legacy.public_rate_per_minute")
	if publicRate <= 0 {
		publicRate = 30
	}

	mailDriver := viper.GetString("mail.driver")
	if mailDriver != "smtp" && mailDriver != "log" {
		return nil, fmt.Errorf("invalid mail.driver %q: must be smtp or log", mailDriver)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set HERITAGE_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Legacy: LegacyConfig{
			BaseURL:             baseURL,
			SweepInterval:       sweepInterval,
			ReminderInterval:    reminderInterval,
			PublicRatePerMinute: publicRate,
		},
		Mail: MailConfig{
			Driver:   mailDriver,
			Host:     viper.GetString("mail.host"),
			Port:     viper.GetInt("mail.port"),
			Username: viper.GetString("mail.username"),
			Password: viper.GetString("mail.password"),
			From:     viper.GetString("mail.from"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.log_file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: viper.GetString("jwt.issuer"),
		},
	}

	return cfg, nil
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
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
