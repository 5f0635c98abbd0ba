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

// MailConfig 定义收信域与附件策略配置
type MailConfig struct {
	AllowedDomains      []string // 允许创建一次性邮箱的域名列表
	MaxAttachmentSize   int64    // 单附件大小上限（字节），默认 5 MiB
	AllowedTypePrefixes []string // 附件 MIME 类型白名单前缀，空表示使用默认集合
}

// SMTPConfig 定义 SMTP 邮件接收服务器的配置
type SMTPConfig struct {
	Enabled       bool   // 是否启动内置 SMTP 接收端（管道入口独立于此开关）
	BindAddr      string // SMTP 服务监听地址，格式 "host:port"，默认 ":25"
	Domain        string // SMTP 服务器域名，用于 HELO/EHLO 响应
	MaxRcptPerMin int    // 单客户端 IP 每分钟允许的 RCPT 数量
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空表示只写标准输出
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 服务配置（用于 API 限流）
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis 限流，关闭时退化为进程内限流
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret string        // JWT 签名密钥，必须至少 32 字符
	Issuer string        // JWT 签发者标识，默认 "dropmail"
	Expiry time.Duration // 令牌有效期，默认 24 小时
}

// CleanupConfig 定义保留清理任务配置
type CleanupConfig struct {
	Interval time.Duration // 清理周期，默认 1 小时
	Workers  int           // 并发清理的用户数，默认 4
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Mail     MailConfig     // 收信域与附件策略配置
	SMTP     SMTPConfig     // SMTP 服务配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
	Cleanup  CleanupConfig  // 保留清理配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: DROPMAIL_
// 例如: DROPMAIL_SERVER_HOST, DROPMAIL_JWT_SECRET
func Load() (*Config, error) {
	return load(true)
}

// LoadReceiver 为管道入口加载配置
//
// receive-email 不对外提供 API，跳过 JWT secret 的强制校验。
func LoadReceiver() (*Config, error) {
	return load(false)
}

func load(requireJWTSecret bool) (*Config, error) {
	// .env 是可选的，加载失败静默忽略
	loadEnvFile()

	viper.SetEnvPrefix("dropmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mail.allowed_domains", "drop.mail")
	viper.SetDefault("mail.max_attachment_size", 5*1024*1024)
	viper.SetDefault("mail.allowed_type_prefixes", "")
	viper.SetDefault("smtp.enabled", false)
	viper.SetDefault("smtp.bind_addr", ":25")
	viper.SetDefault("smtp.domain", "drop.mail")
	viper.SetDefault("smtp.max_rcpt_per_min", 60)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
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
	viper.SetDefault("jwt.issuer", "dropmail")
	viper.SetDefault("jwt.expiry", "24h")
	viper.SetDefault("cleanup.interval", "1h")
	viper.SetDefault("cleanup.workers", 4)

	domainList := parseDomains(viper.GetString("mail.allowed_domains"))
	if len(domainList) == 0 {
		return nil, fmt.Errorf("mail.allowed_domains must not be empty")
	}

	maxAttachmentSize := viper.GetInt64("mail.max_attachment_size")
	if maxAttachmentSize <= 0 {
		maxAttachmentSize = 5 * 1024 * 1024
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	jwtExpiry, err := time.ParseDuration(viper.GetString("jwt.expiry"))
	if err != nil {
		jwtExpiry = 24 * time.Hour
	}

	cleanupInterval, err := time.ParseDuration(viper.GetString("cleanup.interval"))
	if err != nil {
		cleanupInterval = time.Hour
	}

	cleanupWorkers := viper.GetInt("cleanup.workers")
	if cleanupWorkers <= 0 {
		cleanupWorkers = 4
	}

	jwtSecret := viper.GetString("jwt.secret")

	if requireJWTSecret {
		// 安全检查：禁止使用默认的 JWT secret
		if jwtSecret == "change-me-in-production" {
			return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set DROPMAIL_JWT_SECRET environment variable")
		}

		// JWT secret 必须至少 32 字符
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mail: MailConfig{
			AllowedDomains:      domainList,
			MaxAttachmentSize:   maxAttachmentSize,
			AllowedTypePrefixes: parseList(viper.GetString("mail.allowed_type_prefixes")),
		},
		SMTP: SMTPConfig{
			Enabled:       viper.GetBool("smtp.enabled"),
			BindAddr:      viper.GetString("smtp.bind_addr"),
			Domain:        viper.GetString("smtp.domain"),
			MaxRcptPerMin: viper.GetInt("smtp.max_rcpt_per_min"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
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
			Expiry: jwtExpiry,
		},
		Cleanup: CleanupConfig{
			Interval: cleanupInterval,
			Workers:  cleanupWorkers,
		},
	}

	return cfg, nil
}

// parseDomains 将逗号分隔的域名字符串解析为小写域名数组
func parseDomains(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片，空项被丢弃
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
// 先找当前目录，再找父目录（从 backend/ 子目录运行时）。
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
