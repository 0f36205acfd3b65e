package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	DB         DBConfig
	Postgres   PostgresConfig
	SQLite     SQLiteConfig
	DBPool     DBPoolConfig
	Redis      RedisConfig
	Analysis   AnalysisConfig
	Refresh    RefreshConfig
	Monitoring MonitoringConfig
}

// AppConfig 运行环境
type AppConfig struct {
	Env      string // production / developers
	LogLevel string
}

// Production JSON 日志
func (a AppConfig) Production() bool {
	return a.Env == "production"
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr string
}

// DBConfig 选择存储驱动
type DBConfig struct {
	Driver        string
	MigrationsDir string
}

// PostgreSQL 配置
type PostgresConfig struct {
	DSN string
}

// SQLiteConfig 单机部署 / 本地开发
type SQLiteConfig struct {
	Path string
}

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig Redis 配置（可选：提交锁 + 后台刷新队列）
type RedisConfig struct {
	Addr    string
	LockTTL time.Duration
}

// Enabled 是否配置了 Redis
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// URI 统一成 redis:// 形式，供 go-redis 与 asynq 解析
func (r RedisConfig) URI() string {
	if strings.HasPrefix(r.Addr, "redis://") || strings.HasPrefix(r.Addr, "rediss://") {
		return r.Addr
	}
	return "redis://" + r.Addr + "/0"
}

// AnalysisConfig 远程分析服务
type AnalysisConfig struct {
	BaseURL              string
	HealthTimeout        time.Duration
	StatusTimeout        time.Duration
	SubmitTimeout        time.Duration
	EventInfoTimeout     time.Duration
	EventInfoMaxAttempts int
	EventInfoRetryDelays []time.Duration
}

// RefreshConfig 后台进度刷新
type RefreshConfig struct {
	Enabled     bool
	Interval    time.Duration
	Concurrency int
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Enabled bool
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	// 允许从环境变量读取（优先级最高）
	v.AutomaticEnv()

	// 读取配置文件（如果存在）
	_ = v.ReadInConfig() // 忽略错误，因为可能只使用环境变量

	v.SetDefault("HTTP_ADDR", ":28080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", DBDriverPostgres)
	v.SetDefault("SQLITE_PATH", "analysis_hub.db")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", 5*time.Minute)
	v.SetDefault("LOCK_TTL", 6*time.Minute)
	v.SetDefault("ANALYSIS_SERVICE_URL", "http://localhost:8000/api/v1")
	v.SetDefault("ANALYSIS_HEALTH_TIMEOUT", 5*time.Second)
	v.SetDefault("ANALYSIS_STATUS_TIMEOUT", 10*time.Second)
	v.SetDefault("ANALYSIS_SUBMIT_TIMEOUT", 5*time.Minute)
	v.SetDefault("ANALYSIS_EVENT_INFO_TIMEOUT", 10*time.Second)
	v.SetDefault("EVENT_INFO_MAX_ATTEMPTS", 3)
	v.SetDefault("EVENT_INFO_RETRY_DELAYS", "100ms,200ms")
	v.SetDefault("REFRESH_ENABLED", true)
	v.SetDefault("REFRESH_INTERVAL", 15*time.Second)
	v.SetDefault("REFRESH_CONCURRENCY", 4)

	cfg := &Config{}

	cfg.App.Env = strings.ToLower(v.GetString("APP_ENV"))
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")
	// 开发模式默认 debug
	if cfg.App.Env == "developers" && !v.IsSet("LOG_LEVEL") {
		cfg.App.LogLevel = "debug"
	}

	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")

	// 存储
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	cfg.DB.MigrationsDir = v.GetString("MIGRATIONS_DIR")
	cfg.Postgres.DSN = v.GetString("POSTGRES_DSN")
	if cfg.DB.Driver == DBDriverPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	cfg.SQLite.Path = v.GetString("SQLITE_PATH")

	// 数据库连接池配置
	cfg.DBPool.MaxConns = v.GetInt32("DB_MAX_CONNS")
	cfg.DBPool.MinConns = v.GetInt32("DB_MIN_CONNS")
	cfg.DBPool.MaxConnLifetime = v.GetDuration("DB_MAX_CONN_LIFETIME")
	cfg.DBPool.MaxConnIdleTime = v.GetDuration("DB_MAX_CONN_IDLE_TIME")

	// Redis 配置
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.LockTTL = v.GetDuration("LOCK_TTL")

	// 分析服务
	cfg.Analysis.BaseURL = strings.TrimRight(v.GetString("ANALYSIS_SERVICE_URL"), "/")
	cfg.Analysis.HealthTimeout = v.GetDuration("ANALYSIS_HEALTH_TIMEOUT")
	cfg.Analysis.StatusTimeout = v.GetDuration("ANALYSIS_STATUS_TIMEOUT")
	cfg.Analysis.SubmitTimeout = v.GetDuration("ANALYSIS_SUBMIT_TIMEOUT")
	cfg.Analysis.EventInfoTimeout = v.GetDuration("ANALYSIS_EVENT_INFO_TIMEOUT")
	cfg.Analysis.EventInfoMaxAttempts = v.GetInt("EVENT_INFO_MAX_ATTEMPTS")
	delays, err := parseDurations(v.GetString("EVENT_INFO_RETRY_DELAYS"))
	if err != nil {
		return nil, fmt.Errorf("EVENT_INFO_RETRY_DELAYS: %w", err)
	}
	cfg.Analysis.EventInfoRetryDelays = delays

	// 后台刷新
	cfg.Refresh.Enabled = v.GetBool("REFRESH_ENABLED")
	cfg.Refresh.Interval = v.GetDuration("REFRESH_INTERVAL")
	cfg.Refresh.Concurrency = v.GetInt("REFRESH_CONCURRENCY")

	// 监控配置
	cfg.Monitoring.Enabled = v.GetBool("MONITORING_ENABLED")

	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DBDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("PostgreSQL DSN is required")
		}
	case DBDriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLite path is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}

	u, err := url.Parse(c.Analysis.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ANALYSIS_SERVICE_URL must be an http(s) URL (got %q)", c.Analysis.BaseURL)
	}
	if c.Analysis.HealthTimeout <= 0 || c.Analysis.StatusTimeout <= 0 || c.Analysis.SubmitTimeout <= 0 {
		return fmt.Errorf("analysis service timeouts must be positive")
	}
	if c.Analysis.EventInfoMaxAttempts < 1 {
		return fmt.Errorf("EVENT_INFO_MAX_ATTEMPTS must be >= 1")
	}
	if c.Refresh.Enabled && c.Redis.Enabled() && c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	return nil
}

// parseDurations 解析 "100ms,200ms"；"exponential" 返回空，由调用方改用指数退避
func parseDurations(raw string) ([]time.Duration, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "exponential") {
		return nil, nil
	}
	var out []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		if d < 0 {
			return nil, fmt.Errorf("negative delay %s", part)
		}
		out = append(out, d)
	}
	return out, nil
}
