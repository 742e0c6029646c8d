package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env      string         `mapstructure:"env"` // 环境: development, production
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Vote     VoteConfig     `mapstructure:"vote"`
	Appeal   AppealConfig   `mapstructure:"appeal"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string  `mapstructure:"host"`
	Port           int     `mapstructure:"port"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`   // 每个客户端写接口的每秒请求数,0 表示不限流
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Path            string `mapstructure:"path"`   // sqlite 文件路径
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
}

// VoteConfig 投票配置
type VoteConfig struct {
	TokenSalt     string `mapstructure:"token_salt"`     // 回执令牌的 HMAC 盐
	MaxAmendments int    `mapstructure:"max_amendments"` // 每张选票允许修改的次数
}

// AppealConfig 申诉配置
type AppealConfig struct {
	WindowDays     int `mapstructure:"window_days"`      // 活动结束后可申诉的天数
	RateLimit      int `mapstructure:"rate_limit"`       // 滚动窗口内允许的申诉数
	RateWindowDays int `mapstructure:"rate_window_days"` // 滚动窗口天数
}

// NotifierConfig 领域事件通知配置
type NotifierConfig struct {
	Workers   int             `mapstructure:"workers"`
	QueueSize int             `mapstructure:"queue_size"`
	Webhooks  []WebhookConfig `mapstructure:"webhooks"`
}

// WebhookConfig Webhook 推送配置
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Events  []string          `mapstructure:"events"` // 为空表示订阅全部事件
	Auth    *WebhookAuth      `mapstructure:"auth"`
}

// WebhookAuth Webhook 认证配置
type WebhookAuth struct {
	Type  string `mapstructure:"type"` // bearer, basic, header
	Key   string `mapstructure:"key"`
	Token string `mapstructure:"token"`
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.promotion-vote")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if IsProduction(c) && c.Vote.TokenSalt == "" {
		return fmt.Errorf("vote.token_salt is required in production")
	}
	if c.Vote.MaxAmendments < 0 {
		return fmt.Errorf("vote.max_amendments must not be negative")
	}
	if c.Appeal.WindowDays <= 0 || c.Appeal.RateLimit <= 0 || c.Appeal.RateWindowDays <= 0 {
		return fmt.Errorf("appeal window, rate limit and rate window must be positive")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 5)
	v.SetDefault("server.rate_limit_burst", 10)

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "promotion-vote.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "promotion_vote")
	v.SetDefault("database.sslmode", "disable")

	// 数据库连接池配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 300)
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600)
		v.SetDefault("database.conn_max_idle_time", 600)
	}

	// 日志配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")

	// 投票与申诉规则
	v.SetDefault("vote.token_salt", "")
	v.SetDefault("vote.max_amendments", 2)
	v.SetDefault("appeal.window_days", 7)
	v.SetDefault("appeal.rate_limit", 2)
	v.SetDefault("appeal.rate_window_days", 30)

	// 事件通知
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("notifier.queue_size", 1000)
}
