package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/aevrHQ/ui/storage"
)

var (
	globalConfig *Config
	loadErr      error
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	CORSAllowOrigins   []string      `mapstructure:"cors_allow_origins"`

	// 上传配置
	QueueConcurrency    int           `mapstructure:"queue_concurrency"`
	UploadMaxSizeMB     int           `mapstructure:"upload_max_size_mb"`
	UploadMaxBatchFiles int           `mapstructure:"upload_max_batch_files"`
	UploadTimeout       time.Duration `mapstructure:"upload_timeout"`
	HTTPClientTimeout   time.Duration `mapstructure:"http_client_timeout"`

	// 提供者配置
	DefaultProvider   string                   `mapstructure:"default_provider"`
	MultiStrategy     string                   `mapstructure:"multi_strategy"`
	MultiPrimaryIndex int                      `mapstructure:"multi_primary_index"`
	Providers         []storage.ProviderConfig `mapstructure:"providers"`
	ProvidersJSON     string                   `mapstructure:"providers_json"`
	EnvProviders      []string                 `mapstructure:"env_providers"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 限流配置
	RateLimitRPS          float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst        int           `mapstructure:"rate_limit_burst"`
	RateLimitExpireTime   time.Duration `mapstructure:"rate_limit_expire_time"`
	MaxConcurrentRequests int64         `mapstructure:"max_concurrent_requests"`

	// 认证配置
	AuthEnabled   bool          `mapstructure:"auth_enabled"`
	AuthJWTSecret string        `mapstructure:"auth_jwt_secret"`
	AuthTokenTTL  time.Duration `mapstructure:"auth_token_ttl"`

	// 日志配置
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// InitConfig 初始化全局配置，配置文件路径来自 --config 参数
func InitConfig() error {
	once.Do(func() {
		globalConfig, loadErr = Load(viper.GetString("config_file_path"))
	})
	return loadErr
}

// Get 返回全局配置，InitConfig 之前调用返回默认配置
func Get() *Config {
	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}

// Default 只包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load 加载配置
// path 非空时读取该文件（yaml/json/toml/env 按扩展名识别），否则读取当前目录下存在的 .env；
// 环境变量优先级最高
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	default:
		if _, err := os.Stat(".env"); err == nil {
			v.SetConfigFile(".env")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read .env: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if cfg.ProvidersJSON != "" {
		var extra []storage.ProviderConfig
		if err := json.Unmarshal([]byte(cfg.ProvidersJSON), &extra); err != nil {
			return nil, fmt.Errorf("invalid providers_json: %w", err)
		}
		cfg.Providers = append(cfg.Providers, extra...)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// 服务器配置默认值
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_read_timeout", "30s")
	v.SetDefault("server_write_timeout", "5m")
	v.SetDefault("server_idle_timeout", "120s")
	v.SetDefault("cors_allow_origins", []string{"*"})

	// 上传配置默认值
	v.SetDefault("queue_concurrency", 3)
	v.SetDefault("upload_max_size_mb", 50)
	v.SetDefault("upload_max_batch_files", 20)
	v.SetDefault("upload_timeout", "2m")
	v.SetDefault("http_client_timeout", "2m")

	// 提供者配置默认值
	v.SetDefault("default_provider", "")
	v.SetDefault("multi_strategy", string(storage.StrategyFirstSuccess))
	v.SetDefault("multi_primary_index", 0)
	v.SetDefault("providers_json", "")
	v.SetDefault("env_providers", []string{})

	// 缓存提供者配置默认值
	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_redis_addr", "localhost:6379")
	v.SetDefault("cache_redis_password", "")
	v.SetDefault("cache_redis_db", 0)

	// 数据库配置默认值
	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_username", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "uploadkit")
	v.SetDefault("db_file_path", "")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", 3600)

	// 限流配置默认值
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("rate_limit_expire_time", "10m")
	v.SetDefault("max_concurrent_requests", 64)

	// 认证配置默认值
	v.SetDefault("auth_enabled", false)
	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("auth_token_ttl", "24h")

	// 日志配置默认值
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

func (c *Config) normalize() {
	c.CacheType = strings.ToLower(strings.TrimSpace(c.CacheType))
	c.DBType = strings.ToLower(strings.TrimSpace(c.DBType))
	c.MultiStrategy = strings.ToLower(strings.TrimSpace(c.MultiStrategy))

	// 环境变量中的列表可能是 "a, b" 形式
	kinds := c.EnvProviders[:0]
	for _, k := range c.EnvProviders {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kinds = append(kinds, k)
		}
	}
	c.EnvProviders = kinds
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error

	if _, err := storage.ParseStrategy(c.MultiStrategy); err != nil {
		errs = append(errs, fmt.Errorf("multi_strategy: %w", err))
	}
	if c.QueueConcurrency < 0 {
		errs = append(errs, errors.New("queue_concurrency must not be negative"))
	}
	if c.UploadMaxSizeMB <= 0 {
		errs = append(errs, errors.New("upload_max_size_mb must be positive"))
	}
	switch c.CacheType {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache_type: unsupported value %q", c.CacheType))
	}
	switch c.DBType {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Errorf("db_type: unsupported value %q", c.DBType))
	}
	if c.AuthEnabled && c.AuthJWTSecret == "" {
		errs = append(errs, errors.New("auth_jwt_secret is required when auth_enabled is true"))
	}
	for i, p := range c.Providers {
		if p.Type == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: type is required", i))
		}
	}

	return errors.Join(errs...)
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// UploadMaxBytes 单文件大小上限（字节）
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) << 20
}
