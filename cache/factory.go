package cache

import (
	"fmt"
)

// Config 缓存配置
type Config struct {
	Type        string // "memory" or "redis"
	NumCounters int64  // memory only
	MaxCost     int64  // memory only
	BufferItems int64  // memory only
	Metrics     bool   // memory only
	Address     string // redis only
	Password    string // redis only
	DB          int    // redis only
	PoolSize    int    // redis only
}

// NewProvider 按类型创建缓存提供者，类型为空时使用内存缓存
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Type {
	case "", "memory":
		memConfig := MemoryConfig{
			NumCounters: cfg.NumCounters,
			MaxCost:     cfg.MaxCost,
			BufferItems: cfg.BufferItems,
			Metrics:     cfg.Metrics,
		}
		if memConfig.NumCounters == 0 {
			memConfig.NumCounters = 100000
		}
		if memConfig.MaxCost == 0 {
			memConfig.MaxCost = 64 << 20 // 64MB
		}
		if memConfig.BufferItems == 0 {
			memConfig.BufferItems = 64
		}
		return NewMemoryCache(memConfig)
	case "redis":
		if cfg.Address == "" {
			cfg.Address = "localhost:6379"
		}
		return NewRedisCache(RedisConfig{
			Address:  cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
