package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aevrHQ/ui/api/core"
	"github.com/aevrHQ/ui/cache"
	"github.com/aevrHQ/ui/config"
	"github.com/aevrHQ/ui/database"
	"github.com/aevrHQ/ui/database/repo/uploads"
	"github.com/aevrHQ/ui/internal/auth"
	"github.com/aevrHQ/ui/internal/history"
	"github.com/aevrHQ/ui/internal/metrics"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
)

// Container 依赖容器 - 管理所有组件的生命周期
type Container struct {
	config *config.Config
	logger *logrus.Logger

	cache    cache.Provider
	factory  *storage.Factory
	registry *storage.Registry
	queue    *queue.Queue

	db      *gorm.DB
	history *uploads.Repository

	promRegistry *prometheus.Registry
	metrics      *metrics.Metrics
	jwt          *auth.JWTService
}

// NewContainer 创建新的依赖容器
func NewContainer(cfg *config.Config, logger *logrus.Logger) *Container {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Container{
		config: cfg,
		logger: logger,
	}
}

// Init 初始化服务端需要的全部组件
func (c *Container) Init() error {
	if err := c.initCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize upload providers: %w", err)
	}
	if err := c.InitHistory(); err != nil {
		return fmt.Errorf("failed to initialize upload history: %w", err)
	}
	if err := c.initMetrics(); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	c.initQueue()
	if err := c.initAuth(); err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	return nil
}

// InitUploads 只初始化上传需要的组件（命令行上传使用）
func (c *Container) InitUploads() error {
	if err := c.initCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize upload providers: %w", err)
	}
	c.initQueue()
	return nil
}

func (c *Container) initCache() error {
	provider, err := cache.NewProvider(cache.Config{
		Type:     c.config.CacheType,
		Address:  c.config.CacheRedisAddr,
		Password: c.config.CacheRedisPassword,
		DB:       c.config.CacheRedisDB,
	})
	if err != nil {
		return err
	}
	c.cache = provider
	c.logger.WithField("type", provider.Name()).Debug("Cache provider initialized")
	return nil
}

func (c *Container) initStorage() error {
	c.factory = storage.NewFactory(storage.Deps{
		HTTPClient: storage.NewHTTPClient(c.config.HTTPClientTimeout),
		Cache:      c.cache,
		Logger:     c.logger,
	})

	var extra []storage.UploadProvider
	for _, kind := range c.config.EnvProviders {
		p, err := storage.ProviderFromEnv(storage.ProviderType(kind), c.factory)
		if err != nil {
			return fmt.Errorf("provider '%s' from environment: %w", kind, err)
		}
		if p == nil {
			c.logger.WithField("type", kind).Warn("Skipping environment provider: required variables are not set")
			continue
		}
		extra = append(extra, p)
	}

	strategy, err := storage.ParseStrategy(c.config.MultiStrategy)
	if err != nil {
		return err
	}

	registry, err := storage.NewRegistry(c.factory, storage.RegistryConfig{
		Providers:    c.config.Providers,
		Extra:        extra,
		Default:      c.config.DefaultProvider,
		Strategy:     strategy,
		PrimaryIndex: c.config.MultiPrimaryIndex,
	}, c.logger)
	if err != nil {
		return err
	}
	if len(registry.Names()) == 0 {
		c.logger.Warn("No upload provider configured; uploads will be rejected")
	} else {
		c.logger.WithField("providers", strings.Join(registry.Names(), ",")).Info("Upload providers ready")
	}
	c.registry = registry
	return nil
}

// InitHistory 打开数据库并迁移上传历史表，db_type 为 none 时跳过
func (c *Container) InitHistory() error {
	if c.history != nil {
		return nil
	}
	db, err := database.NewDB(c.config, c.logger)
	if errors.Is(err, database.ErrDisabled) {
		c.logger.Info("Upload history disabled")
		return nil
	}
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	c.db = db
	c.history = uploads.NewRepository(db)
	return nil
}

func (c *Container) initMetrics() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	c.promRegistry = reg
	c.metrics = m
	return nil
}

func (c *Container) initQueue() {
	opts := []queue.Option{queue.WithLogger(c.logger.WithField("component", "queue"))}
	if c.metrics != nil {
		opts = append(opts, queue.OnSettle(c.metrics.ObserveSettlement))
	}
	if c.history != nil {
		opts = append(opts, queue.OnSettle(history.NewRecorder(c.history, c.logger).Record))
	}

	c.queue = queue.New(c.config.QueueConcurrency, opts...)
	if c.metrics != nil {
		if err := c.metrics.RegisterQueue(c.queue); err != nil {
			c.logger.WithError(err).Warn("Failed to register queue metrics")
		}
	}
}

func (c *Container) initAuth() error {
	if !c.config.AuthEnabled {
		c.logger.Warn("API authentication disabled")
		return nil
	}
	svc, err := auth.NewJWTService(c.config.AuthJWTSecret, c.config.AuthTokenTTL)
	if err != nil {
		return err
	}
	c.jwt = svc
	return nil
}

// RouterDependencies 组装 HTTP 路由依赖
func (c *Container) RouterDependencies() *core.RouterDependencies {
	deps := &core.RouterDependencies{
		Config:   c.config,
		Registry: c.registry,
		Queue:    c.queue,
		DB:       c.db,
		History:  c.history,
		Cache:    c.cache,
		Metrics:  c.metrics,
		JWT:      c.jwt,
		Logger:   c.logger,
	}
	if c.promRegistry != nil {
		deps.Gatherer = c.promRegistry
	}
	return deps
}

// Registry 提供者注册表
func (c *Container) Registry() *storage.Registry {
	return c.registry
}

// Factory 提供者工厂
func (c *Container) Factory() *storage.Factory {
	return c.factory
}

// Queue 上传队列
func (c *Container) Queue() *queue.Queue {
	return c.queue
}

// History 上传历史仓库，未启用时为 nil
func (c *Container) History() *uploads.Repository {
	return c.history
}

// Close 关闭所有资源
func (c *Container) Close() error {
	var errs []error
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.db != nil {
		if err := database.Close(c.db); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
