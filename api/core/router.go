package core

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aevrHQ/ui/api/common"
	"github.com/aevrHQ/ui/api/handler/uploads"
	"github.com/aevrHQ/ui/api/middleware"
	"github.com/aevrHQ/ui/cache"
	"github.com/aevrHQ/ui/config"
	historyRepo "github.com/aevrHQ/ui/database/repo/uploads"
	"github.com/aevrHQ/ui/internal/auth"
	"github.com/aevrHQ/ui/internal/metrics"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Config   *config.Config
	Registry *storage.Registry
	Queue    *queue.Queue
	DB       *gorm.DB
	History  *historyRepo.Repository
	Cache    cache.Provider
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	JWT      *auth.JWTService
	Logger   logrus.FieldLogger
}

// NewRouter 创建 gin 路由，返回的清理函数停止限流器后台任务
func NewRouter(deps *RouterDependencies) (*gin.Engine, func()) {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(corsConfig(cfg.CORSAllowOrigins)))
	_ = router.SetTrustedProxies(nil)

	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}

	// 限制上传文件大小
	router.MaxMultipartMemory = 32 << 20

	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		apiRateLimiter.StopCleanup()
	}

	registerBasicRoutes(router, deps)
	registerAPIRoutes(router, deps, cfg, logger, apiRateLimiter)

	return router, cleanup
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.DB, deps.Cache, deps.Registry)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies, cfg *config.Config, logger logrus.FieldLogger, limiter *middleware.IPRateLimiter) {
	uploadHandler := uploads.NewHandler(deps.Registry, deps.Queue, deps.History, uploads.Limits{
		MaxFileBytes:  cfg.UploadMaxBytes(),
		MaxBatchFiles: cfg.UploadMaxBatchFiles,
		Timeout:       cfg.UploadTimeout,
	}, logger)

	// 批量请求体上限：单文件上限乘以批量文件数，外加表单开销
	bodyLimit := cfg.UploadMaxBytes()*int64(max(cfg.UploadMaxBatchFiles, 1)) + 1<<20
	concurrencyLimiter := middleware.NewConcurrencyLimiter(cfg.MaxConcurrentRequests)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) {
		context.Header("Cache-Control", "no-store")
		context.Next()
	})

	v1 := apiGroup.Group("/v1")
	v1.Use(limiter.Middleware())
	v1.Use(middleware.JWTAuth(deps.JWT))
	{
		uploadsGroup := v1.Group("/uploads")
		{
			uploadsGroup.POST("", concurrencyLimiter.Middleware(), middleware.MaxBytesReader(bodyLimit), uploadHandler.Upload)
			uploadsGroup.POST("/batch", concurrencyLimiter.Middleware(), middleware.MaxBytesReader(bodyLimit), uploadHandler.UploadBatch)
			uploadsGroup.GET("", uploadHandler.ListHistory)
			uploadsGroup.GET("/stats", uploadHandler.HistoryStats)
			uploadsGroup.GET("/:id", uploadHandler.GetHistory)
		}

		v1.GET("/providers", uploadHandler.Providers)
		v1.GET("/queue", uploadHandler.QueueStats)
	}
}
