package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aevrHQ/ui/cache"
	"github.com/aevrHQ/ui/config"
	"github.com/aevrHQ/ui/database"
	"github.com/aevrHQ/ui/storage"
)

var startTime = time.Now()

// healthChecker 支持主动探活的缓存
type healthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler 健康检查
type HealthHandler struct {
	db       *gorm.DB
	cache    cache.Provider
	registry *storage.Registry
}

// NewHealthHandler 创建健康检查处理器，db 为 nil 表示未启用历史记录
func NewHealthHandler(db *gorm.DB, cacheProvider cache.Provider, registry *storage.Registry) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheProvider, registry: registry}
}

// Handle 处理 /health，任一检查失败时返回 503
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{
		"database":  checkDatabaseHealth(ctx, h.db),
		"cache":     checkCacheHealth(ctx, h.cache),
		"providers": checkProviders(h.registry),
	}

	httpStatus := http.StatusOK
	for _, result := range checks {
		if s, ok := result.(string); ok && s != "ok" && s != "disabled" {
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	status := "ok"
	if httpStatus != http.StatusOK {
		status = "degraded"
	}
	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  checks,
	})
}

func checkDatabaseHealth(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "disabled"
	}
	if err := database.Ping(ctx, db); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(ctx context.Context, provider cache.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if hc, ok := provider.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			return "unavailable: " + err.Error()
		}
	}
	return "ok"
}

func checkProviders(registry *storage.Registry) string {
	if registry == nil || len(registry.Names()) == 0 {
		return "error: no upload provider configured"
	}
	return "ok"
}
