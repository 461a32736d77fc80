package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aevrHQ/ui/internal/metrics"
)

// Metrics 请求指标中间件，按路由模板统计以控制标签基数
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(startTime))
	}
}
