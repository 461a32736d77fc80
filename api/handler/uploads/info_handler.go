package uploads

import (
	"github.com/gin-gonic/gin"

	"github.com/aevrHQ/ui/api/common"
	"github.com/aevrHQ/ui/storage"
)

// Providers 列出已配置的提供者
func (h *Handler) Providers(c *gin.Context) {
	data := gin.H{
		"default":   h.registry.DefaultName(),
		"providers": h.registry.Names(),
	}
	if m := h.registry.Multi(); m != nil {
		data["multi"] = gin.H{
			"name":      storage.MultiProviderName,
			"strategy":  m.Strategy(),
			"providers": m.Providers(),
		}
	}
	common.RespondSuccess(c, data)
}

// QueueStats 返回队列状态
func (h *Handler) QueueStats(c *gin.Context) {
	common.RespondSuccess(c, h.queue.Stats())
}
