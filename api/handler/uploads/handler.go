package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aevrHQ/ui/api/common"
	historyRepo "github.com/aevrHQ/ui/database/repo/uploads"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
	"github.com/aevrHQ/ui/utils"
)

// Limits 上传限制
type Limits struct {
	MaxFileBytes  int64
	MaxBatchFiles int
	Timeout       time.Duration
}

// Handler 上传相关接口
type Handler struct {
	registry *storage.Registry
	queue    *queue.Queue
	history  *historyRepo.Repository
	limits   Limits
	logger   logrus.FieldLogger
}

// NewHandler 创建处理器，history 为 nil 时历史接口返回 404
func NewHandler(registry *storage.Registry, q *queue.Queue, history *historyRepo.Repository, limits Limits, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if limits.MaxBatchFiles <= 0 {
		limits.MaxBatchFiles = 20
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 2 * time.Minute
	}
	return &Handler{
		registry: registry,
		queue:    q,
		history:  history,
		limits:   limits,
		logger:   logger,
	}
}

// uploadResponse 单个文件的上传结果
type uploadResponse struct {
	TicketID string         `json:"ticket_id"`
	Provider string         `json:"provider"`
	FileName string         `json:"file_name"`
	Size     int64          `json:"size"`
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// resolveProvider 按 provider 参数选择提供者，优先表单字段
func (h *Handler) resolveProvider(c *gin.Context) (storage.UploadProvider, error) {
	name := c.PostForm("provider")
	if name == "" {
		name = c.Query("provider")
	}
	return h.registry.Get(name)
}

// parseOptions 解析 options 表单字段（JSON 对象）
func parseOptions(c *gin.Context) (storage.Options, error) {
	raw := c.PostForm("options")
	if raw == "" {
		return nil, nil
	}
	var opts storage.Options
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("options must be a JSON object: %w", err)
	}
	return opts, nil
}

// uploadContext 请求上下文加上传超时
func (h *Handler) uploadContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.limits.Timeout)
}

// providerError 将提供者查找错误写入响应
func (h *Handler) providerError(c *gin.Context, err error) {
	if len(h.registry.Names()) == 0 {
		common.RespondError(c, http.StatusServiceUnavailable, "No upload provider configured")
		return
	}
	common.RespondError(c, http.StatusNotFound, err.Error())
}

// waitError 等待结果出错时的状态码
func waitError(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNilFile), errors.Is(err, storage.ErrInvalidConfig):
		return http.StatusBadRequest, err.Error()
	case utils.IsTimeout(err):
		return http.StatusGatewayTimeout, "Upload timed out"
	case utils.IsContextCanceled(err):
		return http.StatusRequestTimeout, "Upload canceled"
	default:
		return http.StatusInternalServerError, "Upload failed: " + err.Error()
	}
}

func newResponse(t *queue.Ticket, provider string, size int64, result *storage.Result, err error) uploadResponse {
	resp := uploadResponse{
		TicketID: t.ID(),
		Provider: provider,
		FileName: t.FileName(),
		Size:     size,
	}
	switch {
	case err != nil:
		_, resp.Error = waitError(err)
	case result.Success:
		resp.Success = true
		resp.Data = result.Data
	default:
		resp.Error = result.Error
	}
	return resp
}
