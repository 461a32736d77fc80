package uploads

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aevrHQ/ui/api/common"
	"github.com/aevrHQ/ui/database/models"
	historyRepo "github.com/aevrHQ/ui/database/repo/uploads"
)

type historyItem struct {
	ID          string         `json:"id"`
	TicketID    string         `json:"ticket_id"`
	Provider    string         `json:"provider"`
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	Size        int64          `json:"size"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toHistoryItem(r *models.UploadRecord) historyItem {
	return historyItem{
		ID:          r.ID,
		TicketID:    r.TicketID,
		Provider:    r.Provider,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		Size:        r.Size,
		Success:     r.Success,
		Error:       r.Error,
		Data:        r.DataMap(),
		DurationMS:  r.DurationMS,
		CreatedAt:   r.CreatedAt,
	}
}

func (h *Handler) historyEnabled(c *gin.Context) bool {
	if h.history == nil {
		common.RespondError(c, http.StatusNotFound, "Upload history is disabled")
		return false
	}
	return true
}

// ListHistory 分页查询上传历史
// 查询参数：page、page_size（最大 100）、provider、success（true/false）
func (h *Handler) ListHistory(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize > 100 {
		pageSize = 100
	}

	filter := historyRepo.ListFilter{Provider: c.Query("provider")}
	if s := c.Query("success"); s != "" {
		success, err := strconv.ParseBool(s)
		if err != nil {
			common.RespondError(c, http.StatusBadRequest, "success must be true or false")
			return
		}
		filter.Success = &success
	}

	records, total, err := h.history.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list upload history")
		common.RespondError(c, http.StatusInternalServerError, "Failed to list upload history")
		return
	}

	items := make([]historyItem, 0, len(records))
	for _, r := range records {
		items = append(items, toHistoryItem(r))
	}
	common.RespondSuccess(c, gin.H{
		"items": items,
		"total": total,
		"page":  max(page, 1),
	})
}

// GetHistory 查询单条上传历史
func (h *Handler) GetHistory(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	record, err := h.history.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.RespondError(c, http.StatusNotFound, "Upload record not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get upload record")
		common.RespondError(c, http.StatusInternalServerError, "Failed to get upload record")
		return
	}
	common.RespondSuccess(c, toHistoryItem(record))
}

// HistoryStats 按提供者统计上传历史
func (h *Handler) HistoryStats(c *gin.Context) {
	if !h.historyEnabled(c) {
		return
	}

	counts, err := h.history.CountByProvider(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count upload history")
		common.RespondError(c, http.StatusInternalServerError, "Failed to count upload history")
		return
	}
	common.RespondSuccess(c, counts)
}
