package uploads

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aevrHQ/ui/api/common"
	"github.com/aevrHQ/ui/storage"
	"github.com/aevrHQ/ui/utils"
	"github.com/aevrHQ/ui/utils/format"
)

// Upload 处理单文件上传
//
// 表单字段：file（必填）、provider（可选，提供者名称或 multi）、options（可选，JSON 对象）。
// 提供者返回失败结果时响应 502，数据中带有失败原因。
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "A file is required under the 'file' key")
		return
	}

	if h.limits.MaxFileBytes > 0 && fileHeader.Size > h.limits.MaxFileBytes {
		common.RespondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File size (%s) exceeds maximum allowed (%s)",
			format.HumanReadableSize(fileHeader.Size), format.HumanReadableSize(h.limits.MaxFileBytes)))
		return
	}

	provider, err := h.resolveProvider(c)
	if err != nil {
		h.providerError(c, err)
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.uploadContext(c)
	defer cancel()

	ticket := h.queue.Add(ctx, storage.FromMultipart(fileHeader), provider, opts)
	result, err := ticket.Wait(ctx)
	if err != nil {
		status, message := waitError(err)
		h.logger.WithFields(logrus.Fields{
			"ticket":   ticket.ID(),
			"provider": provider.Name(),
			"file":     utils.SanitizeFileName(fileHeader.Filename),
		}).WithError(err).Warn("Upload request ended without a result")
		common.RespondError(c, status, message)
		return
	}

	resp := newResponse(ticket, provider.Name(), fileHeader.Size, result, nil)
	if !resp.Success {
		common.Respond(c, http.StatusBadGateway, "error", resp.Error, resp)
		return
	}
	common.RespondSuccess(c, resp)
}
