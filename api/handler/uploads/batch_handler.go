package uploads

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aevrHQ/ui/api/common"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
	"github.com/aevrHQ/ui/utils/format"
)

// UploadBatch 处理多文件上传
// 全部文件一次性进入队列，按提交顺序放行；响应中的结果顺序与表单中的文件顺序一致
func (h *Handler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "Invalid form data")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		common.RespondError(c, http.StatusBadRequest, "At least one file is required under the 'files' key")
		return
	}

	// 限制最大上传文件数量
	if len(files) > h.limits.MaxBatchFiles {
		common.RespondError(c, http.StatusBadRequest, fmt.Sprintf("Maximum %d files allowed per upload", h.limits.MaxBatchFiles))
		return
	}
	for _, f := range files {
		if h.limits.MaxFileBytes > 0 && f.Size > h.limits.MaxFileBytes {
			common.RespondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File '%s' (%s) exceeds maximum allowed (%s)",
				f.Filename, format.HumanReadableSize(f.Size), format.HumanReadableSize(h.limits.MaxFileBytes)))
			return
		}
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

	tickets := make([]*queue.Ticket, len(files))
	for i, fh := range files {
		tickets[i] = h.queue.Add(ctx, storage.FromMultipart(fh), provider, opts)
	}

	results := make([]uploadResponse, len(files))
	successCount := 0
	for i, t := range tickets {
		result, err := t.Wait(ctx)
		results[i] = newResponse(t, provider.Name(), files[i].Size, result, err)
		if results[i].Success {
			successCount++
		}
	}

	common.RespondSuccess(c, gin.H{
		"total_files":   len(files),
		"success_count": successCount,
		"failure_count": len(files) - successCount,
		"results":       results,
	})
}
