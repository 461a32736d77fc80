package history

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/aevrHQ/ui/database/models"
	"github.com/aevrHQ/ui/queue"
)

const (
	defaultWriteTimeout = 5 * time.Second

	maxErrorBytes = 1024
)

// Store 上传历史的写入端
type Store interface {
	Create(ctx context.Context, record *models.UploadRecord) error
}

// Recorder 将队列结算写入上传历史
type Recorder struct {
	store   Store
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewRecorder 创建记录器
func NewRecorder(store Store, logger logrus.FieldLogger) *Recorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{
		store:   store,
		logger:  logger.WithField("component", "history"),
		timeout: defaultWriteTimeout,
	}
}

// Record 保存一次结算，作为 queue.OnSettle 回调使用
// 写入失败只记录日志，不影响上传结果
func (r *Recorder) Record(s queue.Settlement) {
	record := FromSettlement(s)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.Create(ctx, record); err != nil {
		r.logger.WithFields(logrus.Fields{
			"ticket":   s.TicketID,
			"provider": s.Provider,
		}).WithError(err).Warn("Failed to save upload history")
	}
}

// FromSettlement 将结算转换为历史记录
func FromSettlement(s queue.Settlement) *models.UploadRecord {
	record := &models.UploadRecord{
		TicketID:    s.TicketID,
		Provider:    s.Provider,
		FileName:    s.FileName,
		ContentType: s.ContentType,
		Size:        s.Size,
		Success:     s.Succeeded(),
		DurationMS:  s.Duration.Milliseconds(),
	}

	switch {
	case s.Err != nil:
		record.Error = s.Err.Error()
	case s.Result != nil && s.Result.Success:
		if err := record.SetData(s.Result.Data); err != nil {
			record.Error = "unserializable result data: " + err.Error()
		}
	case s.Result != nil:
		record.Error = s.Result.Error
	}
	record.Error = truncateUTF8(record.Error, maxErrorBytes)
	return record
}

// truncateUTF8 截断到不超过 n 字节，且不拆分多字节字符
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
