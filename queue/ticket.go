package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aevrHQ/ui/storage"
)

// ErrNotSettled 上传尚未完成
var ErrNotSettled = errors.New("queue: upload not settled")

// Ticket 一次排队上传的凭据，结果只会被设置一次
type Ticket struct {
	id          string
	fileName    string
	submittedAt time.Time

	once   sync.Once
	done   chan struct{}
	result *storage.Result
	err    error
}

func newTicket(fileName string) *Ticket {
	return &Ticket{
		id:          uuid.NewString(),
		fileName:    fileName,
		submittedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// ID 返回凭据 ID
func (t *Ticket) ID() string {
	return t.id
}

// FileName 返回提交的文件名
func (t *Ticket) FileName() string {
	return t.fileName
}

// SubmittedAt 返回提交时间
func (t *Ticket) SubmittedAt() time.Time {
	return t.submittedAt
}

// Done 上传结束后关闭
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait 等待上传结束
// ctx 取消只结束等待，不会撤回已提交的上传
func (t *Ticket) Wait(ctx context.Context) (*storage.Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result 非阻塞获取结果，未完成时返回 ErrNotSettled
func (t *Ticket) Result() (*storage.Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	default:
		return nil, ErrNotSettled
	}
}

// settle 设置结果，返回是否为首次设置
func (t *Ticket) settle(result *storage.Result, err error) bool {
	settled := false
	t.once.Do(func() {
		t.result, t.err = result, err
		close(t.done)
		settled = true
	})
	return settled
}
