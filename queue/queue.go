package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aevrHQ/ui/storage"
)

// DefaultConcurrency 默认并发上传数
const DefaultConcurrency = 3

var (
	// ErrNilProvider 提交时未指定提供者
	ErrNilProvider = errors.New("queue: provider is nil")

	// ErrNilResult 提供者既没有返回结果也没有返回错误
	ErrNilResult = errors.New("queue: provider returned no result")

	// ErrPanic 提供者上传时 panic
	ErrPanic = errors.New("queue: upload panicked")
)

// Settlement 一次上传结束时的信息
type Settlement struct {
	TicketID    string
	Provider    string
	FileName    string
	ContentType string
	Size        int64
	Result      *storage.Result
	Err         error
	Duration    time.Duration
}

// Succeeded 上传是否成功
func (s Settlement) Succeeded() bool {
	return s.Err == nil && s.Result != nil && s.Result.Success
}

// Outcome 结果分类：success / failure / error
func (s Settlement) Outcome() string {
	switch {
	case s.Err != nil:
		return "error"
	case s.Succeeded():
		return "success"
	default:
		return "failure"
	}
}

// Option 队列选项
type Option func(*Queue)

// WithLogger 设置日志器
func WithLogger(logger logrus.FieldLogger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// OnSettle 注册上传结束回调
// 回调在槽位释放之后、凭据结果设置之前同步执行，调用方拿到结果时回调已完成
func OnSettle(fn func(Settlement)) Option {
	return func(q *Queue) {
		if fn != nil {
			q.hooks = append(q.hooks, fn)
		}
	}
}

// Stats 队列统计
type Stats struct {
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Limit     int    `json:"limit"`
	Submitted uint64 `json:"submitted"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Errored   uint64 `json:"errored"`
}

type entry struct {
	ctx      context.Context
	file     *storage.File
	provider storage.UploadProvider
	opts     storage.Options
	ticket   *Ticket

	// prev 为前一个放行条目的 started，调用提供者前必须等它关闭
	prev    <-chan struct{}
	started chan struct{}
}

// Queue 有界并发上传队列，按提交顺序放行
//
// pending 与 active 只在持有 mu 时修改；每次提交和每次上传结束后都会执行一轮放行，
// 放行时从队头取出条目直到达到并发上限。条目按放行顺序依次调用提供者。
type Queue struct {
	mu          sync.Mutex
	limit       int
	pending     []*entry
	active      int
	lastStarted chan struct{}

	wg     sync.WaitGroup
	logger logrus.FieldLogger
	hooks  []func(Settlement)

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	errored   atomic.Uint64
}

// New 创建队列，concurrency <= 0 时使用 DefaultConcurrency
func New(concurrency int, opts ...Option) *Queue {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	q := &Queue{
		limit:  concurrency,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add 提交上传，立即返回凭据
// ctx 会传给提供者，由调用方控制超时；队列本身不会丢弃已提交的条目
func (q *Queue) Add(ctx context.Context, file *storage.File, provider storage.UploadProvider, opts storage.Options) *Ticket {
	if ctx == nil {
		ctx = context.Background()
	}
	name := ""
	if file != nil {
		name = file.Name
	}
	t := newTicket(name)

	q.submitted.Add(1)
	q.wg.Add(1)

	q.mu.Lock()
	q.pending = append(q.pending, &entry{
		ctx:      ctx,
		file:     file,
		provider: provider,
		opts:     opts,
		ticket:   t,
	})
	q.admitLocked()
	q.mu.Unlock()

	return t
}

// Upload 提交并等待结果
func (q *Queue) Upload(ctx context.Context, file *storage.File, provider storage.UploadProvider, opts storage.Options) (*storage.Result, error) {
	return q.Add(ctx, file, provider, opts).Wait(ctx)
}

// admitLocked 放行队头条目直到达到并发上限，调用方必须持有 mu
func (q *Queue) admitLocked() {
	for len(q.pending) > 0 && q.active < q.limit {
		e := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.active++
		e.prev = q.lastStarted
		e.started = make(chan struct{})
		q.lastStarted = e.started
		go q.dispatch(e)
	}
	if len(q.pending) == 0 {
		q.pending = nil
	}
}

func (q *Queue) dispatch(e *entry) {
	defer q.wg.Done()

	if e.prev != nil {
		<-e.prev
	}
	start := time.Now()
	result, err := q.execute(e)

	s := Settlement{
		TicketID: e.ticket.ID(),
		Provider: providerName(e.provider),
		FileName: e.ticket.FileName(),
		Result:   result,
		Err:      err,
		Duration: time.Since(start),
	}
	if e.file != nil {
		s.Size = e.file.Size
		s.ContentType = e.file.ContentType
	}
	q.record(s)

	// 提供者结束即释放槽位，回调耗时不占用并发
	q.mu.Lock()
	q.active--
	q.admitLocked()
	q.mu.Unlock()

	q.notify(s)
	e.ticket.settle(result, err)
}

// execute 执行上传并捕获 panic
func (q *Queue) execute(e *entry) (result *storage.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.WithFields(logrus.Fields{
				"ticket": e.ticket.ID(),
				"panic":  r,
			}).Error("Panic recovered in upload task")
			result, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	close(e.started)
	if e.provider == nil {
		return nil, ErrNilProvider
	}
	result, err = e.provider.UploadFile(e.ctx, e.file, e.opts)
	if err == nil && result == nil {
		err = ErrNilResult
	}
	return result, err
}

func (q *Queue) record(s Settlement) {
	fields := logrus.Fields{
		"ticket":   s.TicketID,
		"provider": s.Provider,
		"file":     s.FileName,
		"duration": s.Duration,
	}
	switch s.Outcome() {
	case "success":
		q.succeeded.Add(1)
		q.logger.WithFields(fields).Debug("Upload succeeded")
	case "failure":
		q.failed.Add(1)
		q.logger.WithFields(fields).WithField("reason", s.Result.Error).Warn("Upload failed")
	default:
		q.errored.Add(1)
		q.logger.WithFields(fields).WithError(s.Err).Error("Upload errored")
	}
}

func (q *Queue) notify(s Settlement) {
	for _, hook := range q.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					q.logger.WithField("panic", r).Error("Panic recovered in settle hook")
				}
			}()
			hook(s)
		}()
	}
}

// Drain 等待所有已提交的上传结束
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending 等待中的条目数
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Active 正在上传的条目数
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Limit 并发上限
func (q *Queue) Limit() int {
	return q.limit
}

// Stats 返回统计快照
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	pending, active := len(q.pending), q.active
	q.mu.Unlock()

	return Stats{
		Pending:   pending,
		Active:    active,
		Limit:     q.limit,
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Errored:   q.errored.Load(),
	}
}

func providerName(p storage.UploadProvider) string {
	if p == nil {
		return ""
	}
	return p.Name()
}
