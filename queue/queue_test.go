package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aevrHQ/ui/storage"
)

const waitTimeout = 2 * time.Second

// funcProvider 由函数实现的提供者
type funcProvider struct {
	name string
	fn   func(ctx context.Context, file *storage.File, opts storage.Options) (*storage.Result, error)
}

func (p *funcProvider) Name() string { return p.name }

func (p *funcProvider) UploadFile(ctx context.Context, file *storage.File, opts storage.Options) (*storage.Result, error) {
	return p.fn(ctx, file, opts)
}

// gateProvider 每次上传都阻塞，直到从 release 收到信号
type gateProvider struct {
	started chan string
	release chan struct{}

	current atomic.Int32
	peak    atomic.Int32
}

func newGateProvider() *gateProvider {
	return &gateProvider{
		started: make(chan string, 100),
		release: make(chan struct{}),
	}
}

func (p *gateProvider) Name() string { return "gate" }

func (p *gateProvider) UploadFile(ctx context.Context, file *storage.File, _ storage.Options) (*storage.Result, error) {
	n := p.current.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.started <- file.Name
	defer p.current.Add(-1)

	select {
	case <-p.release:
		return storage.Succeeded(map[string]any{"name": file.Name}), nil
	case <-ctx.Done():
		return storage.FailedErr(ctx.Err()), nil
	}
}

func (p *gateProvider) nextStarted(t *testing.T) string {
	t.Helper()
	select {
	case name := <-p.started:
		return name
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for upload to start")
		return ""
	}
}

func (p *gateProvider) assertNoStart(t *testing.T) {
	t.Helper()
	select {
	case name := <-p.started:
		t.Fatalf("unexpected upload started: %s", name)
	case <-time.After(50 * time.Millisecond):
	}
}

func testFile(name string) *storage.File {
	return storage.NewFile(name, "text/plain", []byte("content of "+name))
}

func waitTicket(t *testing.T, ticket *Ticket) (*storage.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	res, err := ticket.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "ticket did not settle")
	return res, err
}

func TestNew_DefaultConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, New(0).Limit())
	assert.Equal(t, DefaultConcurrency, New(-2).Limit())
	assert.Equal(t, 5, New(5).Limit())
}

func TestQueue_UnderLimitDispatchesImmediately(t *testing.T) {
	q := New(3)
	p := newGateProvider()

	tickets := []*Ticket{
		q.Add(context.Background(), testFile("a"), p, nil),
		q.Add(context.Background(), testFile("b"), p, nil),
	}

	p.nextStarted(t)
	p.nextStarted(t)
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 2, q.Active())

	p.release <- struct{}{}
	p.release <- struct{}{}
	for _, ticket := range tickets {
		res, err := waitTicket(t, ticket)
		require.NoError(t, err)
		assert.True(t, res.Success)
	}
	assert.Eventually(t, func() bool { return q.Active() == 0 }, waitTimeout, 5*time.Millisecond)
}

func TestQueue_OverLimitPromotesOnePerCompletion(t *testing.T) {
	const limit, total = 2, 5
	q := New(limit)
	p := newGateProvider()

	tickets := make([]*Ticket, total)
	for i := range tickets {
		tickets[i] = q.Add(context.Background(), testFile(fmt.Sprintf("f%d", i)), p, nil)
	}

	assert.Equal(t, "f0", p.nextStarted(t))
	assert.Equal(t, "f1", p.nextStarted(t))
	p.assertNoStart(t)
	assert.Equal(t, limit, q.Active())
	assert.Equal(t, total-limit, q.Pending())

	for i := limit; i < total; i++ {
		p.release <- struct{}{}
		assert.Equal(t, fmt.Sprintf("f%d", i), p.nextStarted(t))
		p.assertNoStart(t)
		assert.Equal(t, total-i-1, q.Pending())
	}

	for i := 0; i < limit; i++ {
		p.release <- struct{}{}
	}
	for _, ticket := range tickets {
		_, err := waitTicket(t, ticket)
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, int(p.peak.Load()), limit)
	stats := q.Stats()
	assert.Equal(t, uint64(total), stats.Submitted)
	assert.Equal(t, uint64(total), stats.Succeeded)
}

func TestQueue_FIFOAdmission(t *testing.T) {
	q := New(1)
	p := newGateProvider()

	names := []string{"first", "second", "third", "fourth"}
	tickets := make([]*Ticket, len(names))
	for i, name := range names {
		tickets[i] = q.Add(context.Background(), testFile(name), p, nil)
	}

	var order []string
	for range names {
		order = append(order, p.nextStarted(t))
		p.release <- struct{}{}
	}
	assert.Equal(t, names, order)

	for i, ticket := range tickets {
		res, err := waitTicket(t, ticket)
		require.NoError(t, err)
		assert.Equal(t, names[i], res.Data["name"])
	}
}

func TestQueue_BatchAdmissionStartsInOrder(t *testing.T) {
	names := []string{"S1", "S2", "S3"}

	for round := 0; round < 20; round++ {
		q := New(len(names))

		var mu sync.Mutex
		var order []string
		p := &funcProvider{name: "recorder", fn: func(_ context.Context, file *storage.File, _ storage.Options) (*storage.Result, error) {
			mu.Lock()
			order = append(order, file.Name)
			mu.Unlock()
			return storage.Succeeded(nil), nil
		}}

		tickets := make([]*Ticket, len(names))
		for i, name := range names {
			tickets[i] = q.Add(context.Background(), testFile(name), p, nil)
		}
		for _, ticket := range tickets {
			_, err := waitTicket(t, ticket)
			require.NoError(t, err)
		}

		mu.Lock()
		assert.Equal(t, names, order, "round %d", round)
		mu.Unlock()
	}
}

func TestQueue_SlowSettleHookDoesNotHoldSlot(t *testing.T) {
	hookEntered := make(chan struct{})
	hookRelease := make(chan struct{})
	q := New(1, OnSettle(func(s Settlement) {
		if s.FileName == "a" {
			close(hookEntered)
			<-hookRelease
		}
	}))

	secondStarted := make(chan struct{})
	p := &funcProvider{name: "ok", fn: func(_ context.Context, file *storage.File, _ storage.Options) (*storage.Result, error) {
		if file.Name == "b" {
			close(secondStarted)
		}
		return storage.Succeeded(nil), nil
	}}

	first := q.Add(context.Background(), testFile("a"), p, nil)
	second := q.Add(context.Background(), testFile("b"), p, nil)

	<-hookEntered
	select {
	case <-secondStarted:
	case <-time.After(waitTimeout):
		t.Fatal("next upload did not start while settle hook was running")
	}

	select {
	case <-first.Done():
		t.Fatal("ticket settled before settle hook finished")
	default:
	}

	close(hookRelease)
	_, err := waitTicket(t, first)
	require.NoError(t, err)
	_, err = waitTicket(t, second)
	require.NoError(t, err)
}

func TestQueue_ConcurrencyNeverExceedsLimit(t *testing.T) {
	const limit = 3
	q := New(limit)

	var current, peak atomic.Int32
	p := &funcProvider{name: "busy", fn: func(ctx context.Context, file *storage.File, _ storage.Options) (*storage.Result, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return storage.Succeeded(nil), nil
	}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Upload(context.Background(), testFile(fmt.Sprintf("f%d", i)), p, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), limit)
	assert.Equal(t, 0, q.Active())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_SettlesExactlyOnce(t *testing.T) {
	var settled []Settlement
	var mu sync.Mutex
	q := New(2, OnSettle(func(s Settlement) {
		mu.Lock()
		defer mu.Unlock()
		settled = append(settled, s)
	}))

	boom := errors.New("boom")
	providers := map[string]storage.UploadProvider{
		"success": &funcProvider{name: "ok", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
			return storage.Succeeded(map[string]any{"url": "https://cdn.example.com/a"}), nil
		}},
		"failure": &funcProvider{name: "fail", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
			return storage.Failed("quota exceeded"), nil
		}},
		"error": &funcProvider{name: "err", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
			return nil, boom
		}},
		"panic": &funcProvider{name: "panic", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
			panic("provider exploded")
		}},
	}

	for kind, p := range providers {
		t.Run(kind, func(t *testing.T) {
			ticket := q.Add(context.Background(), testFile(kind), p, nil)
			res, err := waitTicket(t, ticket)

			switch kind {
			case "success":
				require.NoError(t, err)
				assert.True(t, res.Success)
			case "failure":
				require.NoError(t, err)
				assert.False(t, res.Success)
				assert.Equal(t, "quota exceeded", res.Error)
			case "error":
				assert.ErrorIs(t, err, boom)
				assert.Nil(t, res)
			case "panic":
				assert.ErrorIs(t, err, ErrPanic)
				assert.Contains(t, err.Error(), "provider exploded")
			}

			assert.False(t, ticket.settle(storage.Succeeded(nil), nil), "second settle must be ignored")
			again, againErr := ticket.Result()
			assert.Equal(t, res, again)
			assert.Equal(t, err, againErr)
		})
	}

	require.NoError(t, q.Drain(context.Background()))
	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(2), stats.Errored)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, settled, 4)
	outcomes := map[string]string{}
	for _, s := range settled {
		outcomes[s.Provider] = s.Outcome()
	}
	assert.Equal(t, map[string]string{"ok": "success", "fail": "failure", "err": "error", "panic": "error"}, outcomes)
}

func TestQueue_PanicReleasesSlot(t *testing.T) {
	q := New(1)
	panicking := &funcProvider{name: "panic", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
		panic("boom")
	}}
	ok := &funcProvider{name: "ok", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
		return storage.Succeeded(nil), nil
	}}

	first := q.Add(context.Background(), testFile("a"), panicking, nil)
	second := q.Add(context.Background(), testFile("b"), ok, nil)

	_, err := waitTicket(t, first)
	assert.ErrorIs(t, err, ErrPanic)
	res, err := waitTicket(t, second)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestQueue_NilProviderAndNilResult(t *testing.T) {
	q := New(1)

	_, err := waitTicket(t, q.Add(context.Background(), testFile("a"), nil, nil))
	assert.ErrorIs(t, err, ErrNilProvider)

	empty := &funcProvider{name: "empty", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
		return nil, nil
	}}
	_, err = waitTicket(t, q.Add(context.Background(), testFile("b"), empty, nil))
	assert.ErrorIs(t, err, ErrNilResult)
}

func TestTicket_ResultBeforeSettle(t *testing.T) {
	q := New(1)
	p := newGateProvider()

	ticket := q.Add(context.Background(), testFile("a"), p, nil)
	p.nextStarted(t)

	_, err := ticket.Result()
	assert.ErrorIs(t, err, ErrNotSettled)
	assert.NotEmpty(t, ticket.ID())

	select {
	case <-ticket.Done():
		t.Fatal("ticket settled before provider returned")
	default:
	}

	p.release <- struct{}{}
	<-ticket.Done()
	res, err := ticket.Result()
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestTicket_WaitContextDoesNotCancelUpload(t *testing.T) {
	q := New(1)
	p := newGateProvider()

	ticket := q.Add(context.Background(), testFile("a"), p, nil)
	p.nextStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ticket.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.release <- struct{}{}
	res, err := waitTicket(t, ticket)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestQueue_Drain(t *testing.T) {
	q := New(1)
	p := newGateProvider()

	q.Add(context.Background(), testFile("a"), p, nil)
	q.Add(context.Background(), testFile("b"), p, nil)
	p.nextStarted(t)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(short), context.DeadlineExceeded)

	go func() {
		p.release <- struct{}{}
		p.release <- struct{}{}
	}()

	ctx, cancel2 := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel2()
	require.NoError(t, q.Drain(ctx))
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 0, q.Active())
}

func TestQueue_SettleHookPanicIsContained(t *testing.T) {
	q := New(1, OnSettle(func(Settlement) { panic("hook exploded") }))
	ok := &funcProvider{name: "ok", fn: func(context.Context, *storage.File, storage.Options) (*storage.Result, error) {
		return storage.Succeeded(nil), nil
	}}

	res, err := waitTicket(t, q.Add(context.Background(), testFile("a"), ok, nil))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestQueue_ProviderReceivesContextAndOptions(t *testing.T) {
	type ctxKey struct{}
	q := New(1)

	var gotValue any
	var gotOpts storage.Options
	p := &funcProvider{name: "spy", fn: func(ctx context.Context, _ *storage.File, opts storage.Options) (*storage.Result, error) {
		gotValue = ctx.Value(ctxKey{})
		gotOpts = opts
		return storage.Succeeded(nil), nil
	}}

	ctx := context.WithValue(context.Background(), ctxKey{}, "trace-1")
	_, err := q.Upload(ctx, testFile("a"), p, storage.Options{"folder": "avatars"})
	require.NoError(t, err)
	assert.Equal(t, "trace-1", gotValue)
	assert.Equal(t, storage.Options{"folder": "avatars"}, gotOpts)
}
