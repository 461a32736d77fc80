package history

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aevrHQ/ui/database/models"
	"github.com/aevrHQ/ui/queue"
	"github.com/aevrHQ/ui/storage"
)

type memStore struct {
	mu      sync.Mutex
	records []*models.UploadRecord
	err     error
}

func (m *memStore) Create(_ context.Context, r *models.UploadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func TestFromSettlement(t *testing.T) {
	success := FromSettlement(queue.Settlement{
		TicketID:    "t1",
		Provider:    "s3",
		FileName:    "a.png",
		ContentType: "image/png",
		Size:        42,
		Result:      storage.Succeeded(map[string]any{"url": "https://x/a.png"}),
		Duration:    1500 * time.Millisecond,
	})
	assert.True(t, success.Success)
	assert.Equal(t, "image/png", success.ContentType)
	assert.Equal(t, int64(1500), success.DurationMS)
	assert.Equal(t, "https://x/a.png", success.DataMap()["url"])
	assert.Empty(t, success.Error)

	failure := FromSettlement(queue.Settlement{Provider: "s3", Result: storage.Failed("quota exceeded")})
	assert.False(t, failure.Success)
	assert.Equal(t, "quota exceeded", failure.Error)
	assert.Empty(t, failure.Data)

	errored := FromSettlement(queue.Settlement{Provider: "s3", Err: errors.New(strings.Repeat("x", 2000))})
	assert.False(t, errored.Success)
	assert.Len(t, errored.Error, 1024)

	// 1023 字节 ASCII 后接一个 3 字节字符，截断不能拆开它
	multibyte := FromSettlement(queue.Settlement{Provider: "s3", Err: errors.New(strings.Repeat("x", 1023) + "上传失败")})
	assert.True(t, utf8.ValidString(multibyte.Error))
	assert.Equal(t, strings.Repeat("x", 1023), multibyte.Error)
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"é", 1, ""},
		{"aé", 2, "a"},
		{"aé", 3, "aé"},
		{"日本", 4, "日"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateUTF8(tt.in, tt.n), "truncateUTF8(%q, %d)", tt.in, tt.n)
	}
}

func TestRecorder_Record(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, nil)

	rec.Record(queue.Settlement{TicketID: "t1", Provider: "pinata", Result: storage.Succeeded(nil)})

	require.Len(t, store.records, 1)
	assert.Equal(t, "t1", store.records[0].TicketID)
}

func TestRecorder_StoreErrorIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := &memStore{err: errors.New("disk full")}
	rec := NewRecorder(store, logger)

	rec.Record(queue.Settlement{TicketID: "t1", Provider: "s3", Result: storage.Failed("x")})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Failed to save upload history", hook.LastEntry().Message)
}

func TestRecorder_AsQueueHook(t *testing.T) {
	store := &memStore{}
	rec := NewRecorder(store, nil)
	q := queue.New(2, queue.OnSettle(rec.Record))

	file := storage.NewFile("hello.txt", "text/plain", []byte("hello"))
	res, err := q.Upload(context.Background(), file, storage.NewBase64Provider(), nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.records, 1)
	assert.Equal(t, "base64", store.records[0].Provider)
	assert.Equal(t, "hello.txt", store.records[0].FileName)
	assert.Equal(t, "text/plain", store.records[0].ContentType)
	assert.Equal(t, int64(5), store.records[0].Size)
}
