package uploads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aevrHQ/ui/database"
	"github.com/aevrHQ/ui/database/models"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库每个连接独立
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seed(t *testing.T, repo *Repository, provider string, success bool, createdAt time.Time) *models.UploadRecord {
	t.Helper()
	record := &models.UploadRecord{
		Provider:  provider,
		FileName:  "a.png",
		Size:      10,
		Success:   success,
		CreatedAt: createdAt,
	}
	if !success {
		record.Error = "denied"
	}
	require.NoError(t, repo.Create(context.Background(), record))
	return record
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	record := &models.UploadRecord{
		TicketID:    "t-1",
		Provider:    "s3",
		FileName:    "photo.jpg",
		ContentType: "image/jpeg",
		Size:        1024,
		Success:     true,
		DurationMS:  42,
	}
	require.NoError(t, record.SetData(map[string]any{"url": "https://cdn.example.com/photo.jpg"}))
	require.NoError(t, repo.Create(ctx, record))
	assert.Len(t, record.ID, 36)

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "s3", got.Provider)
	assert.Equal(t, "photo.jpg", got.FileName)
	assert.True(t, got.Success)
	assert.Equal(t, "https://cdn.example.com/photo.jpg", got.DataMap()["url"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepository_List(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	seed(t, repo, "s3", true, base)
	seed(t, repo, "s3", false, base.Add(time.Minute))
	newest := seed(t, repo, "pinata", true, base.Add(2*time.Minute))

	records, total, err := repo.List(ctx, ListFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, records, 2)
	assert.Equal(t, newest.ID, records[0].ID)

	records, _, err = repo.List(ctx, ListFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, total, err = repo.List(ctx, ListFilter{Provider: "s3"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, records, 2)

	failed := false
	records, total, err = repo.List(ctx, ListFilter{Success: &failed}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.Equal(t, "denied", records[0].Error)
}

func TestRepository_CountByProvider(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Now()

	seed(t, repo, "s3", true, now)
	seed(t, repo, "s3", false, now)
	seed(t, repo, "cloudinary", true, now)

	counts, err := repo.CountByProvider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ProviderCount{
		{Provider: "cloudinary", Total: 1, Succeeded: 1},
		{Provider: "s3", Total: 2, Succeeded: 1},
	}, counts)
}

func TestRepository_DeleteBefore(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	seed(t, repo, "s3", true, now.Add(-48*time.Hour))
	seed(t, repo, "s3", true, now.Add(-36*time.Hour))
	seed(t, repo, "s3", true, now)

	deleted, err := repo.DeleteBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, total, err := repo.List(ctx, ListFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestUploadRecord_DataMap(t *testing.T) {
	var r models.UploadRecord
	assert.Nil(t, r.DataMap())

	require.NoError(t, r.SetData(nil))
	assert.Empty(t, r.Data)

	r.Data = "{not json"
	assert.Nil(t, r.DataMap())
}
