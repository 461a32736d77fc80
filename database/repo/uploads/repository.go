package uploads

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aevrHQ/ui/database/models"
)

// ListFilter 列表过滤条件，零值表示不过滤
type ListFilter struct {
	Provider string
	Success  *bool
}

// ProviderCount 按提供者聚合的统计
type ProviderCount struct {
	Provider  string `json:"provider"`
	Total     int64  `json:"total"`
	Succeeded int64  `json:"succeeded"`
}

// Repository 上传历史仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的上传历史仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 保存记录
func (r *Repository) Create(ctx context.Context, record *models.UploadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID 通过 ID 获取记录，不存在时返回 gorm.ErrRecordNotFound
func (r *Repository) GetByID(ctx context.Context, id string) (*models.UploadRecord, error) {
	var record models.UploadRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List 分页获取记录，按创建时间倒序
func (r *Repository) List(ctx context.Context, filter ListFilter, page, pageSize int) ([]*models.UploadRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var records []*models.UploadRecord
	var total int64

	db := r.db.WithContext(ctx).Model(&models.UploadRecord{})
	if filter.Provider != "" {
		db = db.Where("provider = ?", filter.Provider)
	}
	if filter.Success != nil {
		db = db.Where("success = ?", *filter.Success)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := db.Order("created_at desc").Offset(offset).Limit(pageSize).Find(&records).Error
	return records, total, err
}

// CountByProvider 按提供者统计记录数
func (r *Repository) CountByProvider(ctx context.Context) ([]ProviderCount, error) {
	var counts []ProviderCount
	err := r.db.WithContext(ctx).Model(&models.UploadRecord{}).
		Select("provider, COUNT(*) AS total, SUM(CASE WHEN success THEN 1 ELSE 0 END) AS succeeded").
		Group("provider").
		Order("provider").
		Scan(&counts).Error
	return counts, err
}

// DeleteBefore 删除早于指定时间的记录
func (r *Repository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.UploadRecord{})
	return result.RowsAffected, result.Error
}
