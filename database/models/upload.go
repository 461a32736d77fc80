package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadRecord 一次上传的历史记录
type UploadRecord struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	TicketID    string    `gorm:"size:36;index" json:"ticket_id"`
	Provider    string    `gorm:"size:64;not null;index:idx_provider_created_at,priority:1" json:"provider"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	Size        int64     `json:"size"`
	Success     bool      `gorm:"not null;index" json:"success"`
	Error       string    `gorm:"size:1024" json:"error,omitempty"`
	Data        string    `gorm:"type:text" json:"-"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `gorm:"index:idx_provider_created_at,priority:2" json:"created_at"`
}

// BeforeCreate 生成主键
func (r *UploadRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// SetData 以 JSON 保存提供者返回的数据
func (r *UploadRecord) SetData(data map[string]any) error {
	if len(data) == 0 {
		r.Data = ""
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	r.Data = string(b)
	return nil
}

// DataMap 解析保存的数据，为空或解析失败时返回 nil
func (r *UploadRecord) DataMap() map[string]any {
	if r.Data == "" {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
		return nil
	}
	return data
}
