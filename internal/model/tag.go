package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 系统伪标签：不是 tags 表中的行，由产品上的布尔标记与专用排序字段计算得出，
// 在筛选列表中总是排在最前面。
const (
	FilterFeatured = "Featured"
	FilterFree     = "Free"
	FilterAll      = "All"
)

// SystemFilters 是筛选列表固定的前三项
var SystemFilters = []string{FilterFeatured, FilterFree, FilterAll}

func IsSystemFilter(name string) bool {
	return name == FilterFeatured || name == FilterFree || name == FilterAll
}

// Tag 对应 tags 表。OrderIndex 是 0..N-1 的稠密序列，删除标签后需要压缩后续下标。
type Tag struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null;index" json:"name"`
	Slug        string    `gorm:"type:varchar(120)" json:"slug"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	Color       string    `gorm:"type:varchar(32)" json:"color"`
	OrderIndex  int       `gorm:"not null;default:0;index" json:"order_index"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Tag) TableName() string {
	return "tags"
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
