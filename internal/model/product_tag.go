package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductTag 是产品与标签的联结表。
// OrderPosition 只在同一个 TagID 内部有意义：同一产品在不同标签下的位置互相独立，
// 也与产品的 all_order / featured_order / free_order 无关。
type ProductTag struct {
	ID            string `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProductID     string `gorm:"type:varchar(36);not null;uniqueIndex:idx_product_tag" json:"product_id"`
	TagID         string `gorm:"type:varchar(36);not null;uniqueIndex:idx_product_tag;index" json:"tag_id"`
	OrderPosition int    `gorm:"not null;default:0" json:"order_position"`
	Tag           *Tag   `gorm:"foreignKey:TagID" json:"tag,omitempty"`
}

func (ProductTag) TableName() string {
	return "product_tags"
}

func (pt *ProductTag) BeforeCreate(tx *gorm.DB) error {
	if pt.ID == "" {
		pt.ID = uuid.NewString()
	}
	return nil
}
