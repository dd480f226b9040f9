package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlogPost 对应 blog_posts 表
type BlogPost struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Slug        string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Excerpt     string     `gorm:"type:varchar(512)" json:"excerpt"`
	Content     string     `gorm:"type:text" json:"content"`
	CoverImage  string     `gorm:"type:varchar(512)" json:"cover_image"`
	Published   bool       `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}

func (p *BlogPost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
