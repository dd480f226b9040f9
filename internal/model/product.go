package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultOrder 是缺省排序值：没有显式排序字段的产品排在有值的产品之后。
const DefaultOrder = 100

// MissingPosition 是联结表路径中找不到 order_position 时的兜底值。
const MissingPosition = 999

// Product 对应 products 表。
// FeaturedOrder / FreeOrder / AllOrder 分别只在 Featured / Free / All 三个系统列表中生效，互不影响；
// Priority 只在旧版标签数组回退路径中使用。
// Tags 是冗余的旧版标签名数组，不保证与 product_tags 联结表同步。
type Product struct {
	ID            string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Slug          string       `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	Name          string       `gorm:"type:varchar(255);not null" json:"name"`
	Description   string       `gorm:"type:text" json:"description"`
	Icon          string       `gorm:"type:varchar(512)" json:"icon"`
	URL           string       `gorm:"type:varchar(512)" json:"url"`
	Published     bool         `gorm:"not null;default:false;index" json:"published"`
	Featured      bool         `gorm:"not null;default:false" json:"featured"`
	Free          bool         `gorm:"not null;default:false" json:"free"`
	FeaturedOrder *int         `json:"featured_order"`
	FreeOrder     *int         `json:"free_order"`
	AllOrder      *int         `json:"all_order"`
	Priority      *int         `json:"priority"`
	Tags          LegacyTags   `gorm:"type:text" json:"tags"`
	Memberships   []ProductTag `gorm:"foreignKey:ProductID" json:"memberships,omitempty"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// BeforeCreate 为新产品生成 uuid
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// TagNames 返回产品关联的标签名：优先使用联结表（已预加载 Tag 时），再并上旧版数组中的名字。
func (p *Product) TagNames() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, len(p.Memberships)+len(p.Tags))
	for _, m := range p.Memberships {
		if m.Tag == nil || m.Tag.Name == "" {
			continue
		}
		if _, ok := seen[m.Tag.Name]; ok {
			continue
		}
		seen[m.Tag.Name] = struct{}{}
		names = append(names, m.Tag.Name)
	}
	for _, name := range p.Tags {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// OrderValue 返回可选排序字段的值，nil 视为 DefaultOrder。
func OrderValue(v *int) int {
	if v == nil {
		return DefaultOrder
	}
	return *v
}
