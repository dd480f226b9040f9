package repository

import (
	"context"
	"fmt"
	"strings"

	"seorocket/internal/model"

	"gorm.io/gorm"
)

// ProductRepository 定义产品的持久化操作。
// 查询结果都会预加载 Memberships.Tag，调用方拿到的是"带全部标签关系"的完整产品。
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context, includeUnpublished bool) ([]model.Product, error)
	// FindFlagged 查询 featured / free 标记为 true 的产品
	FindFlagged(ctx context.Context, flagColumn string, includeUnpublished bool) ([]model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindBySlug(ctx context.Context, slug string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	FindBySlugs(ctx context.Context, slugs []string) ([]model.Product, error)
	// FindByLegacyTag 在旧版 tags 列上做 contains 过滤，返回的候选行仍需调用方做精确匹配
	FindByLegacyTag(ctx context.Context, name string, includeUnpublished bool) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	UpdateColumn(ctx context.Context, id, column string, value interface{}) error
	UpdateLegacyTags(ctx context.Context, id string, tags model.LegacyTags) error
	// Delete 只删除产品行；联结表的清理由调用方负责
	Delete(ctx context.Context, id string) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) withTags(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Memberships.Tag")
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	if product == nil {
		return fmt.Errorf("product is nil")
	}
	return r.db.WithContext(ctx).Omit("Memberships").Create(product).Error
}

func (r *productRepository) FindAll(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
	tx := r.withTags(ctx)
	if !includeUnpublished {
		tx = tx.Where("published = ?", true)
	}
	var products []model.Product
	if err := tx.Order("created_at ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindFlagged(ctx context.Context, flagColumn string, includeUnpublished bool) ([]model.Product, error) {
	if flagColumn != "featured" && flagColumn != "free" {
		return nil, fmt.Errorf("unsupported flag column %q", flagColumn)
	}
	tx := r.withTags(ctx).Where(flagColumn+" = ?", true)
	if !includeUnpublished {
		tx = tx.Where("published = ?", true)
	}
	var products []model.Product
	if err := tx.Order("created_at ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("product id is required")
	}
	var product model.Product
	if err := r.withTags(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var product model.Product
	if err := r.withTags(ctx).Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}
	var products []model.Product
	if err := r.withTags(ctx).Where("id IN ?", ids).Order("created_at ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindBySlugs(ctx context.Context, slugs []string) ([]model.Product, error) {
	if len(slugs) == 0 {
		return []model.Product{}, nil
	}
	var products []model.Product
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindByLegacyTag(ctx context.Context, name string, includeUnpublished bool) ([]model.Product, error) {
	patterns := model.LegacyTagPatterns(name)
	match := r.db.Where("tags LIKE ? ESCAPE '!'", likeContains(patterns[0]))
	for _, p := range patterns[1:] {
		match = match.Or("tags LIKE ? ESCAPE '!'", likeContains(p))
	}
	tx := r.withTags(ctx).Where(match)
	if !includeUnpublished {
		tx = tx.Where("published = ?", true)
	}
	var products []model.Product
	if err := tx.Order("created_at ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Update 更新产品的可编辑字段，不触碰 tags 列与联结表。
func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	if product == nil {
		return fmt.Errorf("product is nil")
	}
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	tx := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", product.ID).
		Select("slug", "name", "description", "icon", "url", "published", "featured", "free",
			"featured_order", "free_order", "all_order", "priority").
		Updates(product)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepository) UpdateColumn(ctx context.Context, id, column string, value interface{}) error {
	tx := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update(column, value)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepository) UpdateLegacyTags(ctx context.Context, id string, tags model.LegacyTags) error {
	return r.UpdateColumn(ctx, id, "tags", tags)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likeContains 生成 contains 匹配的 LIKE 模式。转义符固定为 '!'，反斜杠在各方言里都按字面匹配
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
