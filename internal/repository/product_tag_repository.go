package repository

import (
	"context"
	"fmt"

	"seorocket/internal/model"

	"gorm.io/gorm"
)

// ProductTagRepository 定义产品-标签联结表的持久化操作。
// 所有写操作都是独立的单行写入，不包事务：批量重排的原子性由调用方按"失败即重载"处理。
type ProductTagRepository interface {
	Create(ctx context.Context, pt *model.ProductTag) error
	Find(ctx context.Context, productID, tagID string) (*model.ProductTag, error)
	FindByTagID(ctx context.Context, tagID string) ([]model.ProductTag, error)
	// FindByTagName 按标签名查出该标签下的全部联结行
	FindByTagName(ctx context.Context, name string) ([]model.ProductTag, error)
	// MaxPosition 返回该标签下最大的 order_position，没有成员时 ok=false
	MaxPosition(ctx context.Context, tagID string) (max int, ok bool, err error)
	UpdatePosition(ctx context.Context, id string, position int) error
	Delete(ctx context.Context, productID, tagID string) (int64, error)
	DeleteByProduct(ctx context.Context, productID string) error
}

type productTagRepository struct {
	db *gorm.DB
}

func NewProductTagRepository(db *gorm.DB) ProductTagRepository {
	return &productTagRepository{db: db}
}

func (r *productTagRepository) Create(ctx context.Context, pt *model.ProductTag) error {
	if pt == nil {
		return fmt.Errorf("product tag is nil")
	}
	if pt.ProductID == "" || pt.TagID == "" {
		return fmt.Errorf("product id and tag id are required")
	}
	return r.db.WithContext(ctx).Omit("Tag").Create(pt).Error
}

func (r *productTagRepository) Find(ctx context.Context, productID, tagID string) (*model.ProductTag, error) {
	var pt model.ProductTag
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND tag_id = ?", productID, tagID).
		First(&pt).Error; err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *productTagRepository) FindByTagID(ctx context.Context, tagID string) ([]model.ProductTag, error) {
	var rows []model.ProductTag
	if err := r.db.WithContext(ctx).
		Where("tag_id = ?", tagID).
		Order("order_position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *productTagRepository) FindByTagName(ctx context.Context, name string) ([]model.ProductTag, error) {
	var rows []model.ProductTag
	if err := r.db.WithContext(ctx).
		Joins("JOIN tags ON tags.id = product_tags.tag_id").
		Where("tags.name = ?", name).
		Order("product_tags.order_position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *productTagRepository) MaxPosition(ctx context.Context, tagID string) (int, bool, error) {
	var result struct {
		Max   *int
		Count int64
	}
	if err := r.db.WithContext(ctx).Model(&model.ProductTag{}).
		Select("MAX(order_position) AS max, COUNT(*) AS count").
		Where("tag_id = ?", tagID).
		Scan(&result).Error; err != nil {
		return 0, false, err
	}
	if result.Count == 0 || result.Max == nil {
		return 0, false, nil
	}
	return *result.Max, true, nil
}

func (r *productTagRepository) UpdatePosition(ctx context.Context, id string, position int) error {
	// 位置未变化时 MySQL 的 RowsAffected 为 0，这里不据此判断记录是否存在
	return r.db.WithContext(ctx).Model(&model.ProductTag{}).Where("id = ?", id).Update("order_position", position).Error
}

func (r *productTagRepository) Delete(ctx context.Context, productID, tagID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("product_id = ? AND tag_id = ?", productID, tagID).
		Delete(&model.ProductTag{})
	return res.RowsAffected, res.Error
}

func (r *productTagRepository) DeleteByProduct(ctx context.Context, productID string) error {
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&model.ProductTag{}).Error
}
