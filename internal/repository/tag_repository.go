package repository

import (
	"context"
	"fmt"

	"seorocket/internal/model"

	"gorm.io/gorm"
)

// TagRepository 定义标签的持久化操作。
// 标签按 order_index 稠密排序（0..N-1），删除时负责级联清理联结表并压缩后续下标。
type TagRepository interface {
	Create(ctx context.Context, tag *model.Tag) error
	FindAll(ctx context.Context) ([]model.Tag, error)
	FindByID(ctx context.Context, id string) (*model.Tag, error)
	FindByName(ctx context.Context, name string) (*model.Tag, error)
	Count(ctx context.Context) (int64, error)
	// Update 更新 name、slug、description、color
	Update(ctx context.Context, tag *model.Tag) error
	UpdateOrderIndex(ctx context.Context, id string, orderIndex int) error

	// DeleteCascade 在事务中删除该标签的联结行、标签本身，并把其后的 order_index 依次减一。
	DeleteCascade(ctx context.Context, id string) (*model.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) error {
	if tag == nil {
		return fmt.Errorf("tag is nil")
	}
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepository) FindAll(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	if err := r.db.WithContext(ctx).Order("order_index ASC").Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	if id == "" {
		return nil, fmt.Errorf("tag id is required")
	}
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) FindByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Tag{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Update 使用 Select 限定字段，避免零值覆盖 order_index。
// 记录不存在时返回 gorm.ErrRecordNotFound。
func (r *tagRepository) Update(ctx context.Context, tag *model.Tag) error {
	if tag == nil {
		return fmt.Errorf("tag is nil")
	}
	if tag.ID == "" {
		return fmt.Errorf("tag id is required")
	}

	tx := r.db.WithContext(ctx).Model(&model.Tag{}).
		Where("id = ?", tag.ID).
		Select("name", "slug", "description", "color").
		Updates(tag)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *tagRepository) UpdateOrderIndex(ctx context.Context, id string, orderIndex int) error {
	return r.db.WithContext(ctx).Model(&model.Tag{}).Where("id = ?", id).Update("order_index", orderIndex).Error
}

func (r *tagRepository) DeleteCascade(ctx context.Context, id string) (*model.Tag, error) {
	if id == "" {
		return nil, fmt.Errorf("tag id is required")
	}

	var deleted model.Tag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&deleted).Error; err != nil {
			return err
		}

		if err := tx.Where("tag_id = ?", id).Delete(&model.ProductTag{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&model.Tag{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		// 压缩下标：后续标签整体前移一位，保持 0..N-1 无空洞
		return tx.Model(&model.Tag{}).
			Where("order_index > ?", deleted.OrderIndex).
			Update("order_index", gorm.Expr("order_index - ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}
