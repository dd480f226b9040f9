package repository

import (
	"context"
	"fmt"

	"seorocket/internal/model"

	"gorm.io/gorm"
)

// BlogPostRepository 定义博客文章的持久化操作。
type BlogPostRepository interface {
	Create(ctx context.Context, post *model.BlogPost) error
	FindAll(ctx context.Context, includeUnpublished bool) ([]model.BlogPost, error)
	FindByID(ctx context.Context, id string) (*model.BlogPost, error)
	FindBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	Update(ctx context.Context, post *model.BlogPost) error
	Delete(ctx context.Context, id string) error
}

type blogPostRepository struct {
	db *gorm.DB
}

func NewBlogPostRepository(db *gorm.DB) BlogPostRepository {
	return &blogPostRepository{db: db}
}

func (r *blogPostRepository) Create(ctx context.Context, post *model.BlogPost) error {
	if post == nil {
		return fmt.Errorf("blog post is nil")
	}
	return r.db.WithContext(ctx).Create(post).Error
}

// FindAll 按发布时间倒序，未发布的草稿排在最后
func (r *blogPostRepository) FindAll(ctx context.Context, includeUnpublished bool) ([]model.BlogPost, error) {
	tx := r.db.WithContext(ctx)
	if !includeUnpublished {
		tx = tx.Where("published = ?", true)
	}
	var posts []model.BlogPost
	if err := tx.Order("published DESC").Order("published_at DESC").Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *blogPostRepository) FindByID(ctx context.Context, id string) (*model.BlogPost, error) {
	var post model.BlogPost
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *blogPostRepository) FindBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	var post model.BlogPost
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *blogPostRepository) Update(ctx context.Context, post *model.BlogPost) error {
	if post == nil || post.ID == "" {
		return fmt.Errorf("blog post id is required")
	}
	tx := r.db.WithContext(ctx).Model(&model.BlogPost{}).
		Where("id = ?", post.ID).
		Select("slug", "title", "excerpt", "content", "cover_image", "published", "published_at").
		Updates(post)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *blogPostRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.BlogPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
