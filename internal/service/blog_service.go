package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"seorocket/internal/model"
	"seorocket/internal/realtime"
	"seorocket/internal/repository"
	"seorocket/pkg/log"
	"seorocket/pkg/slug"

	"gorm.io/gorm"
)

type BlogPostInput struct {
	Slug       string
	Title      string
	Excerpt    string
	Content    string
	CoverImage string
	Published  bool
}

// BlogService 博客文章：后台增删改查，前台只读已发布文章
type BlogService interface {
	List(ctx context.Context, includeUnpublished bool) ([]model.BlogPost, error)
	FindByID(ctx context.Context, id string) (*model.BlogPost, error)
	FindBySlug(ctx context.Context, slug string, includeUnpublished bool) (*model.BlogPost, error)
	Create(ctx context.Context, in BlogPostInput) (*model.BlogPost, error)
	Update(ctx context.Context, id string, in BlogPostInput) (*model.BlogPost, error)
	Delete(ctx context.Context, id string) error
}

type blogService struct {
	posts     repository.BlogPostRepository
	publisher realtime.Publisher
	now       func() time.Time
}

func NewBlogService(posts repository.BlogPostRepository, publisher realtime.Publisher) BlogService {
	return &blogService{posts: posts, publisher: publisher, now: time.Now}
}

func (s *blogService) List(ctx context.Context, includeUnpublished bool) ([]model.BlogPost, error) {
	if s.posts == nil {
		log.Warn("BlogService.List: database not configured")
		return []model.BlogPost{}, nil
	}
	return s.posts.FindAll(ctx, includeUnpublished)
}

func (s *blogService) FindByID(ctx context.Context, id string) (*model.BlogPost, error) {
	if s.posts == nil {
		return nil, ErrNotConfigured
	}
	post, err := s.posts.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *blogService) FindBySlug(ctx context.Context, sl string, includeUnpublished bool) (*model.BlogPost, error) {
	if s.posts == nil {
		return nil, ErrNotConfigured
	}
	post, err := s.posts.FindBySlug(ctx, strings.TrimSpace(sl))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if !post.Published && !includeUnpublished {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *blogService) Create(ctx context.Context, in BlogPostInput) (*model.BlogPost, error) {
	if s.posts == nil {
		return nil, ErrNotConfigured
	}
	post := &model.BlogPost{}
	if err := s.apply(ctx, post, in); err != nil {
		return nil, err
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	publish(s.publisher, realtime.TableBlogPosts, realtime.EventInsert, post, nil)
	return post, nil
}

func (s *blogService) Update(ctx context.Context, id string, in BlogPostInput) (*model.BlogPost, error) {
	post, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *post
	if err := s.apply(ctx, post, in); err != nil {
		return nil, err
	}
	if err := s.posts.Update(ctx, post); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	publish(s.publisher, realtime.TableBlogPosts, realtime.EventUpdate, post, &old)
	return post, nil
}

// apply 第一次发布时记录 PublishedAt，撤回发布后保留原时间
func (s *blogService) apply(ctx context.Context, post *model.BlogPost, in BlogPostInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ErrInvalidInput
	}
	sl := slug.Make(in.Slug)
	if sl == "" {
		sl = slug.Make(title)
	}
	if sl == "" {
		return ErrInvalidInput
	}
	existing, err := s.posts.FindBySlug(ctx, sl)
	switch {
	case err == nil && existing.ID != post.ID:
		return ErrSlugTaken
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	post.Slug = sl
	post.Title = title
	post.Excerpt = strings.TrimSpace(in.Excerpt)
	post.Content = in.Content
	post.CoverImage = strings.TrimSpace(in.CoverImage)
	post.Published = in.Published
	if in.Published && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}
	return nil
}

func (s *blogService) Delete(ctx context.Context, id string) error {
	if s.posts == nil {
		return ErrNotConfigured
	}
	if err := s.posts.Delete(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	publish(s.publisher, realtime.TableBlogPosts, realtime.EventDelete, nil, map[string]string{"id": id})
	return nil
}
