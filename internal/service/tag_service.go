package service

import (
	"context"
	"errors"
	"strings"

	"seorocket/internal/model"
	"seorocket/internal/realtime"
	"seorocket/internal/repository"
	"seorocket/pkg/log"
	"seorocket/pkg/slug"

	"gorm.io/gorm"
)

// TagInput 是创建 / 更新标签的参数
type TagInput struct {
	Name        string
	Description string
	Color       string
}

// TagService 封装标签领域逻辑：稠密 order_index 的维护、系统保留名校验、
// 以及对旧版标签数组的尽力同步。
type TagService interface {
	List(ctx context.Context) ([]model.Tag, error)
	FindByID(ctx context.Context, id string) (*model.Tag, error)
	Create(ctx context.Context, in TagInput) (*model.Tag, error)
	Update(ctx context.Context, id string, in TagInput) (*model.Tag, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, ids []string) error
}

type tagService struct {
	tags      repository.TagRepository
	products  repository.ProductRepository
	publisher realtime.Publisher
}

func NewTagService(tags repository.TagRepository, products repository.ProductRepository, publisher realtime.Publisher) TagService {
	return &tagService{tags: tags, products: products, publisher: publisher}
}

// List 未配置数据库时返回空列表
func (s *tagService) List(ctx context.Context) ([]model.Tag, error) {
	if s.tags == nil {
		log.Warn("TagService.List: database not configured")
		return []model.Tag{}, nil
	}
	return s.tags.FindAll(ctx)
}

func (s *tagService) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	if s.tags == nil {
		return nil, ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return tag, nil
}

// Create 创建标签，新标签追加到列表末尾（order_index = 当前标签数）。
func (s *tagService) Create(ctx context.Context, in TagInput) (*model.Tag, error) {
	if s.tags == nil {
		return nil, ErrNotConfigured
	}
	name, err := s.validateName(ctx, in.Name, "")
	if err != nil {
		return nil, err
	}

	count, err := s.tags.Count(ctx)
	if err != nil {
		return nil, err
	}

	tag := &model.Tag{
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(in.Description),
		Color:       strings.TrimSpace(in.Color),
		OrderIndex:  int(count),
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	publish(s.publisher, realtime.TableTags, realtime.EventInsert, tag, nil)
	return tag, nil
}

// Update 更新标签。改名时把旧名在产品 tags 数组中一并替换，失败只记日志。
func (s *tagService) Update(ctx context.Context, id string, in TagInput) (*model.Tag, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name, err := s.validateName(ctx, in.Name, current.ID)
	if err != nil {
		return nil, err
	}

	old := *current
	current.Name = name
	current.Slug = slug.Make(name)
	current.Description = strings.TrimSpace(in.Description)
	current.Color = strings.TrimSpace(in.Color)

	if err := s.tags.Update(ctx, current); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	if old.Name != name {
		s.rewriteLegacyTags(ctx, old.Name, func(tags model.LegacyTags) model.LegacyTags {
			return tags.Renamed(old.Name, name)
		})
	}
	publish(s.publisher, realtime.TableTags, realtime.EventUpdate, current, &old)
	return current, nil
}

// Delete 级联删除联结行并压缩 order_index，再把标签名从旧版数组中移除，
// 否则回退路径仍会按旧数组查到这个已删除的标签。
func (s *tagService) Delete(ctx context.Context, id string) error {
	if s.tags == nil {
		return ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}

	deleted, err := s.tags.DeleteCascade(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagNotFound
		}
		return err
	}
	s.rewriteLegacyTags(ctx, deleted.Name, func(tags model.LegacyTags) model.LegacyTags {
		return tags.Without(deleted.Name)
	})

	publish(s.publisher, realtime.TableProductTags, realtime.EventDelete, nil, map[string]string{"tag_id": deleted.ID})
	publish(s.publisher, realtime.TableTags, realtime.EventDelete, nil, deleted)
	return nil
}

// Reorder 按给定顺序把 order_index 重写为 0..N-1；未列出的标签顺延在后面。
func (s *tagService) Reorder(ctx context.Context, ids []string) error {
	if s.tags == nil {
		return ErrNotConfigured
	}
	all, err := s.tags.FindAll(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]model.Tag, len(all))
	for _, tag := range all {
		byID[tag.ID] = tag
	}
	ordered := make([]model.Tag, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, id := range ids {
		tag, ok := byID[id]
		if !ok {
			return ErrTagNotFound
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, tag)
	}
	for _, tag := range all {
		if _, ok := seen[tag.ID]; !ok {
			ordered = append(ordered, tag)
		}
	}

	for i, tag := range ordered {
		if tag.OrderIndex == i {
			continue
		}
		if err := s.tags.UpdateOrderIndex(ctx, tag.ID, i); err != nil {
			log.Errorf("TagService.Reorder: failed to update %s: %v", tag.ID, err)
			return ErrReorderFailed
		}
		old := tag
		tag.OrderIndex = i
		publish(s.publisher, realtime.TableTags, realtime.EventUpdate, tag, old)
	}
	return nil
}

// validateName 校验名称非空、非系统保留名、且与其他标签不重复
func (s *tagService) validateName(ctx context.Context, raw, selfID string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrInvalidInput
	}
	for _, reserved := range model.SystemFilters {
		if strings.EqualFold(reserved, name) {
			return "", ErrReservedTagName
		}
	}

	existing, err := s.tags.FindByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return "", ErrTagAlreadyExists
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return "", err
	}
	return name, nil
}

// rewriteLegacyTags 对旧版 tags 数组做尽力同步，单行失败只记日志
func (s *tagService) rewriteLegacyTags(ctx context.Context, name string, rewrite func(model.LegacyTags) model.LegacyTags) {
	if s.products == nil {
		return
	}
	candidates, err := s.products.FindByLegacyTag(ctx, name, true)
	if err != nil {
		log.Warnf("TagService: failed to load legacy tag arrays for %q: %v", name, err)
		return
	}
	for _, p := range candidates {
		if !p.Tags.Contains(name) {
			continue
		}
		if err := s.products.UpdateLegacyTags(ctx, p.ID, rewrite(p.Tags)); err != nil {
			log.Warnf("TagService: failed to rewrite legacy tags of %s: %v", p.Slug, err)
		}
	}
}
