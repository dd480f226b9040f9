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

// ProductInput 是后台创建 / 更新产品的参数。Slug 为空时由 Name 生成。
type ProductInput struct {
	Slug          string
	Name          string
	Description   string
	Icon          string
	URL           string
	Published     bool
	Featured      bool
	Free          bool
	FeaturedOrder *int
	FreeOrder     *int
	AllOrder      *int
	Priority      *int
	Tags          []string
}

// ProductService 产品领域逻辑
type ProductService interface {
	List(ctx context.Context, includeUnpublished bool) ([]model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindBySlug(ctx context.Context, slug string, includeUnpublished bool) (*model.Product, error)
	Create(ctx context.Context, in ProductInput) (*model.Product, error)
	Update(ctx context.Context, id string, in ProductInput) (*model.Product, error)
	SetPublished(ctx context.Context, id string, published bool) (*model.Product, error)
	// ToggleTag 返回切换后产品是否属于该标签
	ToggleTag(ctx context.Context, productID, tagID string) (bool, error)
	ReorderSystemList(ctx context.Context, filter string, orderedSlugs []string) error
	Delete(ctx context.Context, id string) error
}

type productService struct {
	products    repository.ProductRepository
	productTags repository.ProductTagRepository
	tags        repository.TagRepository
	memberships MembershipService
	publisher   realtime.Publisher
}

func NewProductService(
	products repository.ProductRepository,
	productTags repository.ProductTagRepository,
	tags repository.TagRepository,
	memberships MembershipService,
	publisher realtime.Publisher,
) ProductService {
	return &productService{
		products:    products,
		productTags: productTags,
		tags:        tags,
		memberships: memberships,
		publisher:   publisher,
	}
}

func (s *productService) List(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
	if s.products == nil {
		log.Warn("ProductService.List: database not configured")
		return []model.Product{}, nil
	}
	return s.products.FindAll(ctx, includeUnpublished)
}

func (s *productService) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if s.products == nil {
		return nil, ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindBySlug 非后台请求看不到未发布的产品
func (s *productService) FindBySlug(ctx context.Context, sl string, includeUnpublished bool) (*model.Product, error) {
	if s.products == nil {
		return nil, ErrNotConfigured
	}
	sl = strings.TrimSpace(sl)
	if sl == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.products.FindBySlug(ctx, sl)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !p.Published && !includeUnpublished {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *productService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if s.products == nil {
		return nil, ErrNotConfigured
	}
	p := &model.Product{}
	if err := s.apply(ctx, p, in); err != nil {
		return nil, err
	}
	p.Tags = model.LegacyTags(in.Tags).Normalized()
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	publish(s.publisher, realtime.TableProducts, realtime.EventInsert, p, nil)
	return p, nil
}

// Update 整体替换可编辑字段；Tags 只有非 nil 时才覆盖旧版数组。
func (s *productService) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *current
	if err := s.apply(ctx, current, in); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, current); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if in.Tags != nil {
		tags := model.LegacyTags(in.Tags).Normalized()
		if err := s.products.UpdateLegacyTags(ctx, current.ID, tags); err != nil {
			return nil, err
		}
		current.Tags = tags
	}
	publish(s.publisher, realtime.TableProducts, realtime.EventUpdate, current, &old)
	return current, nil
}

// apply 校验输入并写入 p；slug 不能与其他产品冲突
func (s *productService) apply(ctx context.Context, p *model.Product, in ProductInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ErrInvalidInput
	}
	sl := slug.Make(in.Slug)
	if sl == "" {
		sl = slug.Make(name)
	}
	if sl == "" {
		return ErrInvalidInput
	}

	existing, err := s.products.FindBySlug(ctx, sl)
	switch {
	case err == nil && existing.ID != p.ID:
		return ErrSlugTaken
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	p.Slug = sl
	p.Name = name
	p.Description = strings.TrimSpace(in.Description)
	p.Icon = strings.TrimSpace(in.Icon)
	p.URL = strings.TrimSpace(in.URL)
	p.Published = in.Published
	p.Featured = in.Featured
	p.Free = in.Free
	p.FeaturedOrder = in.FeaturedOrder
	p.FreeOrder = in.FreeOrder
	p.AllOrder = in.AllOrder
	p.Priority = in.Priority
	return nil
}

func (s *productService) SetPublished(ctx context.Context, id string, published bool) (*model.Product, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Published == published {
		return current, nil
	}
	old := *current
	if err := s.products.UpdateColumn(ctx, current.ID, "published", published); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	current.Published = published
	publish(s.publisher, realtime.TableProducts, realtime.EventUpdate, current, &old)
	return current, nil
}

// ToggleTag 已是成员则移除，否则追加到该标签列表末尾。
// 联结表是权威数据，旧版数组只做尽力同步，失败只记日志。
func (s *productService) ToggleTag(ctx context.Context, productID, tagID string) (bool, error) {
	if s.productTags == nil || s.tags == nil || s.memberships == nil {
		return false, ErrNotConfigured
	}
	p, err := s.FindByID(ctx, productID)
	if err != nil {
		return false, err
	}
	tag, err := s.tags.FindByID(ctx, strings.TrimSpace(tagID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTagNotFound
		}
		return false, err
	}

	_, err = s.productTags.Find(ctx, p.ID, tag.ID)
	member := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	var legacy model.LegacyTags
	if member {
		if !s.memberships.RemoveMembership(ctx, p.ID, tag.ID) {
			return true, ErrMembershipFailed
		}
		legacy = p.Tags.Without(tag.Name)
	} else {
		if !s.memberships.AddMembership(ctx, p.ID, tag.ID, nil) {
			return false, ErrMembershipFailed
		}
		legacy = p.Tags.With(tag.Name)
	}

	if err := s.products.UpdateLegacyTags(ctx, p.ID, legacy); err != nil {
		log.Warnf("ToggleTag: failed to mirror %q into legacy tags of %s: %v", tag.Name, p.Slug, err)
	} else {
		old := *p
		p.Tags = legacy
		publish(s.publisher, realtime.TableProducts, realtime.EventUpdate, p, &old)
	}
	return !member, nil
}

// ReorderSystemList 把 Featured / Free / All 对应的排序字段按给定顺序重写为 0..N-1。
// 未知 slug 被忽略；逐行写入，第一个失败即返回 ErrReorderFailed。
func (s *productService) ReorderSystemList(ctx context.Context, filter string, orderedSlugs []string) error {
	if s.products == nil {
		return ErrNotConfigured
	}
	var column string
	switch CanonicalFilter(filter) {
	case model.FilterFeatured:
		column = "featured_order"
	case model.FilterFree:
		column = "free_order"
	case model.FilterAll:
		column = "all_order"
	default:
		return ErrUnknownFilter
	}

	found, err := s.products.FindBySlugs(ctx, orderedSlugs)
	if err != nil {
		return err
	}
	bySlug := make(map[string]model.Product, len(found))
	for _, p := range found {
		bySlug[p.Slug] = p
	}

	pos := 0
	seen := make(map[string]struct{}, len(orderedSlugs))
	for _, sl := range orderedSlugs {
		p, ok := bySlug[sl]
		if !ok {
			log.Warnf("ReorderSystemList: unknown product slug %q ignored", sl)
			continue
		}
		if _, dup := seen[sl]; dup {
			continue
		}
		seen[sl] = struct{}{}
		if err := s.products.UpdateColumn(ctx, p.ID, column, pos); err != nil {
			log.Errorf("ReorderSystemList: failed to set %s of %s: %v", column, sl, err)
			return ErrReorderFailed
		}
		publish(s.publisher, realtime.TableProducts, realtime.EventUpdate,
			map[string]interface{}{"id": p.ID, "slug": p.Slug, column: pos}, nil)
		pos++
	}
	return nil
}

// Delete 先删联结行再删产品本身，没有依赖数据库级联。
func (s *productService) Delete(ctx context.Context, id string) error {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if s.productTags != nil {
		if err := s.productTags.DeleteByProduct(ctx, current.ID); err != nil {
			return err
		}
		publish(s.publisher, realtime.TableProductTags, realtime.EventDelete, nil,
			map[string]string{"product_id": current.ID})
	}
	if err := s.products.Delete(ctx, current.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	publish(s.publisher, realtime.TableProducts, realtime.EventDelete, nil, current)
	return nil
}
