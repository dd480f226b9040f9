package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"seorocket/internal/model"
	"seorocket/internal/repository"
	"seorocket/pkg/log"
)

// ResolutionSource 标识结果来自哪一层
type ResolutionSource string

const (
	SourceSystem   ResolutionSource = "system"
	SourceJunction ResolutionSource = "junction"
	SourceLegacy   ResolutionSource = "legacy"
	SourceMemory   ResolutionSource = "memory"
	SourceEmpty    ResolutionSource = "empty"
)

// Resolution 是一次筛选解析的结果，具体类型说明它由哪一层给出。
type Resolution interface {
	Source() ResolutionSource
	Products() []model.Product
}

// SystemResult 来自 Featured / Free / All 三个系统列表
type SystemResult struct {
	Filter string
	Items  []model.Product
}

// JunctionResult 来自 product_tags 联结表，Positions 为 product_id -> order_position
type JunctionResult struct {
	Tag       string
	Items     []model.Product
	Positions map[string]int
}

// LegacyResult 来自产品行上的旧版 tags 数组，按 priority 排序
type LegacyResult struct {
	Tag   string
	Items []model.Product
}

// MemoryResult 是数据库两层都失败后，在调用方缓存的产品上做的内存筛选
type MemoryResult struct {
	Filter string
	Items  []model.Product
}

// EmptyResult 表示没有任何一层可用，Err 为最后一次失败的原因（可能为 nil）
type EmptyResult struct {
	Filter string
	Err    error
}

func (r SystemResult) Source() ResolutionSource    { return SourceSystem }
func (r SystemResult) Products() []model.Product   { return r.Items }
func (r JunctionResult) Source() ResolutionSource  { return SourceJunction }
func (r JunctionResult) Products() []model.Product { return r.Items }
func (r LegacyResult) Source() ResolutionSource    { return SourceLegacy }
func (r LegacyResult) Products() []model.Product   { return r.Items }
func (r MemoryResult) Source() ResolutionSource    { return SourceMemory }
func (r MemoryResult) Products() []model.Product   { return r.Items }
func (r EmptyResult) Source() ResolutionSource     { return SourceEmpty }
func (r EmptyResult) Products() []model.Product    { return []model.Product{} }

var (
	errNotConfigured  = errors.New("resolver: store not configured")
	errNoJunctionRows = errors.New("resolver: tag has no junction rows")
)

// Resolver 把筛选名解析为有序的产品列表：
// 系统伪标签走各自的布尔标记与排序字段；普通标签先走联结表，
// 出错或没有任何联结行时退回旧版 tags 数组，再失败则在缓存上做内存筛选。
type Resolver interface {
	ResolveFilter(ctx context.Context, filterName string, includeUnpublished bool) []model.Product
	ResolveWithCache(ctx context.Context, filterName string, includeUnpublished bool, cached []model.Product) Resolution
	ListAvailableFilters(ctx context.Context, products []model.Product, isAdmin bool) []string
}

type resolver struct {
	products    repository.ProductRepository
	productTags repository.ProductTagRepository
	tags        repository.TagRepository
}

// NewResolver 任一仓库为 nil 时对应的层视为不可用
func NewResolver(products repository.ProductRepository, productTags repository.ProductTagRepository, tags repository.TagRepository) Resolver {
	return &resolver{products: products, productTags: productTags, tags: tags}
}

// ResolveFilter 不会返回错误：所有层都不可用时返回空列表
func (r *resolver) ResolveFilter(ctx context.Context, filterName string, includeUnpublished bool) []model.Product {
	return r.ResolveWithCache(ctx, filterName, includeUnpublished, nil).Products()
}

func (r *resolver) ResolveWithCache(ctx context.Context, filterName string, includeUnpublished bool, cached []model.Product) Resolution {
	name := CanonicalFilter(filterName)

	if model.IsSystemFilter(name) {
		res, err := r.resolveSystem(ctx, name, includeUnpublished)
		if err == nil {
			return res
		}
		log.Warnf("Resolver: system list %q unavailable: %v", name, err)
		return resolveInMemory(name, includeUnpublished, cached, err)
	}

	res, err := r.resolveJunction(ctx, name, includeUnpublished)
	if err == nil {
		return res
	}
	if !errors.Is(err, errNoJunctionRows) {
		log.Warnf("Resolver: junction path for %q failed, trying legacy tags: %v", name, err)
	}

	res, err = r.resolveLegacy(ctx, name, includeUnpublished)
	if err == nil {
		return res
	}
	log.Warnf("Resolver: legacy path for %q failed: %v", name, err)
	return resolveInMemory(name, includeUnpublished, cached, err)
}

// CanonicalFilter 去空白；空名视为 All，系统伪标签大小写不敏感
func CanonicalFilter(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.FilterAll
	}
	for _, sys := range model.SystemFilters {
		if strings.EqualFold(sys, name) {
			return sys
		}
	}
	return name
}

func (r *resolver) resolveSystem(ctx context.Context, name string, includeUnpublished bool) (Resolution, error) {
	if r.products == nil {
		return nil, errNotConfigured
	}
	var (
		items []model.Product
		err   error
	)
	switch name {
	case model.FilterFeatured:
		items, err = r.products.FindFlagged(ctx, "featured", includeUnpublished)
	case model.FilterFree:
		items, err = r.products.FindFlagged(ctx, "free", includeUnpublished)
	default:
		items, err = r.products.FindAll(ctx, includeUnpublished)
	}
	if err != nil {
		return nil, err
	}
	items = filterPublished(items, includeUnpublished)
	SortBySystemOrder(items, name)
	return SystemResult{Filter: name, Items: items}, nil
}

// resolveJunction 按联结表中的 order_position 排序。
// 有联结行但全部被发布状态过滤掉时，返回空的 JunctionResult 而不是回退。
func (r *resolver) resolveJunction(ctx context.Context, name string, includeUnpublished bool) (Resolution, error) {
	if r.productTags == nil || r.products == nil {
		return nil, errNotConfigured
	}
	rows, err := r.productTags.FindByTagName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errNoJunctionRows
	}

	positions := positionsByProduct(rows)
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	items, err := r.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	items = filterPublished(items, includeUnpublished)
	sortByPosition(items, positions)
	return JunctionResult{Tag: name, Items: items, Positions: positions}, nil
}

func (r *resolver) resolveLegacy(ctx context.Context, name string, includeUnpublished bool) (Resolution, error) {
	if r.products == nil {
		return nil, errNotConfigured
	}
	candidates, err := r.products.FindByLegacyTag(ctx, name, includeUnpublished)
	if err != nil {
		return nil, err
	}
	items := make([]model.Product, 0, len(candidates))
	for _, p := range candidates {
		if p.Tags.Contains(name) {
			items = append(items, p)
		}
	}
	items = filterPublished(items, includeUnpublished)
	SortByPriority(items)
	return LegacyResult{Tag: name, Items: items}, nil
}

// resolveInMemory 在缓存的产品上重放筛选。没有缓存时返回 EmptyResult。
func resolveInMemory(name string, includeUnpublished bool, cached []model.Product, cause error) Resolution {
	if len(cached) == 0 {
		return EmptyResult{Filter: name, Err: cause}
	}
	items := make([]model.Product, 0, len(cached))
	for _, p := range cached {
		if !includeUnpublished && !p.Published {
			continue
		}
		if matchesFilter(&p, name) {
			items = append(items, p)
		}
	}
	if model.IsSystemFilter(name) {
		SortBySystemOrder(items, name)
	} else {
		SortByPriority(items)
	}
	return MemoryResult{Filter: name, Items: items}
}

func matchesFilter(p *model.Product, name string) bool {
	switch name {
	case model.FilterAll:
		return true
	case model.FilterFeatured:
		return p.Featured
	case model.FilterFree:
		return p.Free
	}
	return containsString(p.TagNames(), name)
}

// ListAvailableFilters 返回 Featured、Free、All，随后是范围内产品实际用到的标签，按 order_index 排序。
// 标签库中查不到的名字按字母序排在最后；标签库不可用时全部按字母序。
func (r *resolver) ListAvailableFilters(ctx context.Context, products []model.Product, isAdmin bool) []string {
	used := make(map[string]struct{})
	for i := range products {
		if !isAdmin && !products[i].Published {
			continue
		}
		for _, name := range products[i].TagNames() {
			if !model.IsSystemFilter(name) {
				used[name] = struct{}{}
			}
		}
	}

	filters := append([]string{}, model.SystemFilters...)
	if len(used) == 0 {
		return filters
	}

	var (
		all []model.Tag
		err error
	)
	if r.tags == nil {
		err = errNotConfigured
	} else {
		all, err = r.tags.FindAll(ctx)
	}
	if err != nil {
		log.Warnf("Resolver: tag store unavailable, ordering filters alphabetically: %v", err)
		return append(filters, sortedNames(used)...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].OrderIndex < all[j].OrderIndex })
	for _, tag := range all {
		if _, ok := used[tag.Name]; ok {
			filters = append(filters, tag.Name)
			delete(used, tag.Name)
		}
	}
	return append(filters, sortedNames(used)...)
}

// SortBySystemOrder 按系统列表各自的排序字段升序，缺失值视为 100，稳定排序
func SortBySystemOrder(items []model.Product, filter string) {
	field := func(p *model.Product) *int { return p.AllOrder }
	switch filter {
	case model.FilterFeatured:
		field = func(p *model.Product) *int { return p.FeaturedOrder }
	case model.FilterFree:
		field = func(p *model.Product) *int { return p.FreeOrder }
	}
	sort.SliceStable(items, func(i, j int) bool {
		return model.OrderValue(field(&items[i])) < model.OrderValue(field(&items[j]))
	})
}

// SortByPriority 按 priority 升序，缺失值视为 100
func SortByPriority(items []model.Product) {
	sort.SliceStable(items, func(i, j int) bool {
		return model.OrderValue(items[i].Priority) < model.OrderValue(items[j].Priority)
	})
}

func filterPublished(items []model.Product, includeUnpublished bool) []model.Product {
	if items == nil {
		return []model.Product{}
	}
	if includeUnpublished {
		return items
	}
	out := items[:0]
	for _, p := range items {
		if p.Published {
			out = append(out, p)
		}
	}
	return out
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
