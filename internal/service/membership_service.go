package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"seorocket/internal/model"
	"seorocket/internal/realtime"
	"seorocket/internal/repository"
	"seorocket/pkg/log"

	"gorm.io/gorm"
)

// MembershipService 维护产品-标签联结表以及每个标签内部的 order_position。
//
// 写操作返回 bool：false 表示底层写入失败，数据可能处于部分更新状态，
// 调用方应重新加载权威数据，而不是信任本地的乐观更新。这里不做补偿回滚。
type MembershipService interface {
	AddMembership(ctx context.Context, productID, tagID string, position *int) bool
	RemoveMembership(ctx context.Context, productID, tagID string) bool
	Reorder(ctx context.Context, tagID string, orderedSlugs []string) bool
	ReorderByIDs(ctx context.Context, tagID string, orderedProductIDs []string) bool
	// Members 返回标签下的产品（含未发布），按 order_position 排序
	Members(ctx context.Context, tagID string) ([]model.Product, error)
}

type membershipService struct {
	productTags repository.ProductTagRepository
	products    repository.ProductRepository
	publisher   realtime.Publisher
}

func NewMembershipService(productTags repository.ProductTagRepository, products repository.ProductRepository, publisher realtime.Publisher) MembershipService {
	return &membershipService{productTags: productTags, products: products, publisher: publisher}
}

// AddMembership 创建一条联结行。position 为空时追加到该标签列表末尾（max+1，空列表为 0）。
// 已存在相同 (product, tag) 时不再重复插入，直接视为成功。
func (s *membershipService) AddMembership(ctx context.Context, productID, tagID string, position *int) bool {
	if s.productTags == nil {
		log.Warn("MembershipService.AddMembership: database not configured")
		return false
	}
	productID, tagID = strings.TrimSpace(productID), strings.TrimSpace(tagID)
	if productID == "" || tagID == "" {
		return false
	}

	existing, err := s.productTags.Find(ctx, productID, tagID)
	if err == nil && existing != nil {
		return true
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("AddMembership: failed to check %s/%s: %v", productID, tagID, err)
		return false
	}

	pos := 0
	if position != nil {
		pos = *position
	} else {
		maxPos, ok, err := s.productTags.MaxPosition(ctx, tagID)
		if err != nil {
			log.Errorf("AddMembership: failed to read max position of %s: %v", tagID, err)
			return false
		}
		if ok {
			pos = maxPos + 1
		}
	}

	row := &model.ProductTag{ProductID: productID, TagID: tagID, OrderPosition: pos}
	if err := s.productTags.Create(ctx, row); err != nil {
		log.Errorf("AddMembership: failed to insert %s/%s: %v", productID, tagID, err)
		return false
	}
	publish(s.publisher, realtime.TableProductTags, realtime.EventInsert, row, nil)
	return true
}

func (s *membershipService) RemoveMembership(ctx context.Context, productID, tagID string) bool {
	if s.productTags == nil {
		log.Warn("MembershipService.RemoveMembership: database not configured")
		return false
	}
	if strings.TrimSpace(productID) == "" || strings.TrimSpace(tagID) == "" {
		return false
	}
	n, err := s.productTags.Delete(ctx, productID, tagID)
	if err != nil {
		log.Errorf("RemoveMembership: failed to delete %s/%s: %v", productID, tagID, err)
		return false
	}
	if n > 0 {
		publish(s.publisher, realtime.TableProductTags, realtime.EventDelete, nil,
			map[string]string{"product_id": productID, "tag_id": tagID})
	}
	return true
}

// Reorder 先把 slug 解析为产品 ID，再按 ReorderByIDs 重写位置。解析不到的 slug 被忽略。
func (s *membershipService) Reorder(ctx context.Context, tagID string, orderedSlugs []string) bool {
	if s.products == nil || s.productTags == nil {
		log.Warn("MembershipService.Reorder: database not configured")
		return false
	}
	found, err := s.products.FindBySlugs(ctx, orderedSlugs)
	if err != nil {
		log.Errorf("Reorder: failed to resolve slugs for tag %s: %v", tagID, err)
		return false
	}
	idBySlug := make(map[string]string, len(found))
	for _, p := range found {
		idBySlug[p.Slug] = p.ID
	}

	ids := make([]string, 0, len(orderedSlugs))
	for _, sl := range orderedSlugs {
		if id, ok := idBySlug[sl]; ok {
			ids = append(ids, id)
		} else {
			log.Warnf("Reorder: unknown product slug %q ignored", sl)
		}
	}
	return s.ReorderByIDs(ctx, tagID, ids)
}

// ReorderByIDs 把该标签下每一条联结行的 order_position 重写为 0..N-1：
// 先是 orderedProductIDs 中列出的产品，再是未列出的成员（保持原有相对顺序）。
// 每行独立写入，任一失败立即返回 false。
func (s *membershipService) ReorderByIDs(ctx context.Context, tagID string, orderedProductIDs []string) bool {
	if s.productTags == nil {
		log.Warn("MembershipService.ReorderByIDs: database not configured")
		return false
	}
	if strings.TrimSpace(tagID) == "" {
		return false
	}

	rows, err := s.productTags.FindByTagID(ctx, tagID)
	if err != nil {
		log.Errorf("ReorderByIDs: failed to load members of %s: %v", tagID, err)
		return false
	}

	for i, row := range planPositions(rows, orderedProductIDs) {
		if err := s.productTags.UpdatePosition(ctx, row.ID, i); err != nil {
			log.Errorf("ReorderByIDs: failed to update %s at %d: %v", row.ID, i, err)
			return false
		}
		old := row
		row.OrderPosition = i
		publish(s.publisher, realtime.TableProductTags, realtime.EventUpdate, row, old)
	}
	return true
}

// planPositions 计算重排后的行顺序。rows 需已按当前 order_position 排好。
// 同一产品存在多条重复联结行时，这些行连续排列。
func planPositions(rows []model.ProductTag, orderedProductIDs []string) []model.ProductTag {
	byProduct := make(map[string][]model.ProductTag, len(rows))
	for _, row := range rows {
		byProduct[row.ProductID] = append(byProduct[row.ProductID], row)
	}

	plan := make([]model.ProductTag, 0, len(rows))
	placed := make(map[string]struct{}, len(rows))
	for _, id := range orderedProductIDs {
		if _, done := placed[id]; done {
			continue
		}
		members, ok := byProduct[id]
		if !ok {
			continue
		}
		placed[id] = struct{}{}
		plan = append(plan, members...)
	}
	for _, row := range rows {
		if _, done := placed[row.ProductID]; done {
			continue
		}
		plan = append(plan, row)
	}
	return plan
}

func (s *membershipService) Members(ctx context.Context, tagID string) ([]model.Product, error) {
	if s.productTags == nil || s.products == nil {
		return []model.Product{}, nil
	}
	rows, err := s.productTags.FindByTagID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	positions := positionsByProduct(rows)
	ids := make([]string, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByPosition(products, positions)
	return products, nil
}

// positionsByProduct 建立 product_id -> order_position 映射，重复行取最小位置
func positionsByProduct(rows []model.ProductTag) map[string]int {
	positions := make(map[string]int, len(rows))
	for _, row := range rows {
		if cur, ok := positions[row.ProductID]; !ok || row.OrderPosition < cur {
			positions[row.ProductID] = row.OrderPosition
		}
	}
	return positions
}

func sortByPosition(products []model.Product, positions map[string]int) {
	sort.SliceStable(products, func(i, j int) bool {
		return positionOf(positions, products[i].ID) < positionOf(positions, products[j].ID)
	})
}

func positionOf(positions map[string]int, id string) int {
	if pos, ok := positions[id]; ok {
		return pos
	}
	return model.MissingPosition
}
