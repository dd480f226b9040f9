package service

import (
	"context"
	"sync"
	"testing"

	"seorocket/internal/model"
	"seorocket/internal/realtime"
	"seorocket/internal/repository"
	"seorocket/internal/testutil"

	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
}

func (p *recordingPublisher) Publish(evt realtime.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) count(table string, typ realtime.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, evt := range p.events {
		if evt.Table == table && evt.Type == typ {
			n++
		}
	}
	return n
}

// catalogFixture 在内存 SQLite 上组装全部目录服务
type catalogFixture struct {
	db          *gorm.DB
	products    repository.ProductRepository
	productTags repository.ProductTagRepository
	tags        repository.TagRepository
	pub         *recordingPublisher

	tagSvc      TagService
	productSvc  ProductService
	memberships MembershipService
	resolver    Resolver
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &catalogFixture{
		db:          db,
		products:    repository.NewProductRepository(db),
		productTags: repository.NewProductTagRepository(db),
		tags:        repository.NewTagRepository(db),
		pub:         &recordingPublisher{},
	}
	f.tagSvc = NewTagService(f.tags, f.products, f.pub)
	f.memberships = NewMembershipService(f.productTags, f.products, f.pub)
	f.productSvc = NewProductService(f.products, f.productTags, f.tags, f.memberships, f.pub)
	f.resolver = NewResolver(f.products, f.productTags, f.tags)
	return f
}

// product 直接写库，跳过 slug 校验，便于构造任意排序字段
func (f *catalogFixture) product(t *testing.T, sl string, published bool, mutate ...func(*model.Product)) *model.Product {
	t.Helper()
	p := &model.Product{Slug: sl, Name: sl}
	for _, fn := range mutate {
		fn(p)
	}
	if err := f.products.Create(context.Background(), p); err != nil {
		t.Fatalf("create product %s: %v", sl, err)
	}
	if published {
		if err := f.products.UpdateColumn(context.Background(), p.ID, "published", true); err != nil {
			t.Fatalf("publish %s: %v", sl, err)
		}
		p.Published = true
	}
	return p
}

func (f *catalogFixture) tag(t *testing.T, name string) *model.Tag {
	t.Helper()
	tag, err := f.tagSvc.Create(context.Background(), TagInput{Name: name})
	if err != nil {
		t.Fatalf("create tag %s: %v", name, err)
	}
	return tag
}

func (f *catalogFixture) join(t *testing.T, p *model.Product, tag *model.Tag) {
	t.Helper()
	if !f.memberships.AddMembership(context.Background(), p.ID, tag.ID, nil) {
		t.Fatalf("AddMembership(%s, %s) failed", p.Slug, tag.Name)
	}
}

func slugsOf(products []model.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Slug)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func withLegacyTags(names ...string) func(*model.Product) {
	return func(p *model.Product) { p.Tags = model.LegacyTags(names) }
}

func withPriority(v int) func(*model.Product) {
	return func(p *model.Product) { p.Priority = testutil.IntPtr(v) }
}
