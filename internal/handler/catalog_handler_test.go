package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"seorocket/internal/coherence"
	"seorocket/internal/model"
	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

// catalogProducts：seo-kit 已发布，draft-kit 是草稿，二者都带 SEO 标签
func catalogProducts() []model.Product {
	return []model.Product{
		{ID: "p1", Slug: "seo-kit", Name: "SEO Kit", Published: true, Featured: true, FeaturedOrder: intPtr(2), Tags: model.LegacyTags{"SEO"}},
		{ID: "p2", Slug: "draft-kit", Name: "Draft Kit", Published: false, Tags: model.LegacyTags{"SEO", "Drafts"}},
		{ID: "p3", Slug: "free-kit", Name: "Free Kit", Published: true, Free: true, Featured: true, FeaturedOrder: intPtr(1), Tags: model.LegacyTags{"Analytics"}},
	}
}

func catalogLister() *fakeLister {
	return &fakeLister{listFn: func(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
		var out []model.Product
		for _, p := range catalogProducts() {
			if includeUnpublished || p.Published {
				out = append(out, p)
			}
		}
		return out, nil
	}}
}

func newCatalogRouter(h *CatalogHandler, session bool) *gin.Engine {
	r := gin.New()
	if session {
		r.Use(withSession)
	}
	r.GET("/filters", h.Filters)
	r.GET("/products", h.Products)
	r.GET("/catalog", h.Snapshot)
	return r
}

type productsPayload struct {
	Filter   string          `json:"filter"`
	Source   string          `json:"source"`
	Products []model.Product `json:"products"`
}

func slugs(products []model.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Slug)
	}
	return out
}

func TestCatalogFilters_PublicHidesDraftOnlyTags(t *testing.T) {
	h := NewCatalogHandler(service.NewResolver(nil, nil, nil), catalogLister(), nil)
	r := newCatalogRouter(h, false)

	w := doReq(r, http.MethodGet, "/filters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var filters []string
	decode(t, w, &filters)
	want := []string{"Featured", "Free", "All", "Analytics", "SEO"}
	if !equalSlices(filters, want) {
		t.Fatalf("expect %v, got %v", want, filters)
	}
}

func TestCatalogFilters_AdminSeesDraftTags(t *testing.T) {
	h := NewCatalogHandler(service.NewResolver(nil, nil, nil), catalogLister(), nil)
	r := newCatalogRouter(h, true)

	w := doReq(r, http.MethodGet, "/filters", "")
	var filters []string
	decode(t, w, &filters)
	want := []string{"Featured", "Free", "All", "Analytics", "Drafts", "SEO"}
	if !equalSlices(filters, want) {
		t.Fatalf("expect %v, got %v", want, filters)
	}
}

func TestCatalogProducts_FallsBackToInMemoryFilter(t *testing.T) {
	h := NewCatalogHandler(service.NewResolver(nil, nil, nil), catalogLister(), nil)

	w := doReq(newCatalogRouter(h, false), http.MethodGet, "/products?filter=SEO", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var payload productsPayload
	decode(t, w, &payload)
	if payload.Source != string(service.SourceMemory) {
		t.Fatalf("expect memory source, got %q", payload.Source)
	}
	if got := slugs(payload.Products); !equalSlices(got, []string{"seo-kit"}) {
		t.Fatalf("expect only published seo-kit, got %v", got)
	}

	w = doReq(newCatalogRouter(h, true), http.MethodGet, "/products?filter=SEO", "")
	decode(t, w, &payload)
	if got := slugs(payload.Products); len(got) != 2 {
		t.Fatalf("expect admin to see draft too, got %v", got)
	}
}

func TestCatalogProducts_SystemFilterOrderAndDefault(t *testing.T) {
	h := NewCatalogHandler(service.NewResolver(nil, nil, nil), catalogLister(), nil)
	r := newCatalogRouter(h, false)

	w := doReq(r, http.MethodGet, "/products?filter=featured", "")
	var payload productsPayload
	decode(t, w, &payload)
	if payload.Filter != model.FilterFeatured {
		t.Fatalf("expect canonical Featured, got %q", payload.Filter)
	}
	if got := slugs(payload.Products); !equalSlices(got, []string{"free-kit", "seo-kit"}) {
		t.Fatalf("expect featured_order ascending, got %v", got)
	}

	w = doReq(r, http.MethodGet, "/products", "")
	decode(t, w, &payload)
	if payload.Filter != model.FilterAll || len(payload.Products) != 2 {
		t.Fatalf("expect empty filter to mean All, got %q %v", payload.Filter, slugs(payload.Products))
	}
}

func TestCatalogProducts_EmptyWhenNothingAvailable(t *testing.T) {
	lister := &fakeLister{listFn: func(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
		return nil, errors.New("boom")
	}}
	h := NewCatalogHandler(service.NewResolver(nil, nil, nil), lister, nil)

	w := doReq(newCatalogRouter(h, false), http.MethodGet, "/products?filter=SEO", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200 with empty list, got %d", w.Code)
	}
	var payload productsPayload
	decode(t, w, &payload)
	if payload.Source != string(service.SourceEmpty) || len(payload.Products) != 0 {
		t.Fatalf("expect empty result, got %q %v", payload.Source, slugs(payload.Products))
	}
}

func TestCatalogSnapshot_WithoutView(t *testing.T) {
	h := NewCatalogHandler(service.NewResolver(nil, nil, nil), catalogLister(), nil)

	w := doReq(newCatalogRouter(h, false), http.MethodGet, "/catalog", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expect 503, got %d", w.Code)
	}
}

func TestCatalog_PublicRequestsUseViewCache(t *testing.T) {
	resolver := service.NewResolver(nil, nil, nil)
	calls := 0
	lister := &fakeLister{listFn: func(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("database went away")
		}
		return catalogLister().List(ctx, includeUnpublished)
	}}
	view := coherence.NewView(nil, lister, resolver, coherence.Options{Filter: "SEO"})
	defer view.Close()
	if err := view.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	h := NewCatalogHandler(resolver, lister, view)
	r := newCatalogRouter(h, false)

	// 视图之后的加载全部失败，公开请求仍能在缓存上筛选
	w := doReq(r, http.MethodGet, "/products?filter=Analytics", "")
	var payload productsPayload
	decode(t, w, &payload)
	if got := slugs(payload.Products); !equalSlices(got, []string{"free-kit"}) {
		t.Fatalf("expect free-kit from cached snapshot, got %v", got)
	}

	w = doReq(r, http.MethodGet, "/catalog", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var snap struct {
		Snapshot struct {
			Filter   string          `json:"filter"`
			Products []model.Product `json:"products"`
		} `json:"snapshot"`
		State string `json:"state"`
	}
	decode(t, w, &snap)
	if snap.Snapshot.Filter != "SEO" || !equalSlices(slugs(snap.Snapshot.Products), []string{"seo-kit"}) {
		t.Fatalf("unexpected snapshot: %+v", snap.Snapshot)
	}
	if snap.State != coherence.StateDisconnected.String() {
		t.Fatalf("expect disconnected without source, got %q", snap.State)
	}
}

func equalSlices(a, b []string) bool {
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
