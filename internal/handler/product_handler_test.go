package handler

import (
	"context"
	"net/http"
	"testing"

	"seorocket/internal/coherence"
	"seorocket/internal/model"
	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

func newProductRouter(h *ProductHandler, session bool) *gin.Engine {
	r := gin.New()
	if session {
		r.Use(withSession)
	}
	r.GET("/products/:slug", h.GetBySlug)
	admin := r.Group("/admin/products")
	admin.GET("", h.List)
	admin.GET("/:id", h.Get)
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
	admin.PATCH("/:id/publish", h.SetPublished)
	admin.POST("/:id/tags/:tagId/toggle", h.ToggleTag)
	admin.PUT("/order/:filter", h.ReorderSystemList)
	return r
}

func TestProductGetBySlug_PublicCannotSeeDraft(t *testing.T) {
	var gotIncl bool
	svc := &fakeProductService{
		findBySlugFn: func(ctx context.Context, slug string, includeUnpublished bool) (*model.Product, error) {
			gotIncl = includeUnpublished
			return nil, service.ErrProductNotFound
		},
	}
	w := doReq(newProductRouter(NewProductHandler(svc, nil, nil), false), http.MethodGet, "/products/draft", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expect 404, got %d", w.Code)
	}
	if gotIncl {
		t.Fatal("public request must not include unpublished products")
	}

	doReq(newProductRouter(NewProductHandler(svc, nil, nil), true), http.MethodGet, "/products/draft", "")
	if !gotIncl {
		t.Fatal("admin request should include unpublished products")
	}
}

func TestProductGetBySlug_FallsBackToLegacyFile(t *testing.T) {
	svc := &fakeProductService{
		findBySlugFn: func(ctx context.Context, slug string, includeUnpublished bool) (*model.Product, error) {
			return nil, service.ErrNotConfigured
		},
	}
	h := NewProductHandler(svc, nil, catalogLister())
	r := newProductRouter(h, false)

	w := doReq(r, http.MethodGet, "/products/seo-kit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var p model.Product
	decode(t, w, &p)
	if p.ID != "p1" {
		t.Fatalf("expect p1, got %+v", p)
	}

	w = doReq(r, http.MethodGet, "/products/draft-kit", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expect draft to stay hidden, got %d", w.Code)
	}
}

func TestProductCreate(t *testing.T) {
	var got service.ProductInput
	svc := &fakeProductService{
		createFn: func(ctx context.Context, in service.ProductInput) (*model.Product, error) {
			got = in
			return &model.Product{ID: "new", Name: in.Name}, nil
		},
	}
	r := newProductRouter(NewProductHandler(svc, nil, nil), true)

	w := doReq(r, http.MethodPost, "/admin/products", `{"name":"Rank Tracker","featured":true,"featured_order":3,"tags":["SEO"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expect 201, got %d, body=%s", w.Code, w.Body.String())
	}
	if got.Name != "Rank Tracker" || !got.Featured || got.FeaturedOrder == nil || *got.FeaturedOrder != 3 {
		t.Fatalf("unexpected input: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "SEO" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}

	w = doReq(r, http.MethodPost, "/admin/products", `{"slug":"no-name"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400 without name, got %d", w.Code)
	}
}

func TestProductUpdate_OmittedTagsStayNil(t *testing.T) {
	var got service.ProductInput
	svc := &fakeProductService{
		updateFn: func(ctx context.Context, id string, in service.ProductInput) (*model.Product, error) {
			got = in
			return &model.Product{ID: id}, nil
		},
	}
	r := newProductRouter(NewProductHandler(svc, nil, nil), true)

	w := doReq(r, http.MethodPut, "/admin/products/p1", `{"name":"Renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d", w.Code)
	}
	if got.Tags != nil {
		t.Fatalf("expect nil tags when omitted, got %v", got.Tags)
	}

	doReq(r, http.MethodPut, "/admin/products/p1", `{"name":"Renamed","tags":[]}`)
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Fatalf("expect explicit empty tags, got %v", got.Tags)
	}
}

func TestProductUpdate_SlugConflict(t *testing.T) {
	svc := &fakeProductService{
		updateFn: func(ctx context.Context, id string, in service.ProductInput) (*model.Product, error) {
			return nil, service.ErrSlugTaken
		},
	}
	w := doReq(newProductRouter(NewProductHandler(svc, nil, nil), true), http.MethodPut, "/admin/products/p1", `{"name":"x","slug":"taken"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expect 409, got %d", w.Code)
	}
}

func TestProductSetPublished_RequiresField(t *testing.T) {
	r := newProductRouter(NewProductHandler(&fakeProductService{}, nil, nil), true)

	w := doReq(r, http.MethodPatch, "/admin/products/p1/publish", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400, got %d", w.Code)
	}
	w = doReq(r, http.MethodPatch, "/admin/products/p1/publish", `{"published":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestProductToggleTag(t *testing.T) {
	svc := &fakeProductService{
		toggleTagFn: func(ctx context.Context, productID, tagID string) (bool, error) {
			if productID != "p1" || tagID != "t1" {
				t.Errorf("unexpected ids %s %s", productID, tagID)
			}
			return true, nil
		},
	}
	w := doReq(newProductRouter(NewProductHandler(svc, nil, nil), true), http.MethodPost, "/admin/products/p1/tags/t1/toggle", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d", w.Code)
	}
	var data map[string]bool
	decode(t, w, &data)
	if !data["member"] {
		t.Fatalf("expect member=true, got %v", data)
	}
}

func TestProductReorderSystemList(t *testing.T) {
	var gotFilter string
	var gotSlugs []string
	svc := &fakeProductService{
		reorderSystemFn: func(ctx context.Context, filter string, orderedSlugs []string) error {
			gotFilter, gotSlugs = filter, orderedSlugs
			return nil
		},
	}
	r := newProductRouter(NewProductHandler(svc, nil, nil), true)

	w := doReq(r, http.MethodPut, "/admin/products/order/featured", `{"slugs":["c","a","b"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if gotFilter != model.FilterFeatured || !equalSlices(gotSlugs, []string{"c", "a", "b"}) {
		t.Fatalf("unexpected call: %q %v", gotFilter, gotSlugs)
	}

	w = doReq(r, http.MethodPut, "/admin/products/order/SEO", `{"slugs":["a"]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400 for non-system filter, got %d", w.Code)
	}
}

func TestProductReorderSystemList_FailureReloadsView(t *testing.T) {
	resolver := service.NewResolver(nil, nil, nil)
	view := coherence.NewView(nil, catalogLister(), resolver, coherence.Options{Filter: model.FilterFeatured})
	defer view.Close()
	if err := view.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	before := view.Reloads()

	svc := &fakeProductService{
		reorderSystemFn: func(ctx context.Context, filter string, orderedSlugs []string) error {
			return service.ErrReorderFailed
		},
	}
	r := newProductRouter(NewProductHandler(svc, view, nil), true)

	w := doReq(r, http.MethodPut, "/admin/products/order/Featured", `{"slugs":["seo-kit","free-kit"]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expect 500, got %d", w.Code)
	}
	if view.Reloads() != before+1 {
		t.Fatalf("expect rollback reload, reloads %d -> %d", before, view.Reloads())
	}
	if got := slugs(view.Snapshot().Visible); !equalSlices(got, []string{"free-kit", "seo-kit"}) {
		t.Fatalf("expect server order restored, got %v", got)
	}
}

func TestProductDelete_NotFound(t *testing.T) {
	svc := &fakeProductService{
		deleteFn: func(ctx context.Context, id string) error { return service.ErrProductNotFound },
	}
	w := doReq(newProductRouter(NewProductHandler(svc, nil, nil), true), http.MethodDelete, "/admin/products/missing", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expect 404, got %d", w.Code)
	}
}
