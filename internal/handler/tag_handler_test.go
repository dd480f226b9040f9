package handler

import (
	"context"
	"net/http"
	"testing"

	"seorocket/internal/model"
	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

func newTagRouter(h *TagHandler) *gin.Engine {
	r := gin.New()
	r.Use(withSession)
	tags := r.Group("/admin/tags")
	tags.GET("", h.List)
	tags.POST("", h.Create)
	tags.PUT("/order", h.Reorder)
	tags.GET("/:id", h.Get)
	tags.PUT("/:id", h.Update)
	tags.DELETE("/:id", h.Delete)
	tags.GET("/:id/members", h.Members)
	tags.PUT("/:id/members/order", h.ReorderMembers)
	tags.POST("/:id/members/:productId", h.AddMember)
	tags.DELETE("/:id/members/:productId", h.RemoveMember)
	return r
}

func seoTag() *fakeTagService {
	return &fakeTagService{
		findByIDFn: func(ctx context.Context, id string) (*model.Tag, error) {
			if id != "t1" {
				return nil, service.ErrTagNotFound
			}
			return &model.Tag{ID: "t1", Name: "SEO"}, nil
		},
	}
}

func TestTagCreate_ReservedAndDuplicate(t *testing.T) {
	tags := &fakeTagService{
		createFn: func(ctx context.Context, in service.TagInput) (*model.Tag, error) {
			switch in.Name {
			case "All":
				return nil, service.ErrReservedTagName
			case "SEO":
				return nil, service.ErrTagAlreadyExists
			}
			return &model.Tag{ID: "t9", Name: in.Name}, nil
		},
	}
	r := newTagRouter(NewTagHandler(tags, &fakeMembershipService{}, nil))

	if w := doReq(r, http.MethodPost, "/admin/tags", `{"name":"All"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400 for reserved name, got %d", w.Code)
	}
	if w := doReq(r, http.MethodPost, "/admin/tags", `{"name":"SEO"}`); w.Code != http.StatusConflict {
		t.Fatalf("expect 409 for duplicate, got %d", w.Code)
	}
	if w := doReq(r, http.MethodPost, "/admin/tags", `{"name":"Writing"}`); w.Code != http.StatusCreated {
		t.Fatalf("expect 201, got %d", w.Code)
	}
	if w := doReq(r, http.MethodPost, "/admin/tags", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400 without name, got %d", w.Code)
	}
}

func TestTagReorder(t *testing.T) {
	var got []string
	tags := &fakeTagService{
		reorderFn: func(ctx context.Context, ids []string) error {
			got = ids
			return nil
		},
	}
	r := newTagRouter(NewTagHandler(tags, &fakeMembershipService{}, nil))

	w := doReq(r, http.MethodPut, "/admin/tags/order", `{"ids":["t2","t1"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if !equalSlices(got, []string{"t2", "t1"}) {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestTagAddMember_OptionalPosition(t *testing.T) {
	var gotPos *int
	var gotProduct, gotTag string
	members := &fakeMembershipService{
		addFn: func(ctx context.Context, productID, tagID string, position *int) bool {
			gotProduct, gotTag, gotPos = productID, tagID, position
			return true
		},
	}
	r := newTagRouter(NewTagHandler(seoTag(), members, nil))

	w := doReq(r, http.MethodPost, "/admin/tags/t1/members/p1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if gotProduct != "p1" || gotTag != "t1" || gotPos != nil {
		t.Fatalf("unexpected call: %s %s %v", gotProduct, gotTag, gotPos)
	}

	doReq(r, http.MethodPost, "/admin/tags/t1/members/p1", `{"position":4}`)
	if gotPos == nil || *gotPos != 4 {
		t.Fatalf("expect position 4, got %v", gotPos)
	}
}

func TestTagAddMember_Failure(t *testing.T) {
	members := &fakeMembershipService{
		addFn: func(ctx context.Context, productID, tagID string, position *int) bool { return false },
	}
	r := newTagRouter(NewTagHandler(seoTag(), members, nil))

	w := doReq(r, http.MethodPost, "/admin/tags/t1/members/p1", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expect 500, got %d", w.Code)
	}
}

func TestTagRemoveMember(t *testing.T) {
	removed := false
	members := &fakeMembershipService{
		removeFn: func(ctx context.Context, productID, tagID string) bool {
			removed = productID == "p1" && tagID == "t1"
			return true
		},
	}
	r := newTagRouter(NewTagHandler(seoTag(), members, nil))

	w := doReq(r, http.MethodDelete, "/admin/tags/t1/members/p1", "")
	if w.Code != http.StatusOK || !removed {
		t.Fatalf("expect removal, got %d removed=%v", w.Code, removed)
	}
}

func TestTagReorderMembers_BySlugsAndIDs(t *testing.T) {
	var bySlugs, byIDs []string
	members := &fakeMembershipService{
		reorderFn: func(ctx context.Context, tagID string, orderedSlugs []string) bool {
			bySlugs = orderedSlugs
			return true
		},
		reorderByIDsFn: func(ctx context.Context, tagID string, orderedProductIDs []string) bool {
			byIDs = orderedProductIDs
			return true
		},
	}
	r := newTagRouter(NewTagHandler(seoTag(), members, nil))

	w := doReq(r, http.MethodPut, "/admin/tags/t1/members/order", `{"slugs":["c","a","b"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expect 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if !equalSlices(bySlugs, []string{"c", "a", "b"}) || byIDs != nil {
		t.Fatalf("expect slug reorder, got slugs=%v ids=%v", bySlugs, byIDs)
	}

	w = doReq(r, http.MethodPut, "/admin/tags/t1/members/order", `{"productIds":["p3","p1"]}`)
	if w.Code != http.StatusOK || !equalSlices(byIDs, []string{"p3", "p1"}) {
		t.Fatalf("expect id reorder, got %d %v", w.Code, byIDs)
	}

	w = doReq(r, http.MethodPut, "/admin/tags/t1/members/order", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expect 400 for empty order, got %d", w.Code)
	}
}

func TestTagReorderMembers_FailureAndUnknownTag(t *testing.T) {
	members := &fakeMembershipService{
		reorderFn: func(ctx context.Context, tagID string, orderedSlugs []string) bool { return false },
	}
	r := newTagRouter(NewTagHandler(seoTag(), members, nil))

	w := doReq(r, http.MethodPut, "/admin/tags/t1/members/order", `{"slugs":["a"]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expect 500, got %d", w.Code)
	}
	w = doReq(r, http.MethodPut, "/admin/tags/missing/members/order", `{"slugs":["a"]}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expect 404, got %d", w.Code)
	}
}

func TestTagMembers(t *testing.T) {
	members := &fakeMembershipService{
		membersFn: func(ctx context.Context, tagID string) ([]model.Product, error) {
			return []model.Product{{Slug: "c"}, {Slug: "a"}}, nil
		},
	}
	r := newTagRouter(NewTagHandler(seoTag(), members, nil))

	w := doReq(r, http.MethodGet, "/admin/tags/t1/members", "")
	var products []model.Product
	decode(t, w, &products)
	if got := slugs(products); !equalSlices(got, []string{"c", "a"}) {
		t.Fatalf("unexpected members %v", got)
	}
}
