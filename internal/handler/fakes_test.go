package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"seorocket/internal/model"
	"seorocket/internal/service"
	applog "seorocket/pkg/log"
	"seorocket/pkg/token"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	applog.Init("error", "console", "")
	m.Run()
}

func doReq(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

// withSession 模拟 OptionalAuth 注入的后台会话
func withSession(c *gin.Context) {
	c.Set("claims", &token.SessionClaims{UserID: 1, Username: "admin", TokenType: token.TokenTypeAccess})
	c.Next()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid json body %q: %v", w.Body.String(), err)
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("invalid data %s: %v", env.Data, err)
		}
	}
	return env
}

func intPtr(v int) *int { return &v }

type fakeLister struct {
	listFn func(ctx context.Context, includeUnpublished bool) ([]model.Product, error)
}

func (f *fakeLister) List(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
	if f.listFn != nil {
		return f.listFn(ctx, includeUnpublished)
	}
	return []model.Product{}, nil
}

type fakeProductService struct {
	listFn          func(ctx context.Context, includeUnpublished bool) ([]model.Product, error)
	findByIDFn      func(ctx context.Context, id string) (*model.Product, error)
	findBySlugFn    func(ctx context.Context, slug string, includeUnpublished bool) (*model.Product, error)
	createFn        func(ctx context.Context, in service.ProductInput) (*model.Product, error)
	updateFn        func(ctx context.Context, id string, in service.ProductInput) (*model.Product, error)
	setPublishedFn  func(ctx context.Context, id string, published bool) (*model.Product, error)
	toggleTagFn     func(ctx context.Context, productID, tagID string) (bool, error)
	reorderSystemFn func(ctx context.Context, filter string, orderedSlugs []string) error
	deleteFn        func(ctx context.Context, id string) error
}

func (f *fakeProductService) List(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
	if f.listFn != nil {
		return f.listFn(ctx, includeUnpublished)
	}
	return []model.Product{}, nil
}

func (f *fakeProductService) FindByID(ctx context.Context, id string) (*model.Product, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, service.ErrProductNotFound
}

func (f *fakeProductService) FindBySlug(ctx context.Context, slug string, includeUnpublished bool) (*model.Product, error) {
	if f.findBySlugFn != nil {
		return f.findBySlugFn(ctx, slug, includeUnpublished)
	}
	return nil, service.ErrProductNotFound
}

func (f *fakeProductService) Create(ctx context.Context, in service.ProductInput) (*model.Product, error) {
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return &model.Product{Name: in.Name}, nil
}

func (f *fakeProductService) Update(ctx context.Context, id string, in service.ProductInput) (*model.Product, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return &model.Product{ID: id, Name: in.Name}, nil
}

func (f *fakeProductService) SetPublished(ctx context.Context, id string, published bool) (*model.Product, error) {
	if f.setPublishedFn != nil {
		return f.setPublishedFn(ctx, id, published)
	}
	return &model.Product{ID: id, Published: published}, nil
}

func (f *fakeProductService) ToggleTag(ctx context.Context, productID, tagID string) (bool, error) {
	if f.toggleTagFn != nil {
		return f.toggleTagFn(ctx, productID, tagID)
	}
	return false, nil
}

func (f *fakeProductService) ReorderSystemList(ctx context.Context, filter string, orderedSlugs []string) error {
	if f.reorderSystemFn != nil {
		return f.reorderSystemFn(ctx, filter, orderedSlugs)
	}
	return nil
}

func (f *fakeProductService) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeTagService struct {
	listFn     func(ctx context.Context) ([]model.Tag, error)
	findByIDFn func(ctx context.Context, id string) (*model.Tag, error)
	createFn   func(ctx context.Context, in service.TagInput) (*model.Tag, error)
	updateFn   func(ctx context.Context, id string, in service.TagInput) (*model.Tag, error)
	deleteFn   func(ctx context.Context, id string) error
	reorderFn  func(ctx context.Context, ids []string) error
}

func (f *fakeTagService) List(ctx context.Context) ([]model.Tag, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []model.Tag{}, nil
}

func (f *fakeTagService) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, service.ErrTagNotFound
}

func (f *fakeTagService) Create(ctx context.Context, in service.TagInput) (*model.Tag, error) {
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return &model.Tag{Name: in.Name}, nil
}

func (f *fakeTagService) Update(ctx context.Context, id string, in service.TagInput) (*model.Tag, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return &model.Tag{ID: id, Name: in.Name}, nil
}

func (f *fakeTagService) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeTagService) Reorder(ctx context.Context, ids []string) error {
	if f.reorderFn != nil {
		return f.reorderFn(ctx, ids)
	}
	return nil
}

type fakeMembershipService struct {
	addFn          func(ctx context.Context, productID, tagID string, position *int) bool
	removeFn       func(ctx context.Context, productID, tagID string) bool
	reorderFn      func(ctx context.Context, tagID string, orderedSlugs []string) bool
	reorderByIDsFn func(ctx context.Context, tagID string, orderedProductIDs []string) bool
	membersFn      func(ctx context.Context, tagID string) ([]model.Product, error)
}

func (f *fakeMembershipService) AddMembership(ctx context.Context, productID, tagID string, position *int) bool {
	if f.addFn != nil {
		return f.addFn(ctx, productID, tagID, position)
	}
	return true
}

func (f *fakeMembershipService) RemoveMembership(ctx context.Context, productID, tagID string) bool {
	if f.removeFn != nil {
		return f.removeFn(ctx, productID, tagID)
	}
	return true
}

func (f *fakeMembershipService) Reorder(ctx context.Context, tagID string, orderedSlugs []string) bool {
	if f.reorderFn != nil {
		return f.reorderFn(ctx, tagID, orderedSlugs)
	}
	return true
}

func (f *fakeMembershipService) ReorderByIDs(ctx context.Context, tagID string, orderedProductIDs []string) bool {
	if f.reorderByIDsFn != nil {
		return f.reorderByIDsFn(ctx, tagID, orderedProductIDs)
	}
	return true
}

func (f *fakeMembershipService) Members(ctx context.Context, tagID string) ([]model.Product, error) {
	if f.membersFn != nil {
		return f.membersFn(ctx, tagID)
	}
	return []model.Product{}, nil
}

type fakeBlogService struct {
	listFn       func(ctx context.Context, includeUnpublished bool) ([]model.BlogPost, error)
	findByIDFn   func(ctx context.Context, id string) (*model.BlogPost, error)
	findBySlugFn func(ctx context.Context, slug string, includeUnpublished bool) (*model.BlogPost, error)
	createFn     func(ctx context.Context, in service.BlogPostInput) (*model.BlogPost, error)
	updateFn     func(ctx context.Context, id string, in service.BlogPostInput) (*model.BlogPost, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeBlogService) List(ctx context.Context, includeUnpublished bool) ([]model.BlogPost, error) {
	if f.listFn != nil {
		return f.listFn(ctx, includeUnpublished)
	}
	return []model.BlogPost{}, nil
}

func (f *fakeBlogService) FindByID(ctx context.Context, id string) (*model.BlogPost, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, service.ErrPostNotFound
}

func (f *fakeBlogService) FindBySlug(ctx context.Context, slug string, includeUnpublished bool) (*model.BlogPost, error) {
	if f.findBySlugFn != nil {
		return f.findBySlugFn(ctx, slug, includeUnpublished)
	}
	return nil, service.ErrPostNotFound
}

func (f *fakeBlogService) Create(ctx context.Context, in service.BlogPostInput) (*model.BlogPost, error) {
	if f.createFn != nil {
		return f.createFn(ctx, in)
	}
	return &model.BlogPost{Title: in.Title}, nil
}

func (f *fakeBlogService) Update(ctx context.Context, id string, in service.BlogPostInput) (*model.BlogPost, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return &model.BlogPost{ID: id, Title: in.Title}, nil
}

func (f *fakeBlogService) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeUserService struct {
	loginFn       func(ctx context.Context, username, password string) (string, string, error)
	logoutFn      func(ctx context.Context, claims *token.SessionClaims) error
	isRevokedFn   func(ctx context.Context, claims *token.SessionClaims) (bool, error)
	getProfileFn  func(ctx context.Context, username string) (*model.User, error)
	ensureAdminFn func(ctx context.Context, username, password string) error
}

func (f *fakeUserService) Login(ctx context.Context, username, password string) (string, string, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, username, password)
	}
	return "", "", nil
}

func (f *fakeUserService) Logout(ctx context.Context, claims *token.SessionClaims) error {
	if f.logoutFn != nil {
		return f.logoutFn(ctx, claims)
	}
	return nil
}

func (f *fakeUserService) IsRevoked(ctx context.Context, claims *token.SessionClaims) (bool, error) {
	if f.isRevokedFn != nil {
		return f.isRevokedFn(ctx, claims)
	}
	return false, nil
}

func (f *fakeUserService) GetProfile(ctx context.Context, username string) (*model.User, error) {
	if f.getProfileFn != nil {
		return f.getProfileFn(ctx, username)
	}
	return nil, service.ErrUserNotFound
}

func (f *fakeUserService) EnsureAdmin(ctx context.Context, username, password string) error {
	if f.ensureAdminFn != nil {
		return f.ensureAdminFn(ctx, username, password)
	}
	return nil
}

type fakeExportService struct {
	exportFn func(ctx context.Context, w io.Writer) error
}

func (f *fakeExportService) ExportCatalog(ctx context.Context, w io.Writer) error {
	if f.exportFn != nil {
		return f.exportFn(ctx, w)
	}
	return nil
}

type fakeSearcher struct {
	searchFn func(ctx context.Context, q string, includeUnpublished bool) ([]string, error)
}

func (f *fakeSearcher) Search(ctx context.Context, q string, includeUnpublished bool) ([]string, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, q, includeUnpublished)
	}
	return []string{}, nil
}
