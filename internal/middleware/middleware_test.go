package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seorocket/internal/model"
	applog "seorocket/pkg/log"
	"seorocket/pkg/token"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	applog.Init("error", "console", "")
	m.Run()
}

type fakeUserService struct {
	isRevokedFn func(ctx context.Context, claims *token.SessionClaims) (bool, error)
}

func (f *fakeUserService) Login(ctx context.Context, username, password string) (string, string, error) {
	return "", "", nil
}

func (f *fakeUserService) Logout(ctx context.Context, claims *token.SessionClaims) error {
	return nil
}

func (f *fakeUserService) IsRevoked(ctx context.Context, claims *token.SessionClaims) (bool, error) {
	if f.isRevokedFn != nil {
		return f.isRevokedFn(ctx, claims)
	}
	return false, nil
}

func (f *fakeUserService) GetProfile(ctx context.Context, username string) (*model.User, error) {
	return &model.User{Username: username}, nil
}

func (f *fakeUserService) EnsureAdmin(ctx context.Context, username, password string) error {
	return nil
}

func newAuthRouter(jwtManager *token.JWTManager, users *fakeUserService) *gin.Engine {
	r := gin.New()
	r.Use(OptionalAuth(jwtManager, users))
	r.GET("/public", func(c *gin.Context) {
		_, ok := c.Get(ClaimsKey)
		c.JSON(http.StatusOK, gin.H{"session": ok})
	})
	admin := r.Group("/admin")
	admin.Use(AdminAuthMiddleware())
	admin.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	strict := r.Group("/strict")
	strict.Use(AuthMiddleware(jwtManager, users))
	strict.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r
}

func get(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	jwtManager := token.NewJWTManager("secret", time.Hour, 24*time.Hour)
	r := newAuthRouter(jwtManager, &fakeUserService{})

	w := get(r, "/public", "")
	if w.Code != http.StatusOK || w.Body.String() != `{"session":false}` {
		t.Fatalf("unexpected anonymous response %d %s", w.Code, w.Body.String())
	}
	w = get(r, "/public", "garbage")
	if w.Code != http.StatusOK || w.Body.String() != `{"session":false}` {
		t.Fatalf("invalid token should be ignored, got %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "/admin/ping", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect 401 on admin route, got %d", w.Code)
	}
}

func TestOptionalAuth_ValidAccessToken(t *testing.T) {
	jwtManager := token.NewJWTManager("secret", time.Hour, 24*time.Hour)
	access, refresh, err := jwtManager.GenerateToken(1, "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	r := newAuthRouter(jwtManager, &fakeUserService{})

	if w := get(r, "/public", access); w.Body.String() != `{"session":true}` {
		t.Fatalf("expect session, got %s", w.Body.String())
	}
	if w := get(r, "/admin/ping", access); w.Code != http.StatusOK {
		t.Fatalf("expect 200 on admin route, got %d", w.Code)
	}
	// refresh token 不能当 access token 用
	if w := get(r, "/admin/ping", refresh); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect 401 for refresh token, got %d", w.Code)
	}
	if w := get(r, "/strict/ping", refresh); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect strict 401 for refresh token, got %d", w.Code)
	}
}

func TestAuth_RevokedToken(t *testing.T) {
	jwtManager := token.NewJWTManager("secret", time.Hour, 24*time.Hour)
	access, _, _ := jwtManager.GenerateToken(1, "admin")
	users := &fakeUserService{
		isRevokedFn: func(ctx context.Context, claims *token.SessionClaims) (bool, error) {
			return true, nil
		},
	}
	r := newAuthRouter(jwtManager, users)

	if w := get(r, "/admin/ping", access); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect 401 for revoked token, got %d", w.Code)
	}
	if w := get(r, "/strict/ping", access); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect strict 401 for revoked token, got %d", w.Code)
	}
}

func TestAuthMiddleware_BlacklistFailure(t *testing.T) {
	jwtManager := token.NewJWTManager("secret", time.Hour, 24*time.Hour)
	access, _, _ := jwtManager.GenerateToken(1, "admin")
	users := &fakeUserService{
		isRevokedFn: func(ctx context.Context, claims *token.SessionClaims) (bool, error) {
			return false, errors.New("redis down")
		},
	}
	r := newAuthRouter(jwtManager, users)

	if w := get(r, "/strict/ping", access); w.Code != http.StatusInternalServerError {
		t.Fatalf("expect 500, got %d", w.Code)
	}
	if w := get(r, "/strict/ping", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect 401 without header, got %d", w.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	other := token.NewJWTManager("other", time.Hour, time.Hour)
	access, _, _ := other.GenerateToken(1, "admin")
	r := newAuthRouter(token.NewJWTManager("secret", time.Hour, time.Hour), &fakeUserService{})

	if w := get(r, "/strict/ping", access); w.Code != http.StatusUnauthorized {
		t.Fatalf("expect 401, got %d", w.Code)
	}
}

func TestRateLimit_PerIP(t *testing.T) {
	limiter := NewIPRateLimiter(2, 2)
	r := gin.New()
	r.Use(RateLimit(limiter))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	if send("10.0.0.1") != http.StatusOK || send("10.0.0.1") != http.StatusOK {
		t.Fatal("expect burst of two to pass")
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expect 429, got %d", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Fatalf("other IP should not be limited, got %d", code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := NewIPRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("unlimited limiter rejected request %d", i)
		}
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://seorocket.example"}))
	r.GET("/api/filters", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/filters", nil)
	req.Header.Set("Origin", "https://seorocket.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://seorocket.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/filters", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expect 403 for unknown origin, got %d", w.Code)
	}
}
