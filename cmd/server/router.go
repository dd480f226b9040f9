package main

import (
	"net/http"

	"seorocket/internal/config"
	"seorocket/internal/handler"
	"seorocket/internal/middleware"
	"seorocket/internal/realtime"
	"seorocket/internal/service"
	"seorocket/pkg/token"

	"github.com/gin-gonic/gin"
)

const loginPath = "/api/auth/login"

type routes struct {
	jwtManager *token.JWTManager
	users      service.UserService

	catalog  *handler.CatalogHandler
	products *handler.ProductHandler
	tags     *handler.TagHandler
	blog     *handler.BlogHandler
	user     *handler.UserHandler
	legacy   *handler.LegacyHandler
	search   *handler.SearchHandler
	export   *handler.ExportHandler
	realtime *realtime.WebsocketHandler
}

func setupRouter(cfg config.Config, h routes) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		middleware.RequestLogger(loginPath),
		gin.Recovery(),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.OptionalAuth(h.jwtManager, h.users),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/filters", h.catalog.Filters)
		api.GET("/catalog", h.catalog.Snapshot)
		api.GET("/products", h.catalog.Products)
		api.GET("/products/search", h.search.Search)
		api.GET("/products/:slug", h.products.GetBySlug)
		api.GET("/posts", h.blog.List)
		api.GET("/posts/:slug", h.blog.GetBySlug)
		api.GET("/realtime", h.realtime.Serve)
		api.GET("/legacy/products", h.legacy.List)

		limiter := middleware.NewIPRateLimiter(cfg.Server.LoginRate, cfg.Server.LoginRate)
		api.POST("/auth/login", middleware.RateLimit(limiter), h.user.Login)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuthMiddleware())
	{
		admin.GET("/auth/profile", h.user.GetProfile)
		admin.POST("/auth/logout", h.user.Logout)

		admin.GET("/products", h.products.List)
		admin.POST("/products", h.products.Create)
		admin.GET("/products/export", h.export.ExportCatalog)
		admin.PUT("/products/order/:filter", h.products.ReorderSystemList)
		admin.GET("/products/:id", h.products.Get)
		admin.PUT("/products/:id", h.products.Update)
		admin.DELETE("/products/:id", h.products.Delete)
		admin.PATCH("/products/:id/publish", h.products.SetPublished)
		admin.POST("/products/:id/tags/:tagId/toggle", h.products.ToggleTag)

		admin.GET("/tags", h.tags.List)
		admin.POST("/tags", h.tags.Create)
		admin.PUT("/tags/order", h.tags.Reorder)
		admin.GET("/tags/:id", h.tags.Get)
		admin.PUT("/tags/:id", h.tags.Update)
		admin.DELETE("/tags/:id", h.tags.Delete)
		admin.GET("/tags/:id/members", h.tags.Members)
		admin.PUT("/tags/:id/members/order", h.tags.ReorderMembers)
		admin.POST("/tags/:id/members/:productId", h.tags.AddMember)
		admin.DELETE("/tags/:id/members/:productId", h.tags.RemoveMember)

		admin.GET("/posts", h.blog.List)
		admin.POST("/posts", h.blog.Create)
		admin.GET("/posts/:id", h.blog.Get)
		admin.PUT("/posts/:id", h.blog.Update)
		admin.DELETE("/posts/:id", h.blog.Delete)

		admin.PUT("/legacy/products", h.legacy.Replace)
	}
	return r
}
