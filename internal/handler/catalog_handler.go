package handler

import (
	"context"
	"net/http"

	"seorocket/internal/coherence"
	"seorocket/internal/model"
	"seorocket/internal/service"
	"seorocket/pkg/log"

	"github.com/gin-gonic/gin"
)

// ProductLister 是公开目录的产品来源：数据库模式下是 ProductService，未配置数据库时是旧版 JSON 文件。
type ProductLister interface {
	List(ctx context.Context, includeUnpublished bool) ([]model.Product, error)
}

// CatalogHandler 负责公开的筛选列表与按筛选取产品。
// 非后台请求优先走常驻的 coherence.View，数据库两层都失败时还能在视图缓存上做内存筛选。
type CatalogHandler struct {
	resolver service.Resolver
	products ProductLister
	view     *coherence.View
}

func NewCatalogHandler(resolver service.Resolver, products ProductLister, view *coherence.View) *CatalogHandler {
	return &CatalogHandler{resolver: resolver, products: products, view: view}
}

// Filters GET /api/filters
func (h *CatalogHandler) Filters(c *gin.Context) {
	admin := isAdmin(c)
	products, err := h.products.List(c.Request.Context(), admin)
	if err != nil {
		log.Warnf("CatalogHandler.Filters: failed to load products: %v", err)
		products = h.cachedProducts(admin)
	}
	writeOK(c, "Filters retrieved successfully", h.resolver.ListAvailableFilters(c.Request.Context(), products, admin))
}

// Products GET /api/products?filter=Featured
func (h *CatalogHandler) Products(c *gin.Context) {
	name := service.CanonicalFilter(c.Query("filter"))
	res := h.resolve(c, name)
	writeOK(c, "Products retrieved successfully", gin.H{
		"filter":   name,
		"source":   res.Source(),
		"products": res.Products(),
	})
}

// Snapshot GET /api/catalog 返回常驻视图的最新快照
func (h *CatalogHandler) Snapshot(c *gin.Context) {
	if h.view == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "Catalog view not running",
		})
		return
	}
	data := gin.H{
		"snapshot": h.view.Snapshot(),
		"state":    h.view.State().String(),
	}
	if err := h.view.Err(); err != nil {
		data["error"] = err.Error()
	}
	writeOK(c, "Catalog snapshot retrieved successfully", data)
}

func (h *CatalogHandler) resolve(c *gin.Context, name string) service.Resolution {
	ctx := c.Request.Context()
	admin := isAdmin(c)
	if !admin && h.view != nil {
		return h.view.Resolve(ctx, name)
	}

	res := h.resolver.ResolveWithCache(ctx, name, admin, nil)
	if res.Source() != service.SourceEmpty {
		return res
	}
	// 数据库不可用：在完整产品列表上做内存筛选
	products, err := h.products.List(ctx, admin)
	if err != nil {
		log.Warnf("CatalogHandler: in-memory fallback for %q has no products: %v", name, err)
		return res
	}
	return h.resolver.ResolveWithCache(ctx, name, admin, products)
}

func (h *CatalogHandler) cachedProducts(admin bool) []model.Product {
	if admin || h.view == nil {
		return []model.Product{}
	}
	return h.view.Snapshot().Products
}
