package handler

import (
	"context"
	"errors"
	"net/http"

	"seorocket/internal/coherence"
	"seorocket/internal/model"
	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductHandler 公开的产品详情与后台的产品管理接口
type ProductHandler struct {
	products service.ProductService
	view     *coherence.View
	// fallback 在未配置数据库时提供只读产品（旧版 JSON 文件）
	fallback ProductLister
}

func NewProductHandler(products service.ProductService, view *coherence.View, fallback ProductLister) *ProductHandler {
	return &ProductHandler{products: products, view: view, fallback: fallback}
}

// ProductRequest 是创建 / 更新产品的请求体。
// tags 缺省时不改动旧版标签数组，传 [] 表示清空。
type ProductRequest struct {
	Slug          string   `json:"slug"`
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	Icon          string   `json:"icon"`
	URL           string   `json:"url"`
	Published     bool     `json:"published"`
	Featured      bool     `json:"featured"`
	Free          bool     `json:"free"`
	FeaturedOrder *int     `json:"featured_order"`
	FreeOrder     *int     `json:"free_order"`
	AllOrder      *int     `json:"all_order"`
	Priority      *int     `json:"priority"`
	Tags          []string `json:"tags"`
}

func (r ProductRequest) toInput() service.ProductInput {
	return service.ProductInput{
		Slug:          r.Slug,
		Name:          r.Name,
		Description:   r.Description,
		Icon:          r.Icon,
		URL:           r.URL,
		Published:     r.Published,
		Featured:      r.Featured,
		Free:          r.Free,
		FeaturedOrder: r.FeaturedOrder,
		FreeOrder:     r.FreeOrder,
		AllOrder:      r.AllOrder,
		Priority:      r.Priority,
		Tags:          r.Tags,
	}
}

type PublishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// OrderRequest 是拖拽排序的请求体，slugs 为新的完整顺序
type OrderRequest struct {
	Slugs []string `json:"slugs" binding:"required"`
}

// GetBySlug GET /api/products/:slug
func (h *ProductHandler) GetBySlug(c *gin.Context) {
	slug := c.Param("slug")
	admin := isAdmin(c)
	p, err := h.products.FindBySlug(c.Request.Context(), slug, admin)
	if errors.Is(err, service.ErrNotConfigured) && h.fallback != nil {
		p, err = h.findFallback(c.Request.Context(), slug, admin)
	}
	if err != nil {
		writeServiceError(c, "ProductHandler.GetBySlug", err)
		return
	}
	writeOK(c, "Product retrieved successfully", p)
}

func (h *ProductHandler) findFallback(ctx context.Context, slug string, admin bool) (*model.Product, error) {
	products, err := h.fallback.List(ctx, admin)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Slug == slug {
			return &products[i], nil
		}
	}
	return nil, service.ErrProductNotFound
}

// List GET /api/admin/products 包含草稿
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.products.List(c.Request.Context(), true)
	if err != nil {
		writeServiceError(c, "ProductHandler.List", err)
		return
	}
	writeOK(c, "Products retrieved successfully", products)
}

func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.products.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, "ProductHandler.Get", err)
		return
	}
	writeOK(c, "Product retrieved successfully", p)
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "ProductHandler.Create", err)
		return
	}
	p, err := h.products.Create(c.Request.Context(), req.toInput())
	if err != nil {
		writeServiceError(c, "ProductHandler.Create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Product created successfully",
		"data":    p,
	})
}

func (h *ProductHandler) Update(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "ProductHandler.Update", err)
		return
	}
	p, err := h.products.Update(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		writeServiceError(c, "ProductHandler.Update", err)
		return
	}
	writeOK(c, "Product updated successfully", p)
}

// SetPublished PATCH /api/admin/products/:id/publish
func (h *ProductHandler) SetPublished(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "ProductHandler.SetPublished", err)
		return
	}
	p, err := h.products.SetPublished(c.Request.Context(), c.Param("id"), *req.Published)
	if err != nil {
		writeServiceError(c, "ProductHandler.SetPublished", err)
		return
	}
	writeOK(c, "Product publish state updated", p)
}

// ToggleTag POST /api/admin/products/:id/tags/:tagId/toggle
func (h *ProductHandler) ToggleTag(c *gin.Context) {
	member, err := h.products.ToggleTag(c.Request.Context(), c.Param("id"), c.Param("tagId"))
	if err != nil {
		writeServiceError(c, "ProductHandler.ToggleTag", err)
		return
	}
	writeOK(c, "Product tag toggled", gin.H{"member": member})
}

// ReorderSystemList PUT /api/admin/products/order/:filter，filter 只能是 Featured / Free / All
func (h *ProductHandler) ReorderSystemList(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "ProductHandler.ReorderSystemList", err)
		return
	}
	filter := service.CanonicalFilter(c.Param("filter"))
	if !model.IsSystemFilter(filter) {
		writeServiceError(c, "ProductHandler.ReorderSystemList", service.ErrUnknownFilter)
		return
	}
	err := runReorder(c.Request.Context(), h.view, filter, req.Slugs, func(ctx context.Context) error {
		return h.products.ReorderSystemList(ctx, filter, req.Slugs)
	})
	if err != nil {
		writeServiceError(c, "ProductHandler.ReorderSystemList", err)
		return
	}
	writeOK(c, "Products reordered successfully", gin.H{"filter": filter, "slugs": req.Slugs})
}

func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, "ProductHandler.Delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Product deleted successfully",
	})
}
