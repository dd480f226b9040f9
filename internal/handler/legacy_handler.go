package handler

import (
	"seorocket/internal/legacy"
	"seorocket/internal/model"

	"github.com/gin-gonic/gin"
)

// LegacyHandler 读写旧版 JSON 产品文件
type LegacyHandler struct {
	store *legacy.Store
}

func NewLegacyHandler(store *legacy.Store) *LegacyHandler {
	return &LegacyHandler{store: store}
}

// List GET /api/legacy/products，非后台请求只返回已发布产品
func (h *LegacyHandler) List(c *gin.Context) {
	products, err := h.store.List(c.Request.Context(), isAdmin(c))
	if err != nil {
		writeServiceError(c, "LegacyHandler.List", err)
		return
	}
	writeOK(c, "Products retrieved successfully", products)
}

// Replace PUT /api/admin/legacy/products 用请求体整体替换文件内容
func (h *LegacyHandler) Replace(c *gin.Context) {
	var products []model.Product
	if err := c.ShouldBindJSON(&products); err != nil {
		writeBadRequest(c, "LegacyHandler.Replace", err)
		return
	}
	if err := h.store.Save(c.Request.Context(), products); err != nil {
		writeServiceError(c, "LegacyHandler.Replace", err)
		return
	}
	writeOK(c, "Products saved successfully", gin.H{"count": len(products)})
}
