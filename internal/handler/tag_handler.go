package handler

import (
	"context"
	"net/http"

	"seorocket/internal/coherence"
	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

// TagHandler 负责后台标签管理以及标签内产品的成员关系与排序
type TagHandler struct {
	tags        service.TagService
	memberships service.MembershipService
	view        *coherence.View
}

func NewTagHandler(tags service.TagService, memberships service.MembershipService, view *coherence.View) *TagHandler {
	return &TagHandler{tags: tags, memberships: memberships, view: view}
}

type TagRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// TagOrderRequest ids 为全部标签的新顺序
type TagOrderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// AddMemberRequest position 缺省时追加到末尾
type AddMemberRequest struct {
	Position *int `json:"position"`
}

// MemberOrderRequest slugs 与 productIds 二选一，slugs 优先
type MemberOrderRequest struct {
	Slugs      []string `json:"slugs"`
	ProductIDs []string `json:"productIds"`
}

func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, "TagHandler.List", err)
		return
	}
	writeOK(c, "Tags retrieved successfully", tags)
}

func (h *TagHandler) Get(c *gin.Context) {
	tag, err := h.tags.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, "TagHandler.Get", err)
		return
	}
	writeOK(c, "Tag retrieved successfully", tag)
}

func (h *TagHandler) Create(c *gin.Context) {
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "TagHandler.Create", err)
		return
	}
	tag, err := h.tags.Create(c.Request.Context(), service.TagInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		writeServiceError(c, "TagHandler.Create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Tag created successfully",
		"data":    tag,
	})
}

func (h *TagHandler) Update(c *gin.Context) {
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "TagHandler.Update", err)
		return
	}
	tag, err := h.tags.Update(c.Request.Context(), c.Param("id"), service.TagInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		writeServiceError(c, "TagHandler.Update", err)
		return
	}
	writeOK(c, "Tag updated successfully", tag)
}

func (h *TagHandler) Delete(c *gin.Context) {
	if err := h.tags.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, "TagHandler.Delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag deleted successfully",
	})
}

// Reorder PUT /api/admin/tags/order
func (h *TagHandler) Reorder(c *gin.Context) {
	var req TagOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "TagHandler.Reorder", err)
		return
	}
	if err := h.tags.Reorder(c.Request.Context(), req.IDs); err != nil {
		writeServiceError(c, "TagHandler.Reorder", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tags reordered successfully",
	})
}

// Members GET /api/admin/tags/:id/members 按 order_position 返回成员
func (h *TagHandler) Members(c *gin.Context) {
	members, err := h.memberships.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, "TagHandler.Members", err)
		return
	}
	writeOK(c, "Tag members retrieved successfully", members)
}

// AddMember POST /api/admin/tags/:id/members/:productId，请求体可省略
func (h *TagHandler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, "TagHandler.AddMember", err)
			return
		}
	}
	if !h.memberships.AddMembership(c.Request.Context(), c.Param("productId"), c.Param("id"), req.Position) {
		writeServiceError(c, "TagHandler.AddMember", service.ErrMembershipFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Product added to tag",
	})
}

func (h *TagHandler) RemoveMember(c *gin.Context) {
	if !h.memberships.RemoveMembership(c.Request.Context(), c.Param("productId"), c.Param("id")) {
		writeServiceError(c, "TagHandler.RemoveMember", service.ErrMembershipFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Product removed from tag",
	})
}

// ReorderMembers PUT /api/admin/tags/:id/members/order
func (h *TagHandler) ReorderMembers(c *gin.Context) {
	var req MemberOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "TagHandler.ReorderMembers", err)
		return
	}
	if len(req.Slugs) == 0 && len(req.ProductIDs) == 0 {
		writeServiceError(c, "TagHandler.ReorderMembers", service.ErrInvalidInput)
		return
	}

	tagID := c.Param("id")
	tag, err := h.tags.FindByID(c.Request.Context(), tagID)
	if err != nil {
		writeServiceError(c, "TagHandler.ReorderMembers", err)
		return
	}

	keys := req.Slugs
	write := func(ctx context.Context) error {
		if h.memberships.Reorder(ctx, tagID, req.Slugs) {
			return nil
		}
		return service.ErrReorderFailed
	}
	if len(req.Slugs) == 0 {
		keys = req.ProductIDs
		write = func(ctx context.Context) error {
			if h.memberships.ReorderByIDs(ctx, tagID, req.ProductIDs) {
				return nil
			}
			return service.ErrReorderFailed
		}
	}

	if err := runReorder(c.Request.Context(), h.view, tag.Name, keys, write); err != nil {
		writeServiceError(c, "TagHandler.ReorderMembers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag members reordered successfully",
	})
}
