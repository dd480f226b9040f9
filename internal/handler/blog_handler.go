package handler

import (
	"net/http"

	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

// BlogHandler 前台只读已发布文章，后台可以管理全部文章
type BlogHandler struct {
	posts service.BlogService
}

func NewBlogHandler(posts service.BlogService) *BlogHandler {
	return &BlogHandler{posts: posts}
}

type BlogPostRequest struct {
	Slug       string `json:"slug"`
	Title      string `json:"title" binding:"required"`
	Excerpt    string `json:"excerpt"`
	Content    string `json:"content"`
	CoverImage string `json:"cover_image"`
	Published  bool   `json:"published"`
}

func (r BlogPostRequest) toInput() service.BlogPostInput {
	return service.BlogPostInput{
		Slug:       r.Slug,
		Title:      r.Title,
		Excerpt:    r.Excerpt,
		Content:    r.Content,
		CoverImage: r.CoverImage,
		Published:  r.Published,
	}
}

// List GET /api/posts 与 GET /api/admin/posts 共用，后台会话可以看到草稿
func (h *BlogHandler) List(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context(), isAdmin(c))
	if err != nil {
		writeServiceError(c, "BlogHandler.List", err)
		return
	}
	writeOK(c, "Posts retrieved successfully", posts)
}

func (h *BlogHandler) GetBySlug(c *gin.Context) {
	post, err := h.posts.FindBySlug(c.Request.Context(), c.Param("slug"), isAdmin(c))
	if err != nil {
		writeServiceError(c, "BlogHandler.GetBySlug", err)
		return
	}
	writeOK(c, "Post retrieved successfully", post)
}

func (h *BlogHandler) Get(c *gin.Context) {
	post, err := h.posts.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, "BlogHandler.Get", err)
		return
	}
	writeOK(c, "Post retrieved successfully", post)
}

func (h *BlogHandler) Create(c *gin.Context) {
	var req BlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "BlogHandler.Create", err)
		return
	}
	post, err := h.posts.Create(c.Request.Context(), req.toInput())
	if err != nil {
		writeServiceError(c, "BlogHandler.Create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Post created successfully",
		"data":    post,
	})
}

func (h *BlogHandler) Update(c *gin.Context) {
	var req BlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "BlogHandler.Update", err)
		return
	}
	post, err := h.posts.Update(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		writeServiceError(c, "BlogHandler.Update", err)
		return
	}
	writeOK(c, "Post updated successfully", post)
}

func (h *BlogHandler) Delete(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeServiceError(c, "BlogHandler.Delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Post deleted successfully",
	})
}
