package handler

import (
	"context"
	"strings"

	"seorocket/internal/search"
	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

// ProductSearcher 由 search.Indexer 实现；未启用搜索时为 nil
type ProductSearcher interface {
	Search(ctx context.Context, q string, includeUnpublished bool) ([]string, error)
}

type SearchHandler struct {
	searcher ProductSearcher
}

func NewSearchHandler(searcher ProductSearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search GET /api/products/search?q=
func (h *SearchHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		writeServiceError(c, "SearchHandler.Search", search.ErrDisabled)
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		writeServiceError(c, "SearchHandler.Search", service.ErrInvalidInput)
		return
	}
	slugs, err := h.searcher.Search(c.Request.Context(), q, isAdmin(c))
	if err != nil {
		writeServiceError(c, "SearchHandler.Search", err)
		return
	}
	writeOK(c, "Search completed", gin.H{"query": q, "slugs": slugs})
}
