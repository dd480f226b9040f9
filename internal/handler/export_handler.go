package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"seorocket/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	export service.ExportService
}

func NewExportHandler(export service.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// ExportCatalog GET /api/admin/products/export
// 先写入内存，生成失败时还能返回 JSON 错误。
func (h *ExportHandler) ExportCatalog(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.export.ExportCatalog(c.Request.Context(), &buf); err != nil {
		writeServiceError(c, "ExportHandler.ExportCatalog", err)
		return
	}
	filename := fmt.Sprintf("catalog_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
