package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"seorocket/pkg/log"

	"github.com/xuri/excelize/v2"
)

const (
	productsSheet = "Products"
	tagsSheet     = "Tags"
)

var productColumns = []string{
	"slug", "name", "published", "featured", "free",
	"featured_order", "free_order", "all_order", "priority", "tags", "url",
}

var tagColumns = []string{"order_index", "name", "slug", "members"}

// ExportService 导出后台目录为 xlsx：Products 表每行一个产品，Tags 表按 order_index 列出标签及其有序成员。
type ExportService interface {
	ExportCatalog(ctx context.Context, w io.Writer) error
}

type exportService struct {
	products    ProductService
	tags        TagService
	memberships MembershipService
}

func NewExportService(products ProductService, tags TagService, memberships MembershipService) ExportService {
	return &exportService{products: products, tags: tags, memberships: memberships}
}

func (s *exportService) ExportCatalog(ctx context.Context, w io.Writer) error {
	products, err := s.products.List(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	tags, err := s.tags.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", productsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(tagsSheet); err != nil {
		return err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err := writeHeader(f, productsSheet, productColumns, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, tagsSheet, tagColumns, headerStyle); err != nil {
		return err
	}

	for i := range products {
		p := &products[i]
		row := []interface{}{
			p.Slug, p.Name, p.Published, p.Featured, p.Free,
			optionalInt(p.FeaturedOrder), optionalInt(p.FreeOrder), optionalInt(p.AllOrder), optionalInt(p.Priority),
			strings.Join(p.TagNames(), ", "), p.URL,
		}
		if err := writeRow(f, productsSheet, i+2, row); err != nil {
			return err
		}
	}

	for i, tag := range tags {
		members, err := s.memberships.Members(ctx, tag.ID)
		if err != nil {
			log.Warnf("ExportCatalog: failed to load members of %q: %v", tag.Name, err)
			members = nil
		}
		slugs := make([]string, 0, len(members))
		for _, m := range members {
			slugs = append(slugs, m.Slug)
		}
		row := []interface{}{tag.OrderIndex, tag.Name, tag.Slug, strings.Join(slugs, ", ")}
		if err := writeRow(f, tagsSheet, i+2, row); err != nil {
			return err
		}
	}

	idx, _ := f.GetSheetIndex(productsSheet)
	f.SetActiveSheet(idx)
	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int) error {
	for i, name := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
		_ = f.SetCellStyle(sheet, cell, cell, style)
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, colName, colName, 18)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// optionalInt 缺省的排序字段导出为空单元格
func optionalInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
