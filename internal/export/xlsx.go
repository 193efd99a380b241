// Package export writes search results and analyses to spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lukman83/adscout/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetPages    = "Pages"
	SheetWinning  = "Winning Ads"
	SheetAnalyses = "Websites"
)

var (
	pageColumns    = []string{"Page ID", "Page", "Ads", "Bucket", "Website", "Currency", "Keywords", "Favorite", "Active Ads"}
	winningColumns = []string{"Ad ID", "Page ID", "Page", "Age (days)", "Reach", "Tier", "Created", "Snapshot"}

	analysisColumns = []string{
		"URL", "Final URL", "Success", "Error", "Platform", "Theme", "Payments",
		"Products", "Currency", "Category", "Product Types", "Title", "Analyzed",
	}
)

// Workbook collects the sheets of one export. Empty sections are skipped.
type Workbook struct {
	Pages    []models.Page
	Winning  []models.WinningAd
	Analyses []models.WebsiteAnalysis
}

// WriteFile saves the workbook to path.
func (w Workbook) WriteFile(path string) error {
	f, err := w.build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Write streams the workbook to out.
func (w Workbook) Write(out io.Writer) error {
	f, err := w.build()
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(out)
	return err
}

func (w Workbook) build() (*excelize.File, error) {
	f := excelize.NewFile()

	s := &sheetWriter{f: f}
	if err := s.init(); err != nil {
		f.Close()
		return nil, err
	}

	if len(w.Pages) > 0 || (len(w.Winning) == 0 && len(w.Analyses) == 0) {
		rows := make([][]any, 0, len(w.Pages))
		for _, p := range w.Pages {
			var active any = ""
			if p.ActiveAds != nil {
				active = *p.ActiveAds
			}
			rows = append(rows, []any{
				p.ID, p.Name, p.AdCount(), p.Bucket.String(), p.WebsiteURL,
				p.Currency, strings.Join(p.Keywords, ", "), p.Flags.Favorite, active,
			})
		}
		s.add(SheetPages, pageColumns, rows)
	}

	if len(w.Winning) > 0 {
		rows := make([][]any, 0, len(w.Winning))
		for _, wa := range w.Winning {
			rows = append(rows, []any{
				wa.Ad.ID, wa.Ad.PageID, wa.Ad.PageName, wa.AgeDays, wa.Reach,
				wa.Tier.Label(), formatTime(wa.Ad.CreatedAt), wa.Ad.SnapshotURL,
			})
		}
		s.add(SheetWinning, winningColumns, rows)
	}

	if len(w.Analyses) > 0 {
		rows := make([][]any, 0, len(w.Analyses))
		for _, a := range w.Analyses {
			var products any = ""
			if a.ProductCount != nil {
				products = *a.ProductCount
			}
			rows = append(rows, []any{
				a.URL, a.FinalURL, a.Success, a.Error, a.Platform, a.Theme,
				strings.Join(a.PaymentMethods, ", "), products, a.Currency,
				a.Category, strings.Join(a.ProductTypes, ", "), a.Title,
				formatTime(a.AnalyzedAt),
			})
		}
		s.add(SheetAnalyses, analysisColumns, rows)
	}

	if s.err != nil {
		f.Close()
		return nil, s.err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, err
	}
	if idx, err := f.GetSheetIndex(s.first); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// sheetWriter keeps the first error so the section code stays linear.
type sheetWriter struct {
	f           *excelize.File
	headerStyle int
	first       string
	err         error
}

func (s *sheetWriter) init() error {
	style, err := s.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1877F2"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	s.headerStyle = style
	return nil
}

func (s *sheetWriter) add(name string, columns []string, rows [][]any) {
	if s.err != nil {
		return
	}
	if _, err := s.f.NewSheet(name); err != nil {
		s.err = fmt.Errorf("sheet %s: %w", name, err)
		return
	}
	if s.first == "" {
		s.first = name
	}

	if err := s.f.SetSheetRow(name, "A1", &columns); err != nil {
		s.err = err
		return
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = s.f.SetCellStyle(name, "A1", lastCol+"1", s.headerStyle)

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := s.f.SetSheetRow(name, cell, &row); err != nil {
			s.err = err
			return
		}
	}

	for i, col := range columns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if width < 14 {
			width = 14
		}
		if width > 50 {
			width = 50
		}
		_ = s.f.SetColWidth(name, colName, colName, width)
	}

	_ = s.f.AutoFilter(name, fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1), nil)
	_ = s.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
