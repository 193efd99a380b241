package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/lukman83/adscout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbook_WriteFile(t *testing.T) {
	count := 42
	wb := Workbook{
		Pages: []models.Page{
			{ID: "p1", Name: "Bijoux Paris", AdIDs: []string{"a1", "a2"}, Bucket: models.BucketXS, WebsiteURL: "https://bijoux.fr", Keywords: []string{"collier", "bague"}, ActiveAds: &count},
		},
		Winning: []models.WinningAd{
			{Ad: models.Ad{ID: "a1", PageID: "p1", PageName: "Bijoux Paris"}, Tier: models.WinningTier{MinAgeDays: 4, MinReach: 15000}, AgeDays: 5, Reach: 20000},
		},
		Analyses: []models.WebsiteAnalysis{
			{URL: "https://bijoux.fr", Success: true, Platform: "Shopify", PaymentMethods: []string{"paypal", "visa"}, ProductCount: &count, AnalyzedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
			{URL: "https://down.fr", Error: "timeout"},
		},
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, wb.WriteFile(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPages, SheetWinning, SheetAnalyses}, f.GetSheetList())

	rows, err := f.GetRows(SheetPages)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, pageColumns, rows[0])
	assert.Equal(t, "Bijoux Paris", rows[1][1])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "XS", rows[1][3])
	assert.Equal(t, "collier, bague", rows[1][6])
	assert.Equal(t, "42", rows[1][8])

	tier, err := f.GetCellValue(SheetWinning, "F2")
	require.NoError(t, err)
	assert.Equal(t, "4d/15k", tier)

	rows, err = f.GetRows(SheetAnalyses)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "paypal, visa", rows[1][6])
	assert.Equal(t, "42", rows[1][7])
	assert.Equal(t, "2026-03-01T00:00:00Z", rows[1][12])
	assert.Equal(t, "timeout", rows[2][3])
}

func TestWorkbook_EmptyStillHasPagesSheet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Workbook{}.Write(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPages}, f.GetSheetList())
	rows, err := f.GetRows(SheetPages)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pageColumns, rows[0])
}

func TestWorkbook_OnlyAnalyses(t *testing.T) {
	var buf bytes.Buffer
	wb := Workbook{Analyses: []models.WebsiteAnalysis{{URL: "https://a.fr", Success: true}}}
	require.NoError(t, wb.Write(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetAnalyses}, f.GetSheetList())
}
