package export

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"spese-api/internal/core"
)

func sampleRecords() []core.Expense {
	lunch := "Lunch, with \"friends\""
	food := &core.Category{ID: 3, Name: "Food"}
	catID := int64(3)
	return []core.Expense{
		{
			ID:          2,
			Amount:      decimal.RequireFromString("12.5"),
			Description: &lunch,
			CategoryID:  &catID,
			Category:    food,
			CreatedAt:   time.Date(2024, 3, 2, 14, 5, 9, 123000, time.UTC),
		},
		{
			ID:        1,
			Amount:    decimal.RequireFromString("3"),
			CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestFilename(t *testing.T) {
	day := time.Date(2024, 7, 9, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		username string
		ext      string
		want     string
	}{
		{"alice", "csv", "expenses_alice_20240709.csv"},
		{"Alice Smith", "xlsx", "expenses_alice-smith_20240709.xlsx"},
		{"!!!", "csv", "expenses_user_20240709.csv"},
	}
	for _, tt := range tests {
		if got := Filename(tt.username, day, tt.ext); got != tt.want {
			t.Errorf("Filename(%q) = %q, want %q", tt.username, got, tt.want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	want := strings.Join([]string{
		"ID,Description,Amount,Category,Date",
		`2,"Lunch, with ""friends""",12.50,Food,2024-03-02 14:05:09`,
		"1,,3.00,Uncategorized,2024-03-01 08:00:00",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "ID,Description,Amount,Category,Date\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords(), core.ExportFilter{Start: &start}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Expenses", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Expenses", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "Lunch, with \"friends\"", rows[1][1])
	assert.Equal(t, "Food", rows[1][3])
	assert.Equal(t, "2024-03-02 14:05:09", rows[1][4])
	assert.Equal(t, "Uncategorized", rows[2][3])

	amount, err := strconv.ParseFloat(rows[1][2], 64)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, amount, 1e-9)

	summary, err := f.GetRows("Summary", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"Total Expenses", "Total Amount", "Date Range"}, summary[0])
	assert.Equal(t, "2", summary[1][0])
	total, err := strconv.ParseFloat(summary[1][1], 64)
	require.NoError(t, err)
	assert.InDelta(t, 15.5, total, 1e-9)
	assert.Equal(t, "2024-03-01 00:00:00 to All", summary[1][2])
}

func TestDateRange(t *testing.T) {
	end := time.Date(2024, 1, 31, 23, 59, 59, 999999000, time.UTC)
	assert.Equal(t, "All to All", DateRange(core.ExportFilter{}))
	assert.Equal(t, "All to 2024-01-31 23:59:59", DateRange(core.ExportFilter{End: &end}))
}
