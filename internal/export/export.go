// Package export renders expense record sets as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"spese-api/internal/core"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	uncategorized = "Uncategorized"
	dateLayout    = "2006-01-02 15:04:05"

	expensesSheet = "Expenses"
	summarySheet  = "Summary"
)

var header = []string{"ID", "Description", "Amount", "Category", "Date"}

// Filename builds expenses_<user>_<YYYYMMDD>.<ext>. The username is slugged
// so it is safe inside a Content-Disposition header.
func Filename(username string, day time.Time, ext string) string {
	name := slug.Make(username)
	if name == "" {
		name = "user"
	}
	return fmt.Sprintf("expenses_%s_%s.%s", name, day.Format("20060102"), ext)
}

// WriteCSV writes one header row and one row per expense.
func WriteCSV(w io.Writer, records []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range records {
		if err := cw.Write(row(e)); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(e core.Expense) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		description(e),
		e.Amount.StringFixed(2),
		categoryName(e),
		e.CreatedAt.UTC().Format(dateLayout),
	}
}

func description(e core.Expense) string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}

func categoryName(e core.Expense) string {
	if e.Category == nil {
		return uncategorized
	}
	return e.Category.Name
}

// WriteXLSX writes a workbook with an Expenses sheet and a Summary sheet.
func WriteXLSX(w io.Writer, records []core.Expense, filter core.ExportFilter) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeExpensesSheet(f, records); err != nil {
		return err
	}
	if err := writeSummarySheet(f, records, filter); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeExpensesSheet(f *excelize.File, records []core.Expense) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	amountFmt, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	if err := f.SetSheetRow(expensesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(expensesSheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, e := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			e.ID,
			description(e),
			e.Amount.InexactFloat64(),
			categoryName(e),
			e.CreatedAt.UTC().Format(dateLayout),
		}
		if err := f.SetSheetRow(expensesSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", e.ID, err)
		}
	}

	if n := len(records); n > 0 {
		last, _ := excelize.CoordinatesToCellName(3, n+1)
		if err := f.SetCellStyle(expensesSheet, "C2", last, amountFmt); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}
	if err := f.SetColWidth(expensesSheet, "B", "B", 40); err != nil {
		return err
	}
	return f.SetColWidth(expensesSheet, "D", "E", 20)
}

func writeSummarySheet(f *excelize.File, records []core.Expense, filter core.ExportFilter) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}

	total := decimal.Zero
	for _, e := range records {
		total = total.Add(e.Amount)
	}

	labels := []string{"Total Expenses", "Total Amount", "Date Range"}
	values := []any{len(records), total.InexactFloat64(), DateRange(filter)}
	if err := f.SetSheetRow(summarySheet, "A1", &labels); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	if err := f.SetSheetRow(summarySheet, "A2", &values); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return f.SetColWidth(summarySheet, "C", "C", 45)
}

// DateRange renders "<start> to <end>", using "All" for an open bound.
func DateRange(filter core.ExportFilter) string {
	bound := func(t *time.Time) string {
		if t == nil {
			return "All"
		}
		return t.UTC().Format(dateLayout)
	}
	return bound(filter.Start) + " to " + bound(filter.End)
}
