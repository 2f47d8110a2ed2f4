// Package reports computes period-bounded spending statistics for one user.
package reports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"spese-api/internal/cache"
	"spese-api/internal/core"
	"spese-api/internal/storage"
)

// TopCategoryLimit caps top_categories in the yearly report.
const TopCategoryLimit = 5

// Store is the read side of the ledger the engine aggregates over.
type Store interface {
	PeriodTotals(ctx context.Context, userID int64, p core.Period) (storage.TotalsRow, error)
	AllTotals(ctx context.Context, userID int64) (storage.TotalsRow, error)
	MonthlyTotals(ctx context.Context, userID int64, p core.Period) (map[int]int64, error)
	DailyTotals(ctx context.Context, userID int64, p core.Period) (map[int]int64, error)
	CategoryTotals(ctx context.Context, userID int64, p core.Period, limit int) ([]storage.CategorySum, error)
	ExportExpenses(ctx context.Context, userID int64, f core.ExportFilter) ([]core.Expense, error)
}

type Engine struct {
	store Store
	cache cache.Cache[any]
}

// NewEngine builds an engine. c may be nil to disable caching.
func NewEngine(store Store, c cache.Cache[any]) *Engine {
	return &Engine{store: store, cache: c}
}

// Monthly reports spending inside [first of month, first of next month).
func (e *Engine) Monthly(ctx context.Context, userID int64, year, month int) (core.MonthlyReport, error) {
	period, err := core.MonthPeriod(year, month)
	if err != nil {
		return core.MonthlyReport{}, err
	}

	key := cacheKey(userID, "monthly", year, month)
	if r, ok := cached[core.MonthlyReport](e, key); ok {
		return r, nil
	}

	var (
		totals storage.TotalsRow
		cats   []storage.CategorySum
		days   map[int]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = e.store.PeriodTotals(gctx, userID, period)
		return err
	})
	g.Go(func() (err error) {
		cats, err = e.store.CategoryTotals(gctx, userID, period, 0)
		return err
	})
	g.Go(func() (err error) {
		days, err = e.store.DailyTotals(gctx, userID, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthlyReport{}, fmt.Errorf("monthly report: %w", err)
	}

	report := core.MonthlyReport{
		Year:           year,
		Month:          month,
		TotalAmount:    core.FromCents(totals.TotalCents),
		ExpenseCount:   totals.Count,
		Categories:     categoryShares(cats, totals.TotalCents),
		DailyBreakdown: make(map[string]decimal.Decimal, len(days)),
	}
	for day, cents := range days {
		report.DailyBreakdown[strconv.Itoa(day)] = core.FromCents(cents)
	}

	e.remember(key, report)
	return report, nil
}

// Yearly reports spending inside [Jan 1, Jan 1 of next year).
func (e *Engine) Yearly(ctx context.Context, userID int64, year int) (core.YearlyReport, error) {
	period, err := core.YearPeriod(year)
	if err != nil {
		return core.YearlyReport{}, err
	}

	key := cacheKey(userID, "yearly", year)
	if r, ok := cached[core.YearlyReport](e, key); ok {
		return r, nil
	}

	var (
		totals storage.TotalsRow
		months map[int]int64
		top    []storage.CategorySum
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = e.store.PeriodTotals(gctx, userID, period)
		return err
	})
	g.Go(func() (err error) {
		months, err = e.store.MonthlyTotals(gctx, userID, period)
		return err
	})
	g.Go(func() (err error) {
		top, err = e.store.CategoryTotals(gctx, userID, period, TopCategoryLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.YearlyReport{}, fmt.Errorf("yearly report: %w", err)
	}

	report := core.YearlyReport{
		Year:             year,
		TotalAmount:      core.FromCents(totals.TotalCents),
		MonthlyBreakdown: make(map[string]decimal.Decimal, len(months)),
		TopCategories:    categoryShares(top, totals.TotalCents),
	}
	for month, cents := range months {
		report.MonthlyBreakdown[time.Month(month).String()] = core.FromCents(cents)
	}

	e.remember(key, report)
	return report, nil
}

// Summary reports count, total and average over all of the user's expenses.
func (e *Engine) Summary(ctx context.Context, userID int64) (core.Summary, error) {
	key := cacheKey(userID, "summary")
	if r, ok := cached[core.Summary](e, key); ok {
		return r, nil
	}

	totals, err := e.store.AllTotals(ctx, userID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}

	summary := core.Summary{
		TotalExpenses:  totals.Count,
		TotalAmount:    core.FromCents(totals.TotalCents),
		AverageExpense: core.Average(totals.TotalCents, totals.Count),
	}
	e.remember(key, summary)
	return summary, nil
}

// ExportRecords returns the filtered record set, newest first. Never cached.
func (e *Engine) ExportRecords(ctx context.Context, userID int64, f core.ExportFilter) ([]core.Expense, error) {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return nil, &core.ValidationError{Field: "end_date", Message: "end_date must not be before start_date"}
	}
	records, err := e.store.ExportExpenses(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	return records, nil
}

// Invalidate drops every cached report for the user.
func (e *Engine) Invalidate(userID int64) {
	if e.cache == nil {
		return
	}
	e.cache.DeletePrefix(userPrefix(userID))
}

func categoryShares(rows []storage.CategorySum, periodTotal int64) []core.CategoryTotal {
	out := make([]core.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.CategoryTotal{
			CategoryID: row.CategoryID,
			Name:       row.Name,
			Color:      row.Color,
			Icon:       row.Icon,
			Total:      core.FromCents(row.TotalCents),
			Count:      row.Count,
			Percentage: core.Percentage(row.TotalCents, periodTotal),
		})
	}
	return out
}

func cached[T any](e *Engine, key string) (T, bool) {
	var zero T
	if e.cache == nil {
		return zero, false
	}
	v, ok := e.cache.Get(key)
	if !ok {
		return zero, false
	}
	r, ok := v.(T)
	return r, ok
}

func (e *Engine) remember(key string, v any) {
	if e.cache != nil {
		e.cache.Set(key, v)
	}
}

func userPrefix(userID int64) string {
	return "u:" + strconv.FormatInt(userID, 10) + ":"
}

func cacheKey(userID int64, kind string, parts ...int) string {
	key := userPrefix(userID) + kind
	for _, p := range parts {
		key += ":" + strconv.Itoa(p)
	}
	return key
}
