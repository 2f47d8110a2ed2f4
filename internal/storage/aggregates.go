package storage

import (
	"context"
	"fmt"
	"strings"

	"spese-api/internal/core"
)

// PeriodTotals sums the user's expenses inside [p.Start, p.End).
func (r *SQLiteRepository) PeriodTotals(ctx context.Context, userID int64, p core.Period) (TotalsRow, error) {
	totals, err := r.queries.SumExpensesInRange(ctx, rangeParams(userID, p))
	if err != nil {
		return TotalsRow{}, fmt.Errorf("sum expenses in range: %w", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) AllTotals(ctx context.Context, userID int64) (TotalsRow, error) {
	totals, err := r.queries.SumAllExpenses(ctx, userID)
	if err != nil {
		return TotalsRow{}, fmt.Errorf("sum all expenses: %w", err)
	}
	return totals, nil
}

// MonthlyTotals buckets the period by calendar month (1-12). Empty months are absent.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, userID int64, p core.Period) (map[int]int64, error) {
	rows, err := r.queries.MonthlyTotals(ctx, rangeParams(userID, p))
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	return bucketsToMap(rows), nil
}

// DailyTotals buckets the period by day of month. Empty days are absent.
func (r *SQLiteRepository) DailyTotals(ctx context.Context, userID int64, p core.Period) (map[int]int64, error) {
	rows, err := r.queries.DailyTotals(ctx, rangeParams(userID, p))
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	return bucketsToMap(rows), nil
}

// CategoryTotals ranks categories by spend in the period, highest first,
// ties broken by ascending category id. limit <= 0 means no limit.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID int64, p core.Period, limit int) ([]CategorySum, error) {
	lim := int64(limit)
	if lim <= 0 {
		lim = -1
	}
	rows, err := r.queries.CategoryTotals(ctx, CategoryTotalsParams{
		RangeParams: rangeParams(userID, p),
		Limit:       lim,
	})
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	return rows, nil
}

// ExportExpenses returns the user's expenses matching every filter that is
// set, newest first, with categories joined. Both time bounds are inclusive.
func (r *SQLiteRepository) ExportExpenses(ctx context.Context, userID int64, f core.ExportFilter) ([]core.Expense, error) {
	var (
		where = []string{"e.user_id = ?"}
		args  = []any{userID}
	)
	if f.Start != nil {
		where = append(where, "e.created_at >= ?")
		args = append(args, formatTime(*f.Start))
	}
	if f.End != nil {
		where = append(where, "e.created_at <= ?")
		args = append(args, formatTime(*f.End))
	}
	if len(f.CategoryIDs) > 0 {
		placeholders := make([]string, len(f.CategoryIDs))
		for i, id := range f.CategoryIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, "e.category_id IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := expenseColumns +
		"WHERE " + strings.Join(where, " AND ") + "\n" +
		"ORDER BY e.created_at DESC, e.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	expenseRows, err := collectExpenseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan export rows: %w", err)
	}
	return toCoreExpenses(expenseRows)
}

func rangeParams(userID int64, p core.Period) RangeParams {
	return RangeParams{
		UserID: userID,
		Start:  formatTime(p.Start),
		End:    formatTime(p.End),
	}
}

func bucketsToMap(rows []BucketTotal) map[int]int64 {
	out := make(map[int]int64, len(rows))
	for _, row := range rows {
		out[int(row.Bucket)] = row.TotalCents
	}
	return out
}
