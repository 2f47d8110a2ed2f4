package core

import "github.com/shopspring/decimal"

// CategoryTotal is a category's share of a period's spending.
type CategoryTotal struct {
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"category_name"`
	Color      string          `json:"category_color"`
	Icon       string          `json:"category_icon"`
	Total      decimal.Decimal `json:"total_amount"`
	Count      int64           `json:"expense_count"`
	Percentage decimal.Decimal `json:"percentage"`
}

type MonthlyReport struct {
	Year           int                        `json:"year"`
	Month          int                        `json:"month"`
	TotalAmount    decimal.Decimal            `json:"total_amount"`
	ExpenseCount   int64                      `json:"expense_count"`
	Categories     []CategoryTotal            `json:"categories"`
	DailyBreakdown map[string]decimal.Decimal `json:"daily_breakdown"`
}

type YearlyReport struct {
	Year             int                        `json:"year"`
	TotalAmount      decimal.Decimal            `json:"total_amount"`
	MonthlyBreakdown map[string]decimal.Decimal `json:"monthly_breakdown"`
	TopCategories    []CategoryTotal            `json:"top_categories"`
}

type Summary struct {
	TotalExpenses  int64           `json:"total_expenses"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	AverageExpense decimal.Decimal `json:"average_expense"`
}
