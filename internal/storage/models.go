package storage

import "database/sql"

// Row types mirror the tables one to one. Timestamps are UTC text in
// timeLayout so range predicates compare lexically.

type User struct {
	ID             int64
	Username       string
	HashedPassword string
	CreatedAt      string
}

type Category struct {
	ID        int64
	UserID    int64
	Name      string
	Color     string
	Icon      string
	CreatedAt string
}

type Expense struct {
	ID          int64
	UserID      int64
	CategoryID  sql.NullInt64
	Description sql.NullString
	AmountCents int64
	CreatedAt   string
	UpdatedAt   sql.NullString
}

// ExpenseRow is an expense with its category left-joined.
type ExpenseRow struct {
	Expense
	CatID        sql.NullInt64
	CatName      sql.NullString
	CatColor     sql.NullString
	CatIcon      sql.NullString
	CatCreatedAt sql.NullString
}

type TotalsRow struct {
	TotalCents int64
	Count      int64
}

type BucketTotal struct {
	Bucket     int64
	TotalCents int64
}

// CategorySum is one category's spending inside a period.
type CategorySum struct {
	CategoryID int64
	Name       string
	Color      string
	Icon       string
	TotalCents int64
	Count      int64
}
