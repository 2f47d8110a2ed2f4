package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createUser = `
INSERT INTO users (username, hashed_password, created_at)
VALUES (?, ?, ?)
RETURNING id, username, hashed_password, created_at
`

type CreateUserParams struct {
	Username       string
	HashedPassword string
	CreatedAt      string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Username, arg.HashedPassword, arg.CreatedAt)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const getUserByUsername = `
SELECT id, username, hashed_password, created_at FROM users WHERE username = ?
`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByUsername, username)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const getUser = `
SELECT id, username, hashed_password, created_at FROM users WHERE id = ?
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, getUser, id)
	var i User
	err := row.Scan(&i.ID, &i.Username, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const createCategory = `
INSERT INTO categories (user_id, name, color, icon, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, name, color, icon, created_at
`

type CreateCategoryParams struct {
	UserID    int64
	Name      string
	Color     string
	Icon      string
	CreatedAt string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.UserID, arg.Name, arg.Color, arg.Icon, arg.CreatedAt)
	var i Category
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.Color, &i.Icon, &i.CreatedAt)
	return i, err
}

const getCategoryQuery = `
SELECT id, user_id, name, color, icon, created_at
FROM categories
WHERE id = ? AND user_id = ?
`

// ScopedParams addresses one row owned by one user.
type ScopedParams struct {
	ID     int64
	UserID int64
}

func (q *Queries) GetCategory(ctx context.Context, arg ScopedParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategoryQuery, arg.ID, arg.UserID)
	var i Category
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.Color, &i.Icon, &i.CreatedAt)
	return i, err
}

const listCategories = `
SELECT id, user_id, name, color, icon, created_at
FROM categories
WHERE user_id = ?
ORDER BY id
LIMIT ? OFFSET ?
`

type ListParams struct {
	UserID int64
	Limit  int64
	Offset int64
}

func (q *Queries) ListCategories(ctx context.Context, arg ListParams) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.UserID, &i.Name, &i.Color, &i.Icon, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateCategory = `
UPDATE categories SET name = ?, color = ?, icon = ?
WHERE id = ? AND user_id = ?
`

type UpdateCategoryParams struct {
	Name   string
	Color  string
	Icon   string
	ID     int64
	UserID int64
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.Color, arg.Icon, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const uncategorizeExpenses = `
UPDATE expenses SET category_id = NULL
WHERE category_id = ? AND user_id = ?
`

type UncategorizeExpensesParams struct {
	CategoryID int64
	UserID     int64
}

func (q *Queries) UncategorizeExpenses(ctx context.Context, arg UncategorizeExpensesParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, uncategorizeExpenses, arg.CategoryID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteCategory = `
DELETE FROM categories WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteCategory(ctx context.Context, arg ScopedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createExpense = `
INSERT INTO expenses (user_id, category_id, description, amount_cents, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type CreateExpenseParams struct {
	UserID      int64
	CategoryID  sql.NullInt64
	Description sql.NullString
	AmountCents int64
	CreatedAt   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.UserID, arg.CategoryID, arg.Description, arg.AmountCents, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const expenseColumns = `
SELECT e.id, e.user_id, e.category_id, e.description, e.amount_cents, e.created_at, e.updated_at,
       c.id, c.name, c.color, c.icon, c.created_at
FROM expenses e
LEFT JOIN categories c ON c.id = e.category_id AND c.user_id = e.user_id
`

const getExpenseQuery = expenseColumns + `
WHERE e.id = ? AND e.user_id = ?
`

func (q *Queries) GetExpense(ctx context.Context, arg ScopedParams) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, getExpenseQuery, arg.ID, arg.UserID)
	return scanExpenseRow(row)
}

const listExpenses = expenseColumns + `
WHERE e.user_id = ?
ORDER BY e.id
LIMIT ? OFFSET ?
`

func (q *Queries) ListExpenses(ctx context.Context, arg ListParams) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectExpenseRows(rows)
}

const updateExpense = `
UPDATE expenses
SET category_id = ?, description = ?, amount_cents = ?, updated_at = ?
WHERE id = ? AND user_id = ?
`

type UpdateExpenseParams struct {
	CategoryID  sql.NullInt64
	Description sql.NullString
	AmountCents int64
	UpdatedAt   string
	ID          int64
	UserID      int64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateExpense,
		arg.CategoryID, arg.Description, arg.AmountCents, arg.UpdatedAt, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteExpense = `
DELETE FROM expenses WHERE id = ? AND user_id = ?
`

func (q *Queries) DeleteExpense(ctx context.Context, arg ScopedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countExpenses = `
SELECT COUNT(*) FROM expenses WHERE user_id = ?
`

func (q *Queries) CountExpenses(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countExpenses, userID).Scan(&n)
	return n, err
}

const sumExpensesInRange = `
SELECT COALESCE(SUM(amount_cents), 0), COUNT(*)
FROM expenses
WHERE user_id = ? AND created_at >= ? AND created_at < ?
`

type RangeParams struct {
	UserID int64
	Start  string
	End    string
}

func (q *Queries) SumExpensesInRange(ctx context.Context, arg RangeParams) (TotalsRow, error) {
	var i TotalsRow
	err := q.db.QueryRowContext(ctx, sumExpensesInRange, arg.UserID, arg.Start, arg.End).
		Scan(&i.TotalCents, &i.Count)
	return i, err
}

const sumAllExpenses = `
SELECT COALESCE(SUM(amount_cents), 0), COUNT(*)
FROM expenses
WHERE user_id = ?
`

func (q *Queries) SumAllExpenses(ctx context.Context, userID int64) (TotalsRow, error) {
	var i TotalsRow
	err := q.db.QueryRowContext(ctx, sumAllExpenses, userID).Scan(&i.TotalCents, &i.Count)
	return i, err
}

const monthlyTotals = `
SELECT CAST(strftime('%m', created_at) AS INTEGER) AS bucket, SUM(amount_cents)
FROM expenses
WHERE user_id = ? AND created_at >= ? AND created_at < ?
GROUP BY bucket
ORDER BY bucket
`

func (q *Queries) MonthlyTotals(ctx context.Context, arg RangeParams) ([]BucketTotal, error) {
	return q.bucketTotals(ctx, monthlyTotals, arg)
}

const dailyTotals = `
SELECT CAST(strftime('%d', created_at) AS INTEGER) AS bucket, SUM(amount_cents)
FROM expenses
WHERE user_id = ? AND created_at >= ? AND created_at < ?
GROUP BY bucket
ORDER BY bucket
`

func (q *Queries) DailyTotals(ctx context.Context, arg RangeParams) ([]BucketTotal, error) {
	return q.bucketTotals(ctx, dailyTotals, arg)
}

func (q *Queries) bucketTotals(ctx context.Context, query string, arg RangeParams) ([]BucketTotal, error) {
	rows, err := q.db.QueryContext(ctx, query, arg.UserID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BucketTotal
	for rows.Next() {
		var i BucketTotal
		if err := rows.Scan(&i.Bucket, &i.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ties on total fall back to category id so the top-N cut is stable.
const categoryTotals = `
SELECT c.id, c.name, c.color, c.icon, SUM(e.amount_cents) AS total, COUNT(e.id)
FROM expenses e
JOIN categories c ON c.id = e.category_id AND c.user_id = e.user_id
WHERE e.user_id = ? AND e.created_at >= ? AND e.created_at < ?
GROUP BY c.id, c.name, c.color, c.icon
ORDER BY total DESC, c.id ASC
LIMIT ?
`

type CategoryTotalsParams struct {
	RangeParams
	// A negative limit returns every category.
	Limit int64
}

func (q *Queries) CategoryTotals(ctx context.Context, arg CategoryTotalsParams) ([]CategorySum, error) {
	rows, err := q.db.QueryContext(ctx, categoryTotals, arg.UserID, arg.Start, arg.End, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategorySum
	for rows.Next() {
		var i CategorySum
		if err := rows.Scan(&i.CategoryID, &i.Name, &i.Color, &i.Icon, &i.TotalCents, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpenseRow(row rowScanner) (ExpenseRow, error) {
	var i ExpenseRow
	err := row.Scan(
		&i.ID, &i.UserID, &i.CategoryID, &i.Description, &i.AmountCents, &i.CreatedAt, &i.UpdatedAt,
		&i.CatID, &i.CatName, &i.CatColor, &i.CatIcon, &i.CatCreatedAt,
	)
	return i, err
}

func collectExpenseRows(rows *sql.Rows) ([]ExpenseRow, error) {
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		i, err := scanExpenseRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
