package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spese-api/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05.000000"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has one writer; a single connection keeps transactions from
	// tripping over each other with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func dataSourceName(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back on any error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, hashedPassword string, createdAt time.Time) (core.User, error) {
	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      formatTime(createdAt),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, &core.ConflictError{Resource: "user", Err: core.ErrUsernameRegistered}
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User saved to SQLite", "id", u.ID, "username", u.Username)
	return toCoreUser(u)
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, &core.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return toCoreUser(u)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return toCoreUser(u)
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, userID int64, in core.CategoryInput, createdAt time.Time) (core.Category, error) {
	c, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		UserID:    userID,
		Name:      in.Name,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: formatTime(createdAt),
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "user_id", userID, "name", c.Name)
	return toCoreCategory(c)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return getCategory(ctx, r.queries, userID, id)
}

func getCategory(ctx context.Context, q *Queries, userID, id int64) (core.Category, error) {
	c, err := q.GetCategory(ctx, ScopedParams{ID: id, UserID: userID})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: id}
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return toCoreCategory(c)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64, page core.Page) ([]core.Category, error) {
	page = page.Clamp()
	rows, err := r.queries.ListCategories(ctx, ListParams{
		UserID: userID,
		Limit:  int64(page.Limit),
		Offset: int64(page.Skip),
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		c, err := toCoreCategory(row)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, userID, id int64, patch core.CategoryPatch) (core.Category, error) {
	var updated core.Category
	err := r.withTx(ctx, func(q *Queries) error {
		current, err := getCategory(ctx, q, userID, id)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		n, err := q.UpdateCategory(ctx, UpdateCategoryParams{
			Name:   updated.Name,
			Color:  updated.Color,
			Icon:   updated.Icon,
			ID:     id,
			UserID: userID,
		})
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		if n == 0 {
			return &core.NotFoundError{Resource: "category", ID: id}
		}
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return updated, nil
}

// DeleteCategory uncategorizes the category's expenses and then removes it,
// in one transaction. It returns how many expenses were reassigned.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id int64) (int64, error) {
	var reassigned int64
	err := r.withTx(ctx, func(q *Queries) error {
		if _, err := getCategory(ctx, q, userID, id); err != nil {
			return err
		}

		n, err := q.UncategorizeExpenses(ctx, UncategorizeExpensesParams{CategoryID: id, UserID: userID})
		if err != nil {
			return fmt.Errorf("uncategorize expenses: %w", err)
		}
		reassigned = n

		deleted, err := q.DeleteCategory(ctx, ScopedParams{ID: id, UserID: userID})
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if deleted == 0 {
			return &core.NotFoundError{Resource: "category", ID: id}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Category deleted", "id", id, "user_id", userID, "reassigned_expenses", reassigned)
	return reassigned, nil
}

// Expenses

func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput, createdAt time.Time) (core.Expense, error) {
	var created core.Expense
	err := r.withTx(ctx, func(q *Queries) error {
		if in.CategoryID != nil {
			if _, err := getCategory(ctx, q, userID, *in.CategoryID); err != nil {
				return err
			}
		}

		id, err := q.CreateExpense(ctx, CreateExpenseParams{
			UserID:      userID,
			CategoryID:  nullInt64(in.CategoryID),
			Description: nullString(in.Description),
			AmountCents: core.ToCents(in.Amount),
			CreatedAt:   formatTime(createdAt),
		})
		if err != nil {
			return fmt.Errorf("create expense: %w", err)
		}

		created, err = getExpense(ctx, q, userID, id)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", created.ID,
		"user_id", userID,
		"amount_cents", core.ToCents(created.Amount))
	return created, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	return getExpense(ctx, r.queries, userID, id)
}

func getExpense(ctx context.Context, q *Queries, userID, id int64) (core.Expense, error) {
	row, err := q.GetExpense(ctx, ScopedParams{ID: id, UserID: userID})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, &core.NotFoundError{Resource: "expense", ID: id}
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return toCoreExpense(row)
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, page core.Page) ([]core.Expense, error) {
	page = page.Clamp()
	rows, err := r.queries.ListExpenses(ctx, ListParams{
		UserID: userID,
		Limit:  int64(page.Limit),
		Offset: int64(page.Skip),
	})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return toCoreExpenses(rows)
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID, id int64, patch core.ExpensePatch, now time.Time) (core.Expense, error) {
	var updated core.Expense
	err := r.withTx(ctx, func(q *Queries) error {
		current, err := getExpense(ctx, q, userID, id)
		if err != nil {
			return err
		}

		next := patch.Apply(current, now)
		if patch.CategoryID.Set && next.CategoryID != nil {
			if _, err := getCategory(ctx, q, userID, *next.CategoryID); err != nil {
				return err
			}
		}

		n, err := q.UpdateExpense(ctx, UpdateExpenseParams{
			CategoryID:  nullInt64(next.CategoryID),
			Description: nullString(next.Description),
			AmountCents: core.ToCents(next.Amount),
			UpdatedAt:   formatTime(*next.UpdatedAt),
			ID:          id,
			UserID:      userID,
		})
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		if n == 0 {
			return &core.NotFoundError{Resource: "expense", ID: id}
		}

		updated, err = getExpense(ctx, q, userID, id)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	return updated, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	n, err := r.queries.DeleteExpense(ctx, ScopedParams{ID: id, UserID: userID})
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return &core.NotFoundError{Resource: "expense", ID: id}
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context, userID int64) (int64, error) {
	n, err := r.queries.CountExpenses(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
