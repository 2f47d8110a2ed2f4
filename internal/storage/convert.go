package storage

import (
	"spese-api/internal/core"
)

func toCoreUser(u User) (core.User, error) {
	createdAt, err := parseTime(u.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	return core.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.HashedPassword,
		CreatedAt:    createdAt,
	}, nil
}

func toCoreCategory(c Category) (core.Category, error) {
	createdAt, err := parseTime(c.CreatedAt)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Color:     c.Color,
		Icon:      c.Icon,
		CreatedAt: createdAt,
	}, nil
}

func toCoreExpense(row ExpenseRow) (core.Expense, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:        row.ID,
		UserID:    row.UserID,
		Amount:    core.FromCents(row.AmountCents),
		CreatedAt: createdAt,
	}
	if row.Description.Valid {
		d := row.Description.String
		e.Description = &d
	}
	if row.UpdatedAt.Valid {
		updatedAt, err := parseTime(row.UpdatedAt.String)
		if err != nil {
			return core.Expense{}, err
		}
		e.UpdatedAt = &updatedAt
	}
	if row.CategoryID.Valid {
		id := row.CategoryID.Int64
		e.CategoryID = &id
	}
	if row.CatID.Valid {
		cat, err := toCoreCategory(Category{
			ID:        row.CatID.Int64,
			UserID:    row.UserID,
			Name:      row.CatName.String,
			Color:     row.CatColor.String,
			Icon:      row.CatIcon.String,
			CreatedAt: row.CatCreatedAt.String,
		})
		if err != nil {
			return core.Expense{}, err
		}
		e.Category = &cat
	}
	return e, nil
}

func toCoreExpenses(rows []ExpenseRow) ([]core.Expense, error) {
	expenses := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toCoreExpense(row)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}
