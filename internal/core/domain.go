package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	DefaultCategoryColor = "#3B82F6"
	DefaultCategoryIcon  = "📋"

	MaxDescriptionLength = 200
	MaxUsernameLength    = 50
	MaxCategoryNameLen   = 100
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordBytes = 72
)

type (
	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Category struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user_id"`
		Name      string    `json:"name"`
		Color     string    `json:"color"`
		Icon      string    `json:"icon"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Expense belongs to exactly one user. A nil CategoryID is the
	// uncategorized state.
	Expense struct {
		ID          int64           `json:"id"`
		UserID      int64           `json:"user_id"`
		Amount      decimal.Decimal `json:"amount"`
		Description *string         `json:"description"`
		CategoryID  *int64          `json:"category_id"`
		Category    *Category       `json:"category"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   *time.Time      `json:"updated_at"`
	}

	ExpenseInput struct {
		Amount      decimal.Decimal `json:"amount"`
		Description *string         `json:"description"`
		CategoryID  *int64          `json:"category_id"`
	}

	CategoryInput struct {
		Name  string `json:"name"`
		Color string `json:"color"`
		Icon  string `json:"icon"`
	}

	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	// Page is a skip/limit window over an insertion-ordered listing.
	Page struct {
		Skip  int
		Limit int
	}
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Clamp bounds the window so a single listing never exceeds MaxPageLimit rows.
func (p Page) Clamp() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	return p
}

func (c Credentials) Validate() error {
	name := strings.TrimSpace(c.Username)
	if name == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return &ValidationError{Field: "username", Message: "username too long (max 50 characters)"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	if len(c.Password) > MaxPasswordBytes {
		return &ValidationError{Field: "password", Message: "password too long (max 72 bytes)"}
	}
	return nil
}

// Normalize rounds the amount to cents and trims the description.
func (in ExpenseInput) Normalize() ExpenseInput {
	in.Amount = RoundCents(in.Amount)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		in.Description = &d
	}
	return in
}

func (in ExpenseInput) Validate() error {
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	if in.Description != nil {
		if err := validateDescription(*in.Description); err != nil {
			return err
		}
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		return &ValidationError{Field: "category_id", Message: "category_id must be positive"}
	}
	return nil
}

func (in CategoryInput) Normalize() CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	in.Icon = strings.TrimSpace(in.Icon)
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
	if in.Icon == "" {
		in.Icon = DefaultCategoryIcon
	}
	return in
}

func (in CategoryInput) Validate() error {
	return validateCategoryName(in.Name)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &ValidationError{Field: "amount", Message: "amount must be greater than or equal to 0"}
	}
	if amount.GreaterThan(maxAmount) {
		return &ValidationError{Field: "amount", Message: "amount too large"}
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Message: "description too long (max 200 characters)"}
	}
	return nil
}

func validateCategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLen {
		return &ValidationError{Field: "name", Message: "name too long (max 100 characters)"}
	}
	return nil
}
