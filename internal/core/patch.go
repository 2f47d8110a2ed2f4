package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Optional is a patch field. Set records whether the key appeared in the
// payload at all; Null records an explicit JSON null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// ExpensePatch carries the fields an update may touch.
type ExpensePatch struct {
	Amount      Optional[decimal.Decimal] `json:"amount"`
	Description Optional[string]          `json:"description"`
	CategoryID  Optional[int64]           `json:"category_id"`
}

func (p ExpensePatch) Validate() error {
	if p.Amount.Set {
		if p.Amount.Null {
			return &ValidationError{Field: "amount", Message: "amount cannot be null"}
		}
		if err := validateAmount(RoundCents(p.Amount.Value)); err != nil {
			return err
		}
	}
	if p.Description.Set && !p.Description.Null {
		if err := validateDescription(strings.TrimSpace(p.Description.Value)); err != nil {
			return err
		}
	}
	if p.CategoryID.Set && !p.CategoryID.Null && p.CategoryID.Value <= 0 {
		return &ValidationError{Field: "category_id", Message: "category_id must be positive"}
	}
	return nil
}

// IsEmpty reports whether the patch would leave the record unchanged.
func (p ExpensePatch) IsEmpty() bool {
	return !p.Amount.Set && !p.Description.Set && !p.CategoryID.Set
}

// Apply overrides only the fields present in the patch.
func (p ExpensePatch) Apply(e Expense, now time.Time) Expense {
	if p.Amount.Set && !p.Amount.Null {
		e.Amount = RoundCents(p.Amount.Value)
	}
	if p.Description.Set {
		if p.Description.Null {
			e.Description = nil
		} else {
			d := strings.TrimSpace(p.Description.Value)
			e.Description = &d
		}
	}
	if p.CategoryID.Set {
		if p.CategoryID.Null {
			e.CategoryID = nil
		} else {
			id := p.CategoryID.Value
			e.CategoryID = &id
		}
		e.Category = nil
	}
	e.UpdatedAt = &now
	return e
}

type CategoryPatch struct {
	Name  Optional[string] `json:"name"`
	Color Optional[string] `json:"color"`
	Icon  Optional[string] `json:"icon"`
}

func (p CategoryPatch) Validate() error {
	if p.Name.Set {
		if p.Name.Null {
			return &ValidationError{Field: "name", Message: "name cannot be null"}
		}
		if err := validateCategoryName(p.Name.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p CategoryPatch) Apply(c Category) Category {
	if p.Name.Set && !p.Name.Null {
		c.Name = strings.TrimSpace(p.Name.Value)
	}
	// A null or blank color/icon falls back to the default token.
	if p.Color.Set {
		c.Color = orDefault(p.Color, DefaultCategoryColor)
	}
	if p.Icon.Set {
		c.Icon = orDefault(p.Icon, DefaultCategoryIcon)
	}
	return c
}

func orDefault(o Optional[string], def string) string {
	if o.Null {
		return def
	}
	if v := strings.TrimSpace(o.Value); v != "" {
		return v
	}
	return def
}
