package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"spese-api/internal/core"
)

// Repository is the ledger store the service writes through. Every method
// is scoped by userID.
type Repository interface {
	CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput, createdAt time.Time) (core.Expense, error)
	GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, userID int64, page core.Page) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, userID, id int64, patch core.ExpensePatch, now time.Time) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id int64) error

	CreateCategory(ctx context.Context, userID int64, in core.CategoryInput, createdAt time.Time) (core.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
	ListCategories(ctx context.Context, userID int64, page core.Page) ([]core.Category, error)
	UpdateCategory(ctx context.Context, userID, id int64, patch core.CategoryPatch) (core.Category, error)
	DeleteCategory(ctx context.Context, userID, id int64) (int64, error)
}

// EventPublisher receives a notification after each successful write.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, eventType core.EventType, userID, entityID int64) error
}

// Invalidator drops derived data for a user, e.g. cached reports.
type Invalidator interface {
	Invalidate(userID int64)
}

// LedgerService owns write-side rules for expenses and categories: input
// normalization, the server clock, cache invalidation and event fan-out.
type LedgerService struct {
	repo    Repository
	events  EventPublisher
	reports Invalidator
	now     func() time.Time
}

// NewLedgerService wires the service. events and reports may be nil.
func NewLedgerService(repo Repository, events EventPublisher, reports Invalidator) *LedgerService {
	return &LedgerService{
		repo:    repo,
		events:  events,
		reports: reports,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for created_at and updated_at.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Timestamps are stored with microsecond precision.
func (s *LedgerService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Expenses

func (s *LedgerService) CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput) (core.Expense, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	e, err := s.repo.CreateExpense(ctx, userID, in, s.timestamp())
	if err != nil {
		return core.Expense{}, err
	}
	s.afterWrite(ctx, core.EventExpenseCreated, userID, e.ID)
	return e, nil
}

func (s *LedgerService) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	return s.repo.GetExpense(ctx, userID, id)
}

func (s *LedgerService) ListExpenses(ctx context.Context, userID int64, page core.Page) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, userID, page.Clamp())
}

// UpdateExpense applies only the fields present in patch. An empty patch
// returns the record untouched.
func (s *LedgerService) UpdateExpense(ctx context.Context, userID, id int64, patch core.ExpensePatch) (core.Expense, error) {
	if err := patch.Validate(); err != nil {
		return core.Expense{}, err
	}
	if patch.IsEmpty() {
		return s.repo.GetExpense(ctx, userID, id)
	}

	e, err := s.repo.UpdateExpense(ctx, userID, id, patch, s.timestamp())
	if err != nil {
		return core.Expense{}, err
	}
	s.afterWrite(ctx, core.EventExpenseUpdated, userID, e.ID)
	return e, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.afterWrite(ctx, core.EventExpenseDeleted, userID, id)
	return nil
}

// Categories

func (s *LedgerService) CreateCategory(ctx context.Context, userID int64, in core.CategoryInput) (core.Category, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}

	c, err := s.repo.CreateCategory(ctx, userID, in, s.timestamp())
	if err != nil {
		return core.Category{}, err
	}
	s.afterWrite(ctx, core.EventCategoryCreated, userID, c.ID)
	return c, nil
}

func (s *LedgerService) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return s.repo.GetCategory(ctx, userID, id)
}

func (s *LedgerService) ListCategories(ctx context.Context, userID int64, page core.Page) ([]core.Category, error) {
	return s.repo.ListCategories(ctx, userID, page.Clamp())
}

func (s *LedgerService) UpdateCategory(ctx context.Context, userID, id int64, patch core.CategoryPatch) (core.Category, error) {
	if err := patch.Validate(); err != nil {
		return core.Category{}, err
	}

	c, err := s.repo.UpdateCategory(ctx, userID, id, patch)
	if err != nil {
		return core.Category{}, err
	}
	s.afterWrite(ctx, core.EventCategoryUpdated, userID, c.ID)
	return c, nil
}

// DeleteCategory removes the category; its expenses become uncategorized.
func (s *LedgerService) DeleteCategory(ctx context.Context, userID, id int64) error {
	if _, err := s.repo.DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.afterWrite(ctx, core.EventCategoryDeleted, userID, id)
	return nil
}

// afterWrite runs once the write has committed. Nothing here can fail the
// request.
func (s *LedgerService) afterWrite(ctx context.Context, eventType core.EventType, userID, entityID int64) {
	if s.reports != nil {
		s.reports.Invalidate(userID)
	}

	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, eventType, userID, entityID); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger event",
			"type", eventType,
			"user_id", userID,
			"entity_id", entityID,
			"error", err)
	}
}

// Close releases the repository and publisher if they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.repo.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
