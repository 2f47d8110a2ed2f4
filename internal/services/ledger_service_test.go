package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spese-api/internal/core"
	"spese-api/internal/storage"
)

type publishedEvent struct {
	Type     core.EventType
	UserID   int64
	EntityID int64
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
	closed bool
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, t core.EventType, userID, entityID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{t, userID, entityID})
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type countingInvalidator struct{ calls map[int64]int }

func (c *countingInvalidator) Invalidate(userID int64) { c.calls[userID]++ }

type harness struct {
	svc    *LedgerService
	repo   *storage.SQLiteRepository
	events *recordingPublisher
	inval  *countingInvalidator
	userID int64
	other  int64
	clock  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	alice, err := repo.CreateUser(ctx, "alice", "hash", time.Now())
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, "bob", "hash", time.Now())
	require.NoError(t, err)

	h := &harness{
		repo:   repo,
		events: &recordingPublisher{},
		inval:  &countingInvalidator{calls: map[int64]int{}},
		userID: alice.ID,
		other:  bob.ID,
		clock:  time.Date(2024, 3, 15, 10, 0, 0, 123456789, time.UTC),
	}
	h.svc = NewLedgerService(repo, h.events, h.inval).WithClock(func() time.Time { return h.clock })
	return h
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func ptr[T any](v T) *T             { return &v }

func TestCreateExpenseNormalizesAndStamps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e, err := h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{
		Amount:      money("12.345"),
		Description: ptr("  lunch  "),
	})
	require.NoError(t, err)

	assert.True(t, e.Amount.Equal(money("12.35")), "amount=%s", e.Amount)
	require.NotNil(t, e.Description)
	assert.Equal(t, "lunch", *e.Description)
	assert.True(t, e.CreatedAt.Equal(h.clock.Truncate(time.Microsecond)), "created_at=%s", e.CreatedAt)
	assert.Nil(t, e.UpdatedAt)

	assert.Equal(t, []core.EventType{core.EventExpenseCreated}, h.events.types())
	assert.Equal(t, 1, h.inval.calls[h.userID])
}

func TestCreateExpenseValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{Amount: money("-1")})
	assert.True(t, core.IsValidation(err))

	long := make([]byte, core.MaxDescriptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{Amount: money("1"), Description: ptr(string(long))})
	assert.True(t, core.IsValidation(err))

	assert.Empty(t, h.events.types(), "failed writes publish nothing")
	assert.Zero(t, h.inval.calls[h.userID])
}

func TestCreateExpenseWithForeignCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bobs, err := h.svc.CreateCategory(ctx, h.other, core.CategoryInput{Name: "Bob's"})
	require.NoError(t, err)

	_, err = h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{Amount: money("5"), CategoryID: &bobs.ID})
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "category", nf.Resource)
}

func TestUpdateExpense(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	food, err := h.svc.CreateCategory(ctx, h.userID, core.CategoryInput{Name: "Food"})
	require.NoError(t, err)
	e, err := h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{
		Amount:      money("10"),
		Description: ptr("pizza"),
		CategoryID:  &food.ID,
	})
	require.NoError(t, err)

	h.clock = h.clock.Add(time.Hour)
	updated, err := h.svc.UpdateExpense(ctx, h.userID, e.ID, core.ExpensePatch{Amount: core.Some(money("11.5"))})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(money("11.50")))
	require.NotNil(t, updated.Description)
	assert.Equal(t, "pizza", *updated.Description, "unset fields are kept")
	require.NotNil(t, updated.Category)
	assert.Equal(t, "Food", updated.Category.Name)
	require.NotNil(t, updated.UpdatedAt)
	assert.True(t, updated.UpdatedAt.Equal(h.clock.Truncate(time.Microsecond)))

	cleared, err := h.svc.UpdateExpense(ctx, h.userID, e.ID, core.ExpensePatch{CategoryID: core.Null[int64]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.CategoryID)
	assert.Nil(t, cleared.Category)

	_, err = h.svc.UpdateExpense(ctx, h.userID, e.ID, core.ExpensePatch{Amount: core.Null[decimal.Decimal]()})
	assert.True(t, core.IsValidation(err))

	_, err = h.svc.UpdateExpense(ctx, h.other, e.ID, core.ExpensePatch{Amount: core.Some(money("1"))})
	assert.True(t, core.IsNotFound(err), "other users see not found")
}

func TestEmptyPatchIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e, err := h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{Amount: money("3")})
	require.NoError(t, err)

	got, err := h.svc.UpdateExpense(ctx, h.userID, e.ID, core.ExpensePatch{})
	require.NoError(t, err)
	assert.Nil(t, got.UpdatedAt)
	assert.Equal(t, []core.EventType{core.EventExpenseCreated}, h.events.types())
}

func TestDeleteCategoryUncategorizesExpenses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	food, err := h.svc.CreateCategory(ctx, h.userID, core.CategoryInput{Name: "Food"})
	require.NoError(t, err)
	assert.Equal(t, core.DefaultCategoryColor, food.Color)
	assert.Equal(t, core.DefaultCategoryIcon, food.Icon)

	e, err := h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{Amount: money("9.99"), CategoryID: &food.ID})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteCategory(ctx, h.userID, food.ID))

	got, err := h.svc.GetExpense(ctx, h.userID, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)

	_, err = h.svc.GetCategory(ctx, h.userID, food.ID)
	assert.True(t, core.IsNotFound(err))

	assert.Equal(t, []core.EventType{
		core.EventCategoryCreated,
		core.EventExpenseCreated,
		core.EventCategoryDeleted,
	}, h.events.types())
	assert.Equal(t, 3, h.inval.calls[h.userID])
}

func TestUpdateCategory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.svc.CreateCategory(ctx, h.userID, core.CategoryInput{Name: "Fun", Color: "#000000"})
	require.NoError(t, err)

	c, err = h.svc.UpdateCategory(ctx, h.userID, c.ID, core.CategoryPatch{Name: core.Some("Leisure")})
	require.NoError(t, err)
	assert.Equal(t, "Leisure", c.Name)
	assert.Equal(t, "#000000", c.Color)

	_, err = h.svc.UpdateCategory(ctx, h.userID, c.ID, core.CategoryPatch{Name: core.Some("  ")})
	assert.True(t, core.IsValidation(err))
}

func TestListIsScopedAndClamped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.CreateExpense(ctx, h.userID, core.ExpenseInput{Amount: money("1")})
		require.NoError(t, err)
	}
	_, err := h.svc.CreateExpense(ctx, h.other, core.ExpenseInput{Amount: money("1")})
	require.NoError(t, err)

	all, err := h.svc.ListExpenses(ctx, h.userID, core.Page{Skip: -5, Limit: 0})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := h.svc.ListExpenses(ctx, h.userID, core.Page{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("broker down")

	e, err := h.svc.CreateExpense(context.Background(), h.userID, core.ExpenseInput{Amount: money("1")})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
}

func TestNilCollaborators(t *testing.T) {
	h := newHarness(t)
	svc := NewLedgerService(h.repo, nil, nil)

	_, err := svc.CreateExpense(context.Background(), h.userID, core.ExpenseInput{Amount: money("1")})
	require.NoError(t, err)
}

func TestCloseClosesPublisher(t *testing.T) {
	events := &recordingPublisher{}
	svc := NewLedgerService(nil, events, nil)

	require.NoError(t, svc.Close())
	assert.True(t, events.closed)
}
