package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"spese-api/internal/amqp"
	"spese-api/internal/core"
	"spese-api/internal/log"
)

// EntityReader resolves the current state of the records an event names.
type EntityReader interface {
	GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
	GetCategory(ctx context.Context, userID, id int64) (core.Category, error)
}

// Stats counts what the worker has done since it started.
type Stats struct {
	Processed int64
	Stale     int64
	Failed    int64
}

// EventWorker turns ledger events into an audit log. Events carry only
// identifiers, so created and updated events are resolved against storage;
// a record deleted before its event arrives is counted as stale and acked.
type EventWorker struct {
	reader EntityReader

	processed atomic.Int64
	stale     atomic.Int64
	failed    atomic.Int64
}

func NewEventWorker(reader EntityReader) *EventWorker {
	return &EventWorker{reader: reader}
}

// HandleEvent is the consumer callback. A returned error requeues the
// message once, so only storage failures are reported as errors.
func (w *EventWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	attrs := []any{
		"type", string(ev.Type),
		log.FieldUserID, ev.UserID,
		"entity_id", ev.EntityID,
		"published_at", ev.Timestamp,
	}

	if strings.HasSuffix(string(ev.Type), ".deleted") {
		w.processed.Add(1)
		slog.InfoContext(ctx, "Ledger record deleted", attrs...)
		return nil
	}

	var err error
	switch {
	case strings.HasPrefix(string(ev.Type), "expense."):
		err = w.auditExpense(ctx, ev, attrs)
	case strings.HasPrefix(string(ev.Type), "category."):
		err = w.auditCategory(ctx, ev, attrs)
	default:
		err = fmt.Errorf("unhandled event type %q", ev.Type)
	}

	switch {
	case err == nil:
		w.processed.Add(1)
		return nil
	case core.IsNotFound(err):
		w.stale.Add(1)
		slog.InfoContext(ctx, "Ledger record gone before event was handled", attrs...)
		return nil
	default:
		w.failed.Add(1)
		slog.ErrorContext(ctx, "Failed to handle ledger event", append(attrs, log.FieldError, err)...)
		return err
	}
}

func (w *EventWorker) auditExpense(ctx context.Context, ev *amqp.LedgerEvent, attrs []any) error {
	expense, err := w.reader.GetExpense(ctx, ev.UserID, ev.EntityID)
	if err != nil {
		return err
	}

	attrs = append(attrs, "amount", expense.Amount.StringFixed(2))
	if expense.Category != nil {
		attrs = append(attrs, "category", expense.Category.Name)
	}
	if expense.Description != nil {
		attrs = append(attrs, "description", *expense.Description)
	}
	slog.InfoContext(ctx, "Ledger expense changed", attrs...)
	return nil
}

func (w *EventWorker) auditCategory(ctx context.Context, ev *amqp.LedgerEvent, attrs []any) error {
	category, err := w.reader.GetCategory(ctx, ev.UserID, ev.EntityID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Ledger category changed", append(attrs, "name", category.Name, "color", category.Color)...)
	return nil
}

func (w *EventWorker) Stats() Stats {
	return Stats{
		Processed: w.processed.Load(),
		Stale:     w.stale.Load(),
		Failed:    w.failed.Load(),
	}
}

// LogStats writes the counters; the events binary calls it on a ticker.
func (w *EventWorker) LogStats(ctx context.Context) {
	s := w.Stats()
	slog.InfoContext(ctx, "Event worker stats",
		"processed", s.Processed,
		"stale", s.Stale,
		"failed", s.Failed)
}
