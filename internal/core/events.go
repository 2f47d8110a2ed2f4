package core

// EventType names a ledger change. It doubles as the AMQP routing key.
type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseUpdated  EventType = "expense.updated"
	EventExpenseDeleted  EventType = "expense.deleted"
	EventCategoryCreated EventType = "category.created"
	EventCategoryUpdated EventType = "category.updated"
	EventCategoryDeleted EventType = "category.deleted"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted,
		EventCategoryCreated, EventCategoryUpdated, EventCategoryDeleted:
		return true
	}
	return false
}
