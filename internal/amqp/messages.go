package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spese-api/internal/core"
)

// LedgerEvent is the message published after a successful ledger write.
// It carries identifiers only; consumers read the current state themselves.
type LedgerEvent struct {
	Type      core.EventType `json:"type"`
	UserID    int64          `json:"user_id"`
	EntityID  int64          `json:"entity_id"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewLedgerEvent(eventType core.EventType, userID, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      eventType,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes a message and rejects unknown event types.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
