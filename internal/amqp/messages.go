package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what changed in the ledger.
type EventType string

const (
	TransactionAdded   EventType = "transaction.added"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
	ImportCommitted    EventType = "import.committed"
	BudgetChanged      EventType = "budget.changed"
	UserDataWiped      EventType = "user.wiped"
	UserRegistered     EventType = "user.registered"
	UserDeleted        EventType = "user.deleted"
	AccountOpened      EventType = "account.opened"
)

// LedgerEvent is published after a mutation commits. It only names the
// affected rows; consumers re-read the store for current state.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	UserID        int64     `json:"user_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	AccountIDs    []int64   `json:"account_ids,omitempty"`
	Imported      int       `json:"imported,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, userID int64, accountIDs ...int64) *LedgerEvent {
	return &LedgerEvent{
		Type:       t,
		UserID:     userID,
		AccountIDs: dedupe(accountIDs),
		Timestamp:  time.Now(),
	}
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes an event and rejects ones without a type or user.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.UserID <= 0 {
		return nil, fmt.Errorf("ledger event missing type or user_id")
	}
	return &msg, nil
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
