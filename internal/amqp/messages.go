package amqp

import (
	"encoding/json"
	"time"

	"shgbook/internal/core"
)

// Routing keys on the ledger exchange.
const (
	RoutingLedgerSaved      = "ledger.saved"
	RoutingActivityAppended = "activity.appended"
)

// LedgerSavedMessage announces that a year ledger was written. It carries no
// ledger data; consumers read the current year from the store.
type LedgerSavedMessage struct {
	GroupID   string    `json:"groupId"`
	Year      int       `json:"year"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSavedMessage(groupID string, year int, reason string) *LedgerSavedMessage {
	return &LedgerSavedMessage{
		GroupID:   groupID,
		Year:      year,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LedgerSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSavedMessageFromJSON(data []byte) (*LedgerSavedMessage, error) {
	var msg LedgerSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := core.ValidateYear(msg.Year); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ActivityMessage mirrors an appended audit record.
type ActivityMessage struct {
	GroupID  string        `json:"groupId"`
	Activity core.Activity `json:"activity"`
}

func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
