package amqp

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Action says what happened to an entry.
type Action string

const (
	ActionCreated      Action = "created"
	ActionUpdated      Action = "updated"
	ActionDeleted      Action = "deleted"
	ActionMaterialized Action = "materialized"
)

// EntryChangedMessage announces a change to the realized entries. It carries
// ids and the affected years only; consumers read the data they need from
// the store.
type EntryChangedMessage struct {
	MessageID string    `json:"messageId"`
	EntryID   int64     `json:"entryId"`
	Action    Action    `json:"action"`
	Years     []int     `json:"years"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntryChangedMessage builds a message with a fresh id. Years are
// de-duplicated and sorted.
func NewEntryChangedMessage(entryID int64, action Action, years ...int) *EntryChangedMessage {
	ys := slices.Clone(years)
	slices.Sort(ys)
	return &EntryChangedMessage{
		MessageID: uuid.NewString(),
		EntryID:   entryID,
		Action:    action,
		Years:     slices.Compact(ys),
		Timestamp: time.Now().UTC(),
	}
}

func (m *EntryChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntryChangedMessageFromJSON(data []byte) (*EntryChangedMessage, error) {
	var msg EntryChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Years) == 0 {
		return nil, fmt.Errorf("message %s names no years", msg.MessageID)
	}
	return &msg, nil
}
