package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoutingEntriesChanged is the routing key of EntriesChangedMessage.
const RoutingEntriesChanged = "entries.changed"

// EntriesChangedMessage announces that the stored entry set was replaced.
// Consumers reload the entries themselves; the message only carries the new
// count and where the change came from.
type EntriesChangedMessage struct {
	Count     int       `json:"count"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntriesChangedMessage creates a change notification stamped with the current time
func NewEntriesChangedMessage(count int, source string) *EntriesChangedMessage {
	return &EntriesChangedMessage{
		Count:     count,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntriesChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntriesChangedMessageFromJSON creates a message from JSON bytes
func EntriesChangedMessageFromJSON(data []byte) (*EntriesChangedMessage, error) {
	var msg EntriesChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Count < 0 {
		return nil, fmt.Errorf("negative entry count %d", msg.Count)
	}
	return &msg, nil
}
