package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeOp says what happened to a record.
type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// RecordChangeMessage announces that an invoice record changed.
// Only the id travels; consumers fetch the current record themselves.
type RecordChangeMessage struct {
	ID        string    `json:"id"`
	Op        ChangeOp  `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(id string, op ChangeOp) *RecordChangeMessage {
	return &RecordChangeMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangeMessageFromJSON decodes and checks a message body.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("record change message without id")
	}
	switch msg.Op {
	case OpUpsert, OpDelete:
	default:
		return nil, fmt.Errorf("unknown record change op %q", msg.Op)
	}
	return &msg, nil
}
