package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	TypeCategorizeJob    MessageType = "categorize_job"
	TypeTransactionEvent MessageType = "transaction_event"
)

// CategorizeJobMessage asks the worker to run a bulk categorization. An empty
// TransactionIDs list means every uncategorized transaction.
type CategorizeJobMessage struct {
	JobID          string   `json:"job_id"`
	TransactionIDs []string `json:"transaction_ids,omitempty"`
}

type TransactionEvent string

const (
	EventCreated TransactionEvent = "created"
	EventUpdated TransactionEvent = "updated"
	EventDeleted TransactionEvent = "deleted"
)

// TransactionEventMessage carries only the ID; consumers read the row back
// from the store.
type TransactionEventMessage struct {
	TransactionID string           `json:"transaction_id"`
	Event         TransactionEvent `json:"event"`
}

// Envelope is the body of every message on the queue. Exactly one payload
// field is set, matching Type.
type Envelope struct {
	Type        MessageType              `json:"type"`
	Timestamp   time.Time                `json:"timestamp"`
	Categorize  *CategorizeJobMessage    `json:"categorize,omitempty"`
	Transaction *TransactionEventMessage `json:"transaction,omitempty"`
}

func NewCategorizeJob(transactionIDs []string) *Envelope {
	return &Envelope{
		Type:      TypeCategorizeJob,
		Timestamp: time.Now(),
		Categorize: &CategorizeJobMessage{
			JobID:          uuid.NewString(),
			TransactionIDs: transactionIDs,
		},
	}
}

func NewTransactionEvent(id string, event TransactionEvent) *Envelope {
	return &Envelope{
		Type:        TypeTransactionEvent,
		Timestamp:   time.Now(),
		Transaction: &TransactionEventMessage{TransactionID: id, Event: event},
	}
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EnvelopeFromJSON decodes and checks that the payload matches the type.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case TypeCategorizeJob:
		if e.Categorize == nil {
			return nil, fmt.Errorf("%s message without payload", e.Type)
		}
	case TypeTransactionEvent:
		if e.Transaction == nil || e.Transaction.TransactionID == "" {
			return nil, fmt.Errorf("%s message without transaction id", e.Type)
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", e.Type)
	}
	return &e, nil
}
