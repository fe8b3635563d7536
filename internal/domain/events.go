package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a transfer lifecycle notification.
type EventType string

const (
	EventTransferSubmitted EventType = "transfer.submitted"
	EventTransferSettled   EventType = "transfer.settled"
	EventTransferFailed    EventType = "transfer.failed"
)

// TransferEventData echoes the transfer identifiers subscribers need to
// reconcile state. Consumers must not assume arrival order; transfer_id plus
// the event type is the reconciliation key.
type TransferEventData struct {
	TransferID   string          `json:"transfer_id"`
	Status       TransferStatus  `json:"status"`
	Corridor     string          `json:"corridor"`
	Amount       decimal.Decimal `json:"amount"`
	Recipient    string          `json:"recipient,omitempty"`
	TxHash       string          `json:"tx_hash,omitempty"`
	ProviderMode ProviderMode    `json:"provider_mode"`
}

// Event is an immutable webhook notification. One event fans out to every
// target registered at enqueue time.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      TransferEventData `json:"data"`
}

// NewTransferEvent builds an event for a transfer state transition.
func NewTransferEvent(eventType EventType, t *Transfer) Event {
	return Event{
		ID:        "evt_" + uuid.NewString()[:8],
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data: TransferEventData{
			TransferID:   t.ID,
			Status:       t.Status,
			Corridor:     Corridor(t.FromToken, t.ToToken),
			Amount:       t.Amount,
			Recipient:    t.Recipient,
			TxHash:       t.TxHash,
			ProviderMode: t.ProviderMode,
		},
	}
}
