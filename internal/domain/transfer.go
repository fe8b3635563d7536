package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle state of a transfer.
type TransferStatus string

const (
	StatusSubmitted TransferStatus = "submitted"
	StatusSettled   TransferStatus = "settled"
	StatusFailed    TransferStatus = "failed"
)

// ProviderMode distinguishes the deterministic mock backend from the live one.
type ProviderMode string

const (
	ModeMock ProviderMode = "mock"
	ModeLive ProviderMode = "live"
)

var (
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrNoPendingSettlement = errors.New("transfer has no pending settlement")
)

// StateChange is one append-only entry of a transfer's status history.
// Insertion order is temporal order.
type StateChange struct {
	Status    TransferStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	TxHash    string         `json:"tx_hash,omitempty"`
}

// Transfer is the persisted transfer entity. The current Status always
// mirrors the last StateHistory entry; both are written in one transaction.
type Transfer struct {
	ID             string          `json:"id"`
	QuoteID        string          `json:"quote_id"`
	Recipient      string          `json:"recipient"`
	Amount         decimal.Decimal `json:"amount"`
	FromToken      string          `json:"from_token"`
	ToToken        string          `json:"to_token"`
	ProviderName   string          `json:"provider_name"`
	ProviderMode   ProviderMode    `json:"provider_mode"`
	Status         TransferStatus  `json:"status"`
	TxHash         string          `json:"tx_hash,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	StateHistory   []StateChange   `json:"state_history"`
}

// Corridor returns the normalized "SRC->DST" key for a currency pair.
func Corridor(fromToken, toToken string) string {
	return strings.ToUpper(strings.TrimSpace(fromToken)) + "->" + strings.ToUpper(strings.TrimSpace(toToken))
}

// AuditRecord is one row of the bounded, newest-first audit listing.
type AuditRecord struct {
	ID           string          `json:"id"`
	QuoteID      string          `json:"quote_id"`
	FromToken    string          `json:"from_token"`
	ToToken      string          `json:"to_token"`
	Amount       decimal.Decimal `json:"amount"`
	Status       TransferStatus  `json:"status"`
	ProviderMode ProviderMode    `json:"provider_mode"`
	TxHash       string          `json:"tx_hash,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
