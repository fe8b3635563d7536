package service

import (
	"context"

	"github.com/railagent/railagent/internal/domain"
	"github.com/railagent/railagent/internal/repository"
	"github.com/shopspring/decimal"
)

// TransferStore defines the minimal persistence contract required by the
// transfer service.
type TransferStore interface {
	CreateTransfer(ctx context.Context, params repository.CreateTransferParams) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
	GetTransferByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error)
	AppendStatus(ctx context.Context, id string, status domain.TransferStatus, txHash string) (*domain.Transfer, error)
	SettleSubmitted(ctx context.Context, id string) (*domain.Transfer, error)
	ListSettleDue(ctx context.Context, limit int32) ([]string, error)
	ListAudit(ctx context.Context, limit int32) ([]domain.AuditRecord, error)
	SaveQuoteSnapshot(ctx context.Context, quoteID, fromToken, toToken string, amount decimal.Decimal, payload any, mode domain.ProviderMode) error
}

// EventSink receives transfer lifecycle events for webhook fan-out.
type EventSink interface {
	Enqueue(event domain.Event)
}

// IdempotencyCache is the fast-path lookup from idempotency key to
// transfer id. Implementations must be safe to call when the backing
// cache is unavailable.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, transferID string)
}
