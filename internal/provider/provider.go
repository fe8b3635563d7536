package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/railagent/railagent/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedCorridor is returned when the live backend is asked to
	// quote a corridor it cannot serve.
	ErrUnsupportedCorridor = errors.New("corridor not supported by live provider")
)

// QuoteRequest asks a provider for an indicative rate on a corridor.
type QuoteRequest struct {
	FromToken string
	ToToken   string
	Amount    decimal.Decimal
}

// QuoteResult is an indicative quote. EstimatedReceive and FeeUSD are
// formatted strings to keep the wire shape stable across backends.
type QuoteResult struct {
	Provider         string              `json:"provider"`
	Mode             domain.ProviderMode `json:"mode"`
	EstimatedRate    decimal.Decimal     `json:"estimated_rate"`
	EstimatedReceive string              `json:"estimated_receive"`
	FeeUSD           string              `json:"fee_usd"`
	RouteHint        string              `json:"route_hint"`
}

// ExecuteRequest submits a transfer for execution. The idempotency key is
// part of the request on purpose: both backends derive the transfer id from
// it, so replays of the same logical request yield the same id.
type ExecuteRequest struct {
	QuoteID        string
	Recipient      string
	Amount         decimal.Decimal
	FromToken      string
	ToToken        string
	IdempotencyKey string
}

// ExecuteResult reports the provider-assigned identifiers for a submission.
type ExecuteResult struct {
	Provider   string
	Mode       domain.ProviderMode
	TransferID string
	Status     domain.TransferStatus
	TxHash     string
}

// QuoteProvider quotes corridors.
type QuoteProvider interface {
	Name() string
	Mode() domain.ProviderMode
	Quote(ctx context.Context, req QuoteRequest) (QuoteResult, error)
}

// ExecutionProvider executes transfers.
type ExecutionProvider interface {
	Name() string
	Mode() domain.ProviderMode
	ExecuteTransfer(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// NotConfiguredError reports every missing configuration key at once so
// operators see the complete remediation list in a single failure.
type NotConfiguredError struct {
	MissingKeys []string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("live provider is not configured, missing: %s", strings.Join(e.MissingKeys, ", "))
}
