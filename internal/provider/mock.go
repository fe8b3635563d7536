package provider

import (
	"context"
	"strings"

	"github.com/railagent/railagent/internal/domain"
	"github.com/shopspring/decimal"
)

const mockProviderName = "mock-mento"

// mockRates is a small static lookup keyed by corridor. Unknown corridors
// fall back to a 1:1 rate.
var mockRates = map[string]decimal.Decimal{
	"USD->PHP": decimal.NewFromFloat(56.1),
	"EUR->NGN": decimal.NewFromInt(1682),
	"GBP->KES": decimal.NewFromFloat(163.7),
}

// MockProvider is a deterministic settlement backend. The transfer id is
// derived from the idempotency key, so replaying the same request produces
// the same id and upstream replay detection keeps working.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() string { return mockProviderName }

func (p *MockProvider) Mode() domain.ProviderMode { return domain.ModeMock }

func (p *MockProvider) Quote(ctx context.Context, req QuoteRequest) (QuoteResult, error) {
	rate, ok := mockRates[domain.Corridor(req.FromToken, req.ToToken)]
	if !ok {
		rate = decimal.NewFromInt(1)
	}

	return QuoteResult{
		Provider:         p.Name(),
		Mode:             p.Mode(),
		EstimatedRate:    rate,
		EstimatedReceive: req.Amount.Mul(rate).StringFixed(6),
		FeeUSD:           "0.12",
		RouteHint:        "celo->mento->destination",
	}, nil
}

func (p *MockProvider) ExecuteTransfer(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	key := req.IdempotencyKey
	if len(key) > 10 {
		key = key[:10]
	}

	return ExecuteResult{
		Provider:   p.Name(),
		Mode:       p.Mode(),
		TransferID: "tr_" + key,
		Status:     domain.StatusSubmitted,
		TxHash:     "0x" + strings.Repeat("ab", 32),
	}, nil
}
