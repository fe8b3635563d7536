package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railagent/railagent/internal/domain"
	"github.com/railagent/railagent/internal/observability"
	"github.com/railagent/railagent/internal/policy"
	"github.com/railagent/railagent/internal/provider"
	"github.com/railagent/railagent/internal/repository"
	"github.com/railagent/railagent/internal/routes"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PolicyError carries the full decision so callers can surface every
// violation to the requester at once.
type PolicyError struct {
	Decision policy.Decision
}

func (e *PolicyError) Error() string {
	codes := make([]string, 0, len(e.Decision.Violations))
	for _, v := range e.Decision.Violations {
		codes = append(codes, v.Code)
	}
	return fmt.Sprintf("transfer blocked by policy: %s", strings.Join(codes, ", "))
}

// SubmitRequest is a validated-by-policy transfer submission. Amount is a
// pointer so a missing amount reaches the policy engine as absent rather
// than as zero.
type SubmitRequest struct {
	QuoteID         string
	Recipient       string
	Amount          *decimal.Decimal
	FromToken       string
	ToToken         string
	IdempotencyKey  string
	DestinationHint string
}

// SubmitResult reports the stored transfer and whether it was replayed
// from a previous submission with the same idempotency key.
type SubmitResult struct {
	Transfer *domain.Transfer
	Replayed bool
}

// QuoteResult combines the provider's indicative quote with the scored
// corridor routes.
type QuoteResult struct {
	QuoteID  string              `json:"quoteId"`
	Provider provider.QuoteResult `json:"provider"`
	Routes   routes.Quote        `json:"routes"`
}

// TransferService orchestrates policy evaluation, provider execution,
// persistence, and event fan-out for transfer submissions.
type TransferService struct {
	store       TransferStore
	cache       IdempotencyCache
	quotes      provider.QuoteProvider
	executor    provider.ExecutionProvider
	events      EventSink
	policyCfg   policy.Config
	settleDelay time.Duration
	logger      *zap.Logger
}

func NewTransferService(
	store TransferStore,
	cache IdempotencyCache,
	quotes provider.QuoteProvider,
	executor provider.ExecutionProvider,
	events EventSink,
	policyCfg policy.Config,
	settleDelay time.Duration,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		store:       store,
		cache:       cache,
		quotes:      quotes,
		executor:    executor,
		events:      events,
		policyCfg:   policyCfg,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

// Quote produces an indicative quote for a corridor, scores the candidate
// routes, and snapshots the result for later audit of what the sender saw.
func (s *TransferService) Quote(ctx context.Context, fromToken, toToken string, amount decimal.Decimal) (*QuoteResult, error) {
	providerQuote, err := s.quotes.Quote(ctx, provider.QuoteRequest{
		FromToken: fromToken,
		ToToken:   toToken,
		Amount:    amount,
	})
	if err != nil {
		return nil, fmt.Errorf("provider quote: %w", err)
	}

	scored := routes.Score(fromToken, toToken, amount)
	quoteID := routes.QuoteID(fromToken, toToken, amount, scored.BestRoute.Candidate.Route)

	result := &QuoteResult{
		QuoteID:  quoteID,
		Provider: providerQuote,
		Routes:   scored,
	}

	if err := s.store.SaveQuoteSnapshot(ctx, quoteID, fromToken, toToken, amount, result, providerQuote.Mode); err != nil {
		// The quote is still valid for the caller. Losing the snapshot
		// only degrades the audit trail.
		s.logger.Warn("quote snapshot not saved",
			zap.String("quote_id", quoteID),
			zap.Error(err),
		)
	}

	return result, nil
}

// Submit runs the full submission pipeline: policy check, idempotent
// replay lookup, provider execution, and persistence. The stored transfer
// is enqueued as a transfer.submitted event on success.
func (s *TransferService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	decision := policy.Evaluate(policy.Input{
		Amount:          req.Amount,
		FromToken:       req.FromToken,
		ToToken:         req.ToToken,
		Recipient:       req.Recipient,
		IdempotencyKey:  req.IdempotencyKey,
		DestinationHint: req.DestinationHint,
	}, s.policyCfg)
	if !decision.Allowed {
		for _, v := range decision.Violations {
			observability.IncrementPolicyViolation(v.Code)
		}
		observability.IncrementTransferSubmission("policy_blocked")
		return nil, &PolicyError{Decision: decision}
	}

	if req.IdempotencyKey != "" {
		if existing, err := s.lookupReplay(ctx, req.IdempotencyKey); err != nil {
			return nil, err
		} else if existing != nil {
			observability.IncrementTransferSubmission("replayed")
			return &SubmitResult{Transfer: existing, Replayed: true}, nil
		}
	}

	executed, err := s.executor.ExecuteTransfer(ctx, provider.ExecuteRequest{
		QuoteID:        req.QuoteID,
		Recipient:      req.Recipient,
		Amount:         *req.Amount,
		FromToken:      req.FromToken,
		ToToken:        req.ToToken,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		observability.IncrementTransferSubmission("provider_error")
		return nil, fmt.Errorf("execute transfer: %w", err)
	}

	stored, err := s.store.CreateTransfer(ctx, repository.CreateTransferParams{
		ID:             executed.TransferID,
		QuoteID:        req.QuoteID,
		Recipient:      req.Recipient,
		Amount:         *req.Amount,
		FromToken:      req.FromToken,
		ToToken:        req.ToToken,
		ProviderName:   executed.Provider,
		ProviderMode:   executed.Mode,
		TxHash:         executed.TxHash,
		IdempotencyKey: req.IdempotencyKey,
		SettleAfter:    time.Now().UTC().Add(s.settleDelay),
	})
	if err != nil {
		return nil, fmt.Errorf("persist transfer: %w", err)
	}

	if req.IdempotencyKey != "" {
		s.cache.Put(ctx, req.IdempotencyKey, stored.ID)
	}

	s.events.Enqueue(domain.NewTransferEvent(domain.EventTransferSubmitted, stored))
	observability.IncrementTransferSubmission("submitted")

	s.logger.Info("transfer submitted",
		zap.String("transfer_id", stored.ID),
		zap.String("corridor", domain.Corridor(req.FromToken, req.ToToken)),
		zap.String("provider", executed.Provider),
		zap.String("mode", string(executed.Mode)),
	)

	return &SubmitResult{Transfer: stored}, nil
}

// lookupReplay resolves an idempotency key to a previously stored
// transfer, consulting the cache before the database.
func (s *TransferService) lookupReplay(ctx context.Context, key string) (*domain.Transfer, error) {
	if id, ok := s.cache.Get(ctx, key); ok {
		t, err := s.store.GetTransfer(ctx, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrTransferNotFound) {
			return nil, fmt.Errorf("resolve cached idempotency key: %w", err)
		}
		// Stale cache entry. Fall through to the database.
	}

	t, err := s.store.GetTransferByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrTransferNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve idempotency key: %w", err)
	}
	s.cache.Put(ctx, key, t.ID)
	return t, nil
}

// GetTransfer returns a stored transfer with its full state history.
func (s *TransferService) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return s.store.GetTransfer(ctx, id)
}

// ListAudit returns the newest transfers first, bounded by limit.
func (s *TransferService) ListAudit(ctx context.Context, limit int32) ([]domain.AuditRecord, error) {
	return s.store.ListAudit(ctx, limit)
}

// ProcessSettlements settles every submitted transfer whose settlement
// time has passed and enqueues a transfer.settled event for each. The
// returned count is the number of transfers settled in this pass.
func (s *TransferService) ProcessSettlements(ctx context.Context, batchSize int32) (int, error) {
	ids, err := s.store.ListSettleDue(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due settlements: %w", err)
	}

	settled := 0
	for _, id := range ids {
		t, err := s.store.SettleSubmitted(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNoPendingSettlement) {
				// Already settled or failed by a concurrent writer.
				continue
			}
			return settled, fmt.Errorf("settle transfer %s: %w", id, err)
		}
		s.events.Enqueue(domain.NewTransferEvent(domain.EventTransferSettled, t))
		settled++
	}

	return settled, nil
}

// Fail marks a transfer failed and enqueues a transfer.failed event.
func (s *TransferService) Fail(ctx context.Context, id, txHash string) (*domain.Transfer, error) {
	t, err := s.store.AppendStatus(ctx, id, domain.StatusFailed, txHash)
	if err != nil {
		return nil, err
	}
	s.events.Enqueue(domain.NewTransferEvent(domain.EventTransferFailed, t))
	observability.IncrementTransferSubmission("failed")
	return t, nil
}
