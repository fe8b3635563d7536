package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/railagent/railagent/internal/domain"
	"github.com/railagent/railagent/internal/policy"
	"github.com/railagent/railagent/internal/provider"
	"github.com/railagent/railagent/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu        sync.Mutex
	transfers map[string]*domain.Transfer
	byKey     map[string]string
	snapshots map[string]any
	due       []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transfers: map[string]*domain.Transfer{},
		byKey:     map[string]string{},
		snapshots: map[string]any{},
	}
}

func (f *fakeStore) CreateTransfer(_ context.Context, params repository.CreateTransferParams) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	t := &domain.Transfer{
		ID:             params.ID,
		QuoteID:        params.QuoteID,
		Recipient:      params.Recipient,
		Amount:         params.Amount,
		FromToken:      params.FromToken,
		ToToken:        params.ToToken,
		ProviderName:   params.ProviderName,
		ProviderMode:   params.ProviderMode,
		Status:         domain.StatusSubmitted,
		TxHash:         params.TxHash,
		CreatedAt:      now,
		UpdatedAt:      now,
		IdempotencyKey: params.IdempotencyKey,
		StateHistory: []domain.StateChange{
			{Status: domain.StatusSubmitted, Timestamp: now, TxHash: params.TxHash},
		},
	}
	f.transfers[t.ID] = t
	if params.IdempotencyKey != "" {
		f.byKey[params.IdempotencyKey] = t.ID
	}
	return t, nil
}

func (f *fakeStore) GetTransfer(_ context.Context, id string) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return t, nil
}

func (f *fakeStore) GetTransferByIdempotencyKey(_ context.Context, key string) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byKey[key]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return f.transfers[id], nil
}

func (f *fakeStore) AppendStatus(_ context.Context, id string, status domain.TransferStatus, txHash string) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	t.Status = status
	if txHash != "" {
		t.TxHash = txHash
	}
	t.UpdatedAt = time.Now().UTC()
	t.StateHistory = append(t.StateHistory, domain.StateChange{Status: status, Timestamp: t.UpdatedAt, TxHash: t.TxHash})
	return t, nil
}

func (f *fakeStore) SettleSubmitted(_ context.Context, id string) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok || t.Status != domain.StatusSubmitted {
		return nil, domain.ErrNoPendingSettlement
	}
	t.Status = domain.StatusSettled
	t.UpdatedAt = time.Now().UTC()
	t.StateHistory = append(t.StateHistory, domain.StateChange{Status: domain.StatusSettled, Timestamp: t.UpdatedAt, TxHash: t.TxHash})
	return t, nil
}

func (f *fakeStore) ListSettleDue(_ context.Context, limit int32) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int32(len(f.due)) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeStore) ListAudit(_ context.Context, limit int32) ([]domain.AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]domain.AuditRecord, 0, len(f.transfers))
	for _, t := range f.transfers {
		if int32(len(records)) == limit {
			break
		}
		records = append(records, domain.AuditRecord{ID: t.ID, Status: t.Status})
	}
	return records, nil
}

func (f *fakeStore) SaveQuoteSnapshot(_ context.Context, quoteID, _, _ string, _ decimal.Decimal, payload any, _ domain.ProviderMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[quoteID] = payload
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCache() *memCache { return &memCache{entries: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[key]
	return id, ok
}

func (c *memCache) Put(_ context.Context, key, transferID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = transferID
}

type stubExecutor struct {
	calls int
	err   error
}

func (s *stubExecutor) Name() string              { return "stub" }
func (s *stubExecutor) Mode() domain.ProviderMode { return domain.ModeMock }

func (s *stubExecutor) ExecuteTransfer(_ context.Context, req provider.ExecuteRequest) (provider.ExecuteResult, error) {
	s.calls++
	if s.err != nil {
		return provider.ExecuteResult{}, s.err
	}
	return provider.ExecuteResult{
		Provider:   "stub",
		Mode:       domain.ModeMock,
		TransferID: "tr_" + req.IdempotencyKey,
		Status:     domain.StatusSubmitted,
		TxHash:     "0xstub",
	}, nil
}

type stubQuoter struct {
	err error
}

func (s *stubQuoter) Name() string              { return "stub" }
func (s *stubQuoter) Mode() domain.ProviderMode { return domain.ModeMock }

func (s *stubQuoter) Quote(_ context.Context, req provider.QuoteRequest) (provider.QuoteResult, error) {
	if s.err != nil {
		return provider.QuoteResult{}, s.err
	}
	return provider.QuoteResult{
		Provider:      "stub",
		Mode:          domain.ModeMock,
		EstimatedRate: decimal.NewFromFloat(56.1),
	}, nil
}

type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureSink) Enqueue(event domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) all() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

func testPolicyConfig() policy.Config {
	return policy.Config{
		MaxAmount: decimal.NewFromInt(1000),
		AllowedCorridors: map[string]struct{}{
			"USD->PHP": {},
			"EUR->NGN": {},
		},
		RequireRecipient:      true,
		RequireIdempotencyKey: true,
	}
}

type serviceFixture struct {
	svc      *TransferService
	store    *fakeStore
	cache    *memCache
	executor *stubExecutor
	sink     *captureSink
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newFakeStore()
	cache := newMemCache()
	executor := &stubExecutor{}
	sink := &captureSink{}
	svc := NewTransferService(store, cache, &stubQuoter{}, executor, sink, testPolicyConfig(), time.Minute, zap.NewNop())
	return &serviceFixture{svc: svc, store: store, cache: cache, executor: executor, sink: sink}
}

func amountPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func validSubmitRequest() SubmitRequest {
	return SubmitRequest{
		QuoteID:        "qt_abc",
		Recipient:      "@maria",
		Amount:         amountPtr(150),
		FromToken:      "USD",
		ToToken:        "PHP",
		IdempotencyKey: "idem_1234567890",
	}
}

func TestSubmitStoresTransferAndEmitsEvent(t *testing.T) {
	fx := newServiceFixture(t)

	result, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)
	require.False(t, result.Replayed)
	require.Equal(t, domain.StatusSubmitted, result.Transfer.Status)
	require.Equal(t, "tr_idem_1234567890", result.Transfer.ID)
	require.Len(t, result.Transfer.StateHistory, 1)

	events := fx.sink.all()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventTransferSubmitted, events[0].Type)
	require.Equal(t, result.Transfer.ID, events[0].Data.TransferID)

	cached, ok := fx.cache.Get(context.Background(), "idem_1234567890")
	require.True(t, ok)
	require.Equal(t, result.Transfer.ID, cached)
}

func TestSubmitBlockedByPolicyReturnsAllViolations(t *testing.T) {
	fx := newServiceFixture(t)

	req := validSubmitRequest()
	req.Amount = amountPtr(5000)
	req.ToToken = "JPY"

	_, err := fx.svc.Submit(context.Background(), req)

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	codes := make([]string, 0, len(policyErr.Decision.Violations))
	for _, v := range policyErr.Decision.Violations {
		codes = append(codes, v.Code)
	}
	require.Contains(t, codes, policy.CodeMaxAmountExceeded)
	require.Contains(t, codes, policy.CodeCorridorNotAllowed)

	require.Zero(t, fx.executor.calls, "provider must not run for blocked transfers")
	require.Empty(t, fx.sink.all())
}

func TestSubmitReplaysFromStoreOnDuplicateKey(t *testing.T) {
	fx := newServiceFixture(t)

	first, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	second, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Transfer.ID, second.Transfer.ID)
	require.Equal(t, 1, fx.executor.calls, "replays must not re-execute")
	require.Len(t, fx.sink.all(), 1, "replays must not re-emit events")
}

func TestSubmitReplaysFromCacheBeforeStore(t *testing.T) {
	fx := newServiceFixture(t)

	first, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	// Drop the store's key mapping so only the cache can resolve the replay.
	fx.store.mu.Lock()
	delete(fx.store.byKey, "idem_1234567890")
	fx.store.mu.Unlock()

	second, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Transfer.ID, second.Transfer.ID)
}

func TestSubmitProviderErrorLeavesNoRecord(t *testing.T) {
	fx := newServiceFixture(t)
	fx.executor.err = errors.New("chain unavailable")

	_, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "chain unavailable")

	require.Empty(t, fx.store.transfers)
	require.Empty(t, fx.sink.all())
	_, ok := fx.cache.Get(context.Background(), "idem_1234567890")
	require.False(t, ok)
}

func TestProcessSettlementsSettlesDueTransfers(t *testing.T) {
	fx := newServiceFixture(t)

	result, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	fx.store.mu.Lock()
	fx.store.due = []string{result.Transfer.ID}
	fx.store.mu.Unlock()

	settled, err := fx.svc.ProcessSettlements(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, settled)

	stored, err := fx.svc.GetTransfer(context.Background(), result.Transfer.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSettled, stored.Status)

	events := fx.sink.all()
	require.Len(t, events, 2)
	require.Equal(t, domain.EventTransferSettled, events[1].Type)
}

func TestProcessSettlementsSkipsAlreadySettled(t *testing.T) {
	fx := newServiceFixture(t)

	result, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	_, err = fx.store.SettleSubmitted(context.Background(), result.Transfer.ID)
	require.NoError(t, err)

	fx.store.mu.Lock()
	fx.store.due = []string{result.Transfer.ID}
	fx.store.mu.Unlock()

	settled, err := fx.svc.ProcessSettlements(context.Background(), 10)
	require.NoError(t, err)
	require.Zero(t, settled)
}

func TestFailAppendsStatusAndEmitsEvent(t *testing.T) {
	fx := newServiceFixture(t)

	result, err := fx.svc.Submit(context.Background(), validSubmitRequest())
	require.NoError(t, err)

	failed, err := fx.svc.Fail(context.Background(), result.Transfer.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, failed.Status)

	events := fx.sink.all()
	require.Len(t, events, 2)
	require.Equal(t, domain.EventTransferFailed, events[1].Type)
}

func TestQuoteSavesSnapshotWithStableID(t *testing.T) {
	fx := newServiceFixture(t)

	first, err := fx.svc.Quote(context.Background(), "USD", "PHP", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NotEmpty(t, first.QuoteID)
	require.Contains(t, fx.store.snapshots, first.QuoteID)

	second, err := fx.svc.Quote(context.Background(), "USD", "PHP", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, first.QuoteID, second.QuoteID)
}

func TestQuoteProviderErrorPropagates(t *testing.T) {
	store := newFakeStore()
	svc := NewTransferService(store, newMemCache(), &stubQuoter{err: provider.ErrUnsupportedCorridor},
		&stubExecutor{}, &captureSink{}, testPolicyConfig(), time.Minute, zap.NewNop())

	_, err := svc.Quote(context.Background(), "USD", "JPY", decimal.NewFromInt(100))
	require.ErrorIs(t, err, provider.ErrUnsupportedCorridor)
}
