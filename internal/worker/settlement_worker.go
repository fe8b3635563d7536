package worker

import (
	"context"
	"sync"
	"time"

	"github.com/railagent/railagent/internal/observability"
	"github.com/railagent/railagent/internal/service"
	"go.uber.org/zap"
)

// SettlementWorker settles submitted transfers once their settlement time
// has passed. It polls the store at regular intervals; the settle query is
// guarded on status, so concurrent instances never double-settle.
type SettlementWorker struct {
	svc          *service.TransferService
	pollInterval time.Duration
	batchSize    int32
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// NewSettlementWorker constructs a worker with a one second default poll.
func NewSettlementWorker(svc *service.TransferService) *SettlementWorker {
	return &SettlementWorker{
		svc:          svc,
		pollInterval: time.Second,
		batchSize:    25,
		stopCh:       make(chan struct{}),
	}
}

// WithPollInterval updates the poll interval.
func (w *SettlementWorker) WithPollInterval(interval time.Duration) *SettlementWorker {
	if interval > 0 {
		w.pollInterval = interval
	}
	return w
}

// WithBatchSize updates the maximum transfers settled per pass.
func (w *SettlementWorker) WithBatchSize(size int32) *SettlementWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and settles due transfers at the configured interval.
func (w *SettlementWorker) Start(ctx context.Context) {
	zap.L().Info("settlement worker starting",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int32("batch_size", w.batchSize),
	)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("settlement worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("settlement worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *SettlementWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SettlementWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// ProcessOnce settles a single batch immediately. Useful for tests and
// manual triggering.
func (w *SettlementWorker) ProcessOnce(ctx context.Context) (int, error) {
	return w.svc.ProcessSettlements(ctx, w.batchSize)
}

func (w *SettlementWorker) runOnce(ctx context.Context) {
	settled, err := w.svc.ProcessSettlements(ctx, w.batchSize)
	if err != nil {
		observability.IncrementWorkerRun("settlement", "failed")
		zap.L().Error("settlement run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("settlement", "success")
	if settled > 0 {
		zap.L().Info("transfers settled", zap.Int("count", settled))
	}
}
