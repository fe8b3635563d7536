package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/railagent/railagent/internal/domain"
	"github.com/railagent/railagent/internal/observability"
	"go.uber.org/zap"
)

// Headers carried on every delivery.
const (
	HeaderSignature = "X-Railagent-Signature"
	HeaderTimestamp = "X-Railagent-Timestamp"
	HeaderEvent     = "X-Railagent-Event"
)

var defaultRetryDelays = []time.Duration{time.Second, 3 * time.Second, 7 * time.Second}

// Target is a registered delivery endpoint. Targets are never mutated after
// registration.
type Target struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// deliveryAttempt is one queued delivery. It lives only in process memory;
// the queue is lost on restart.
type deliveryAttempt struct {
	target        Target
	event         domain.Event
	attempt       int
	nextAttemptAt time.Time
}

// Dispatcher owns the target registry and the in-memory delivery queue. One
// dispatcher instance serves the whole process; its drain loop runs on a
// fixed polling interval and retries failed deliveries with an escalating
// delay ladder, after which items are dropped.
type Dispatcher struct {
	secret       []byte
	client       *http.Client
	logger       *zap.Logger
	retryDelays  []time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	targets []Target
	queue   []deliveryAttempt

	stopCh chan struct{}
}

// Option tweaks dispatcher behavior, mainly for tests.
type Option func(*Dispatcher)

func WithRetryDelays(delays []time.Duration) Option {
	return func(d *Dispatcher) { d.retryDelays = delays }
}

func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.pollInterval = interval }
}

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

func NewDispatcher(secret string, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		secret:       []byte(secret),
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		retryDelays:  defaultRetryDelays,
		pollInterval: 500 * time.Millisecond,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterTarget adds a delivery endpoint, idempotent by URL: re-registering
// a known URL returns the existing target unchanged.
func (d *Dispatcher) RegisterTarget(url string) Target {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, target := range d.targets {
		if target.URL == url {
			return target
		}
	}

	target := Target{
		ID:        "wh_" + uuid.NewString()[:8],
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	d.targets = append(d.targets, target)
	return target
}

// Targets returns a copy of the current registry.
func (d *Dispatcher) Targets() []Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Target, len(d.targets))
	copy(out, d.targets)
	return out
}

// Enqueue fans the event out to every target registered at this instant.
// Targets registered later do not retroactively receive it.
func (d *Dispatcher) Enqueue(event domain.Event) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, target := range d.targets {
		d.queue = append(d.queue, deliveryAttempt{
			target:        target,
			event:         event,
			attempt:       0,
			nextAttemptAt: now,
		})
	}
}

// QueueDepth reports the number of pending deliveries.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run starts the drain loop and returns a stop handle.
func (d *Dispatcher) Run(ctx context.Context) func() {
	go d.start(ctx)
	return d.stop
}

func (d *Dispatcher) start(ctx context.Context) {
	d.logger.Info("webhook dispatcher started", zap.Duration("poll_interval", d.pollInterval))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("webhook dispatcher stopping", zap.String("reason", "context canceled"))
			return
		case <-d.stopCh:
			d.logger.Info("webhook dispatcher stopping", zap.String("reason", "stop requested"))
			return
		case <-ticker.C:
			d.ProcessOnce(ctx)
		}
	}
}

func (d *Dispatcher) stop() {
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
}

// ProcessOnce drains every due queue item once: deliver, and on failure
// with remaining retry budget re-enqueue at now + delay[attempt]. Items
// that exhaust the budget are dropped.
func (d *Dispatcher) ProcessOnce(ctx context.Context) {
	now := time.Now()

	d.mu.Lock()
	var due, pending []deliveryAttempt
	for _, item := range d.queue {
		if item.nextAttemptAt.After(now) {
			pending = append(pending, item)
		} else {
			due = append(due, item)
		}
	}
	d.queue = pending
	d.mu.Unlock()

	for _, item := range due {
		if d.deliver(ctx, item) {
			observability.IncrementWebhookDelivery("delivered")
			continue
		}

		if item.attempt < len(d.retryDelays) {
			delay := d.retryDelays[item.attempt]
			item.attempt++
			item.nextAttemptAt = time.Now().Add(delay)

			d.mu.Lock()
			d.queue = append(d.queue, item)
			d.mu.Unlock()

			observability.IncrementWebhookDelivery("retry_scheduled")
			continue
		}

		observability.IncrementWebhookDelivery("exhausted")
		d.logger.Warn("webhook delivery exhausted",
			zap.String("target_id", item.target.ID),
			zap.String("event_id", item.event.ID),
			zap.Int("attempts", item.attempt+1),
		)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, item deliveryAttempt) bool {
	payload, err := json.Marshal(item.event)
	if err != nil {
		d.logger.Error("webhook payload encode failed", zap.String("event_id", item.event.ID), zap.Error(err))
		return true // undeliverable forever, do not retry
	}

	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, item.target.URL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Warn("webhook request build failed", zap.String("url", item.target.URL), zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(d.secret, payload, ts))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderEvent, string(item.event.Type))

	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
