package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	transferCounter         *prometheus.CounterVec
	policyViolationCounter  *prometheus.CounterVec
	providerFallbackCounter *prometheus.CounterVec
	webhookDeliveryCounter  *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_submissions_total",
			Help: "Transfer submission outcomes",
		}, []string{"outcome"})

		policyViolationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_violations_total",
			Help: "Policy violations by code",
		}, []string{"code"})

		providerFallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_fallback_total",
			Help: "Times the live provider was replaced by the mock backend",
		}, []string{"provider"})

		webhookDeliveryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook delivery attempt outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transferCounter,
			policyViolationCounter,
			providerFallbackCounter,
			webhookDeliveryCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransferSubmission(outcome string) {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues(outcome).Inc()
}

func IncrementPolicyViolation(code string) {
	if policyViolationCounter == nil {
		return
	}
	policyViolationCounter.WithLabelValues(code).Inc()
}

func IncrementProviderFallback(provider string) {
	if providerFallbackCounter == nil {
		return
	}
	providerFallbackCounter.WithLabelValues(provider).Inc()
}

func IncrementWebhookDelivery(result string) {
	if webhookDeliveryCounter == nil {
		return
	}
	webhookDeliveryCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
