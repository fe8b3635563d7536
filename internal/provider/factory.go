package provider

import (
	"errors"

	"github.com/railagent/railagent/internal/observability"
	"go.uber.org/zap"
)

// Config selects and configures the settlement backend.
type Config struct {
	Mode       string // "mock" or "live"
	RPCURL     string
	ChainID    int64
	PrivateKey string
}

// Providers bundles the two capabilities plus the fallback reason recorded
// when live mode was requested but unusable.
type Providers struct {
	Quote          QuoteProvider
	Execution      ExecutionProvider
	FallbackReason string
}

// NewProviders builds the configured backend. Live-mode misconfiguration is
// an operational degrade-gracefully path, not an error: the mock backend is
// substituted and the reason recorded for the caller.
func NewProviders(cfg Config, logger *zap.Logger) Providers {
	if cfg.Mode != "live" {
		mock := NewMockProvider()
		return Providers{Quote: mock, Execution: mock}
	}

	live := NewLiveProvider(LiveConfig{RPCURL: cfg.RPCURL, ChainID: cfg.ChainID, PrivateKey: cfg.PrivateKey})
	if err := live.Validate(); err != nil {
		if logger != nil {
			logger.Warn("live provider unusable, falling back to mock", zap.Error(err))
		}
		observability.IncrementProviderFallback(liveProviderName)
		mock := NewMockProvider()
		return Providers{Quote: mock, Execution: mock, FallbackReason: err.Error()}
	}

	return Providers{Quote: live, Execution: live}
}

// NewProvidersStrict is the no-fallback variant: a live backend that fails
// validation is a hard error.
func NewProvidersStrict(cfg Config) (Providers, error) {
	if cfg.Mode != "live" {
		mock := NewMockProvider()
		return Providers{Quote: mock, Execution: mock}, nil
	}

	live := NewLiveProvider(LiveConfig{RPCURL: cfg.RPCURL, ChainID: cfg.ChainID, PrivateKey: cfg.PrivateKey})
	if err := live.Validate(); err != nil {
		var notConfigured *NotConfiguredError
		if errors.As(err, &notConfigured) {
			return Providers{}, notConfigured
		}
		return Providers{}, err
	}

	return Providers{Quote: live, Execution: live}, nil
}
