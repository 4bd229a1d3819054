package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/fintra/credvault/logger"
)

// Result is the uniform validity contract: heterogeneous provider failure
// shapes (HTTP status, network error, provider rate-limit message, panics
// from misbehaving clients) all normalize into this one shape.
type Result struct {
	Valid bool
	Error string
}

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	// Timeout bounds a single provider probe, including retries.
	Timeout time.Duration

	// CacheTTL is how long a probe result is reused for an identical
	// (provider, secret) pair.
	CacheTTL time.Duration

	// CacheSize bounds the result cache.
	CacheSize int
}

// DefaultDispatcherConfig returns a production-ready default configuration
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		Timeout:   10 * time.Second,
		CacheTTL:  30 * time.Second,
		CacheSize: 512,
	}
}

// Dispatcher routes validity checks to the registered provider probers and
// guards the outbound calls: per-provider circuit breaker, coalescing of
// identical in-flight probes, and a short-lived result cache.
type Dispatcher struct {
	registry *Registry
	config   *DispatcherConfig
	logger   logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	flight singleflight.Group
	cache  *expirable.LRU[string, Result]
}

// NewDispatcher creates a dispatcher over a prober registry.
func NewDispatcher(registry *Registry, log logger.Logger, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = DefaultDispatcherConfig()
	}

	return &Dispatcher{
		registry: registry,
		config:   config,
		logger:   log,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cache:    expirable.NewLRU[string, Result](config.CacheSize, nil, config.CacheTTL),
	}
}

// TestTokenValidity checks a raw secret against its provider and returns the
// uniform result. It never panics and never returns a raw provider error
// shape; callers always get a Result.
func (d *Dispatcher) TestTokenValidity(ctx context.Context, provider, rawSecret string) Result {
	key := resultKey(provider, rawSecret)

	if cached, ok := d.cache.Get(key); ok {
		d.logger.Trace("validity result served from cache",
			logger.String("provider", provider))
		return cached
	}

	v, _, _ := d.flight.Do(key, func() (interface{}, error) {
		result := d.dispatch(ctx, provider, rawSecret)
		d.cache.Add(key, result)
		return result, nil
	})

	return v.(Result)
}

func (d *Dispatcher) dispatch(ctx context.Context, provider, rawSecret string) Result {
	prober, ok := d.registry.Lookup(provider)
	if !ok {
		return Result{Valid: false, Error: fmt.Sprintf("unknown provider %q", provider)}
	}

	breaker := d.breaker(provider)
	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, d.runProbe(ctx, provider, prober, rawSecret)
	})
	if err == nil {
		return Result{Valid: true}
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return Result{Valid: false, Error: verr.Message}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.logger.Warn("provider circuit open",
			logger.String("provider", provider))
		return Result{Valid: false, Error: fmt.Sprintf("provider %s is temporarily unavailable", provider)}
	case errors.Is(err, context.DeadlineExceeded):
		return Result{Valid: false, Error: fmt.Sprintf("provider %s probe timed out", provider)}
	default:
		d.logger.Error("provider probe failed",
			logger.String("provider", provider),
			logger.Err(err))
		return Result{Valid: false, Error: err.Error()}
	}
}

// runProbe executes one probe under the configured timeout, converting a
// panicking prober into an error so the uniform contract holds.
func (d *Dispatcher) runProbe(ctx context.Context, provider string, prober Prober, rawSecret string) (err error) {
	probeCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("provider probe panicked",
				logger.String("provider", provider),
				logger.Any("panic", r))
			err = fmt.Errorf("provider %s probe failed unexpectedly", provider)
		}
	}()

	probeErr := prober.Probe(probeCtx, rawSecret)
	if probeErr != nil && probeCtx.Err() != nil {
		return fmt.Errorf("provider %s probe timed out: %w", provider, context.DeadlineExceeded)
	}
	return probeErr
}

// breaker returns the circuit breaker for a provider, creating it on first
// use. Validation rejections do not trip the breaker; only infrastructure
// failures count.
func (d *Dispatcher) breaker(provider string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[provider]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    provider,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var verr *ValidationError
			return err == nil || errors.As(err, &verr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn("provider circuit state changed",
				logger.String("provider", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	d.breakers[provider] = cb
	return cb
}

func resultKey(provider, rawSecret string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + rawSecret))
	return provider + ":" + hex.EncodeToString(sum[:])
}
