package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/fintra/credvault/logger"
)

// record is one fixed-window attempt counter. Records expire out of the
// cache on their own once the window has elapsed; windowResetAt is still
// checked on read because ristretto TTLs are advisory, not exact.
type record struct {
	count         int
	windowResetAt time.Time
}

// Config holds configuration for the limiter
type Config struct {
	// CacheMaxCost is the maximum cost of the record cache (in bytes, roughly)
	CacheMaxCost int64

	// CacheNumCounters is the number of keys to track frequency
	CacheNumCounters int64

	// EnableMetrics enables collection of operational metrics
	EnableMetrics bool
}

// DefaultConfig returns a production-ready default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheMaxCost:     10 << 20, // 10 MB
		CacheNumCounters: 1e6,      // 1 million
		EnableMetrics:    true,
	}
}

// Metrics tracks operational statistics
type Metrics struct {
	mu      sync.RWMutex
	Allowed int64
	Denied  int64
	Resets  int64
	Windows int64
}

func (m *Metrics) IncrementAllowed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Allowed++
}

func (m *Metrics) IncrementDenied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Denied++
}

func (m *Metrics) IncrementResets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets++
}

func (m *Metrics) IncrementWindows() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Windows++
}

func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"allowed": m.Allowed,
		"denied":  m.Denied,
		"resets":  m.Resets,
		"windows": m.Windows,
	}
}

// Limiter is a process-local fixed-window attempt counter keyed by hashed
// caller identifier. It is a brute-force slow-down, not a durable defense:
// state is in memory only and resets on restart.
type Limiter struct {
	mu      sync.Mutex
	cache   *ristretto.Cache[string, *record]
	hasher  *hasher
	config  *Config
	logger  logger.Logger
	metrics *Metrics
}

// NewLimiter creates a Limiter backed by a TTL'd record cache.
func NewLimiter(log logger.Logger, config *Config) (*Limiter, error) {
	if config == nil {
		config = DefaultConfig()
	}

	h, err := newHasher()
	if err != nil {
		return nil, err
	}

	l := &Limiter{
		hasher:  h,
		config:  config,
		logger:  log,
		metrics: &Metrics{},
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *record]{
		NumCounters: config.CacheNumCounters,
		MaxCost:     config.CacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	l.cache = cache

	return l, nil
}

// Allow reports whether another attempt is permitted for the identifier
// within the current window. The first attempt of a window always passes and
// starts the window; subsequent attempts pass while the counter is under
// maxAttempts. A denied attempt does not increment the counter, so the
// window denies from attempt maxAttempts+1 until it elapses.
func (l *Limiter) Allow(identifier string, maxAttempts int, window time.Duration) bool {
	key := l.hasher.salt(identifier)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, found := l.cache.Get(key)
	if !found || now.After(rec.windowResetAt) {
		rec = &record{
			count:         1,
			windowResetAt: now.Add(window),
		}
		// Cost is roughly the size of the record plus its key
		l.cache.SetWithTTL(key, rec, 96, window)
		l.cache.Wait()

		if l.config.EnableMetrics {
			l.metrics.IncrementWindows()
			l.metrics.IncrementAllowed()
		}
		return true
	}

	if rec.count < maxAttempts {
		rec.count++
		if l.config.EnableMetrics {
			l.metrics.IncrementAllowed()
		}
		return true
	}

	if l.config.EnableMetrics {
		l.metrics.IncrementDenied()
	}
	l.logger.Warn("attempt limit exceeded",
		logger.String("identifier", key),
		logger.Int("max_attempts", maxAttempts),
		logger.Time("window_reset_at", rec.windowResetAt),
	)
	return false
}

// Reset clears the record for an identifier. Called after a successful
// sensitive operation so legitimate retries are not penalized.
func (l *Limiter) Reset(identifier string) {
	key := l.hasher.salt(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Del(key)
	if l.config.EnableMetrics {
		l.metrics.IncrementResets()
	}
}

// GetMetrics returns a snapshot of current metrics
func (l *Limiter) GetMetrics() map[string]int64 {
	if !l.config.EnableMetrics {
		return nil
	}
	return l.metrics.GetSnapshot()
}

// Close shuts down the limiter and releases its cache.
func (l *Limiter) Close() {
	l.cache.Clear()
	l.cache.Close()
}
