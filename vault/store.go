package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/fintra/credvault/crypto"
	"github.com/fintra/credvault/logger"
	"github.com/fintra/credvault/storage"
)

var (
	ErrStoreClosed  = errors.New("token store is closed")
	ErrStorePersist = errors.New("failed to persist token snapshot")
	ErrEmptySecret  = errors.New("secret cannot be empty")

	// ErrGlobalResetDisabled guards the administrative global sweep; it is
	// only enabled through explicit configuration.
	ErrGlobalResetDisabled = errors.New("global corrupted-token reset is disabled")
)

// Config holds configuration for the token store
type Config struct {
	// ClearOnStartup wipes the in-memory table and the durable snapshot
	// when the store opens. This is the designed remedy for systemic
	// corruption, e.g. after a master-secret rotation made every existing
	// envelope permanently undecryptable.
	ClearOnStartup bool

	// AllowGlobalReset enables ResetAllCorruptedTokens. Intended for
	// non-production configurations only.
	AllowGlobalReset bool

	// EnableMetrics enables collection of operational metrics
	EnableMetrics bool
}

// DefaultConfig returns a production-ready default configuration
func DefaultConfig() *Config {
	return &Config{
		EnableMetrics: true,
	}
}

// Metrics tracks operational statistics
type Metrics struct {
	mu               sync.RWMutex
	TokensStored     int64
	TokensResolved   int64
	DecryptFailures  int64
	Quarantines      int64
	SnapshotFailures int64
}

func (m *Metrics) IncrementTokensStored() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokensStored++
}

func (m *Metrics) IncrementTokensResolved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TokensResolved++
}

func (m *Metrics) IncrementDecryptFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecryptFailures++
}

func (m *Metrics) IncrementQuarantines() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quarantines++
}

func (m *Metrics) IncrementSnapshotFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SnapshotFailures++
}

func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"tokens_stored":     m.TokensStored,
		"tokens_resolved":   m.TokensResolved,
		"decrypt_failures":  m.DecryptFailures,
		"quarantines":       m.Quarantines,
		"snapshot_failures": m.SnapshotFailures,
	}
}

// TokenStore is the per-user, per-provider credential table. Every secret is
// encrypted through the cipher engine before it enters the table and the
// whole table is written through to the storage backend after every
// mutation.
//
// All mutations run under one store-wide mutex, which both upholds the
// single-active-token invariant for a (user, provider) pair and serializes
// snapshot writes so a later write can never be overtaken by an earlier one.
type TokenStore struct {
	mu      sync.RWMutex
	tokens  map[string][]*StoredToken
	engine  *crypto.Engine
	backend storage.Backend
	config  *Config
	logger  logger.Logger
	metrics *Metrics
	closed  bool
}

// NewTokenStore opens the store: loads the existing snapshot from the
// backend, or starts empty when the snapshot is missing or unreadable. A
// corrupt snapshot is never fatal.
func NewTokenStore(ctx context.Context, engine *crypto.Engine, backend storage.Backend, log logger.Logger, config *Config) (*TokenStore, error) {
	if config == nil {
		config = DefaultConfig()
	}

	s := &TokenStore{
		tokens:  make(map[string][]*StoredToken),
		engine:  engine,
		backend: backend,
		config:  config,
		logger:  log,
		metrics: &Metrics{},
	}

	if config.ClearOnStartup {
		if err := backend.Wipe(ctx); err != nil {
			return nil, fmt.Errorf("startup wipe failed: %w", err)
		}
		log.Warn("token table cleared on startup", logger.String("backend", backend.Name()))
		return s, nil
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	log.Info("token store opened",
		logger.String("backend", backend.Name()),
		logger.Int("users", len(s.tokens)),
	)
	return s, nil
}

// load reads the snapshot from the backend into the table.
func (s *TokenStore) load(ctx context.Context) error {
	data, err := s.backend.Load(ctx)
	if err != nil {
		// Storage read failure is infrastructure trouble worth surfacing,
		// unlike a merely unreadable snapshot.
		return fmt.Errorf("failed to load token snapshot: %w", err)
	}
	if data == nil {
		s.logger.Debug("no token snapshot found, starting empty")
		return nil
	}

	var table map[string][]*StoredToken
	if err := json.Unmarshal(data, &table); err != nil {
		s.logger.Warn("token snapshot is unreadable, starting empty", logger.Err(err))
		return nil
	}

	if merr := validateTable(table); merr != nil {
		s.logger.Warn("token snapshot has inconsistent records",
			logger.Int("problems", merr.Len()),
			logger.Err(merr.ErrorOrNil()),
		)
	}

	s.tokens = table
	return nil
}

// validateTable checks the loaded table for records that violate the
// single-active-token invariant and demotes the older duplicates. Problems
// across all users are aggregated so one bad user cannot hide another.
func validateTable(table map[string][]*StoredToken) *multierror.Error {
	var merr *multierror.Error

	for userID, records := range table {
		seenActive := make(map[string]*StoredToken)
		for _, rec := range records {
			if !rec.Active() {
				continue
			}
			prev, ok := seenActive[rec.Provider]
			if !ok {
				seenActive[rec.Provider] = rec
				continue
			}
			// Keep the newer record active
			older := prev
			if rec.CreatedAt.Before(prev.CreatedAt) {
				older = rec
			} else {
				seenActive[rec.Provider] = rec
			}
			if err := older.markDeleted(); err != nil {
				merr = multierror.Append(merr, err)
				continue
			}
			merr = multierror.Append(merr, fmt.Errorf(
				"user %s has duplicate active tokens for provider %s; demoted %s",
				userID, rec.Provider, older.ID))
		}
	}
	return merr
}

// persist serializes the whole table and writes it through to the backend.
// Must be called with the write lock held. On failure the in-memory mutation
// is kept; the error is logged and surfaced so callers know durable state
// may lag.
func (s *TokenStore) persist(ctx context.Context) error {
	data, err := json.Marshal(s.tokens)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorePersist, err)
	}

	if err := s.backend.Store(ctx, data); err != nil {
		if s.config.EnableMetrics {
			s.metrics.IncrementSnapshotFailures()
		}
		s.logger.Error("token snapshot write failed",
			logger.String("backend", s.backend.Name()),
			logger.Err(err),
		)
		return fmt.Errorf("%w: %w", ErrStorePersist, err)
	}
	return nil
}

// findActive returns the active record for (userID, provider), if any.
// Must be called with the lock held.
func (s *TokenStore) findActive(userID, provider string) *StoredToken {
	for _, rec := range s.tokens[userID] {
		if rec.Provider == provider && rec.Active() {
			return rec
		}
	}
	return nil
}

// SetToken encrypts rawSecret and installs it as the single active
// credential for (userID, provider). Any previously active record for the
// pair is deactivated first; replacing a credential never mutates the old
// envelope in place.
//
// On a persist failure the returned token is still valid in memory and the
// error reports that durable state lags.
func (s *TokenStore) SetToken(ctx context.Context, userID, provider, rawSecret, displayName string) (*StoredToken, error) {
	if userID == "" || provider == "" {
		return nil, fmt.Errorf("userID and provider are required")
	}
	if rawSecret == "" {
		return nil, ErrEmptySecret
	}

	// The KDF is deliberately slow; run it outside the table lock.
	envelope, err := s.engine.Encrypt(rawSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if existing := s.findActive(userID, provider); existing != nil {
		if err := existing.markDeleted(); err != nil {
			return nil, err
		}
		s.logger.Debug("previous token deactivated",
			logger.String("token_id", existing.ID),
			logger.String("provider", provider),
		)
	}

	token := &StoredToken{
		ID:          newTokenID(),
		UserID:      userID,
		Provider:    provider,
		Envelope:    envelope,
		DisplayName: displayName,
		State:       StateActive,
		CreatedAt:   time.Now().UTC(),
	}
	s.tokens[userID] = append(s.tokens[userID], token)

	if s.config.EnableMetrics {
		s.metrics.IncrementTokensStored()
	}
	s.logger.Info("token stored",
		logger.String("token_id", token.ID),
		logger.String("provider", provider),
		logger.Int("envelope_bytes", len(envelope)),
	)

	if err := s.persist(ctx); err != nil {
		return token, err
	}
	return token, nil
}

// GetToken resolves the active credential for (userID, provider) to its
// plaintext. It returns "" with a nil error when no active credential
// exists.
//
// When the envelope fails to decrypt the record is quarantined and ""
// is returned: the quarantine is final, since the original secret is gone
// there is nothing to retry with; the caller should prompt the user to
// reconnect the account.
func (s *TokenStore) GetToken(ctx context.Context, userID, provider string) (string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", ErrStoreClosed
	}

	token := s.findActive(userID, provider)
	if token == nil {
		s.mu.RUnlock()
		return "", nil
	}
	tokenID := token.ID
	envelope := token.Envelope
	s.mu.RUnlock()

	// The KDF is deliberately slow; run it outside the table lock so
	// resolutions for distinct users overlap instead of queueing.
	plaintext, decErr := s.engine.Decrypt(envelope)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	// The record may have been replaced or swept while the lock was
	// released; if so, report the outcome for the record observed above
	// without mutating its successor.
	token = s.findActive(userID, provider)
	if token == nil || token.ID != tokenID {
		if decErr != nil {
			return "", nil
		}
		return plaintext, nil
	}

	if decErr != nil {
		if s.config.EnableMetrics {
			s.metrics.IncrementDecryptFailures()
			s.metrics.IncrementQuarantines()
		}
		s.logger.Warn("token failed to decrypt, quarantining",
			logger.String("token_id", token.ID),
			logger.String("provider", provider),
			logger.Err(decErr),
		)
		if qerr := token.markQuarantined(); qerr != nil {
			return "", qerr
		}
		if perr := s.persist(ctx); perr != nil {
			return "", perr
		}
		return "", nil
	}

	token.LastUsedAt = time.Now().UTC()
	if s.config.EnableMetrics {
		s.metrics.IncrementTokensResolved()
	}

	if err := s.persist(ctx); err != nil {
		return plaintext, err
	}
	return plaintext, nil
}

// ListTokens returns metadata for the user's active credentials, oldest
// first. Envelopes and plaintext never appear in the result.
func (s *TokenStore) ListTokens(userID string) []TokenMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TokenMetadata
	for _, rec := range s.tokens[userID] {
		if rec.Active() {
			out = append(out, rec.metadata())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteToken soft-deactivates the active credential for (userID, provider)
// and reports whether one existed. The record stays in the table until a
// cleanup operation removes it.
func (s *TokenStore) DeleteToken(ctx context.Context, userID, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrStoreClosed
	}

	token := s.findActive(userID, provider)
	if token == nil {
		return false, nil
	}

	if err := token.markDeleted(); err != nil {
		return false, err
	}
	s.logger.Info("token deleted",
		logger.String("token_id", token.ID),
		logger.String("provider", provider),
	)

	if err := s.persist(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// ClearAllForUser hard-removes every record for the user, in any state, and
// returns how many were removed. Used by emergency recovery flows.
func (s *TokenStore) ClearAllForUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	removed := len(s.tokens[userID])
	if removed == 0 {
		return 0, nil
	}
	delete(s.tokens, userID)

	s.logger.Info("all tokens cleared for user",
		logger.Int("removed", removed),
	)

	if err := s.persist(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// GetMetrics returns a snapshot of current metrics
func (s *TokenStore) GetMetrics() map[string]int64 {
	if !s.config.EnableMetrics {
		return nil
	}
	return s.metrics.GetSnapshot()
}

// Close marks the store closed. Further operations fail with ErrStoreClosed.
func (s *TokenStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.logger.Info("token store closed")
}
