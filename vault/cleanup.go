package vault

import (
	"context"

	"github.com/fintra/credvault/logger"
)

// CleanupCorruptedTokens hard-removes every inactive record for a user,
// both user-deleted and quarantined, and returns how many were removed.
func (s *TokenStore) CleanupCorruptedTokens(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	removed := s.sweepUser(userID)
	if removed == 0 {
		return 0, nil
	}

	s.logger.Info("inactive tokens removed",
		logger.Int("removed", removed),
	)

	if err := s.persist(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// ResetAllCorruptedTokens sweeps inactive records for every known user. An
// administrative operation, gated behind explicit configuration; production
// configs should leave it disabled.
func (s *TokenStore) ResetAllCorruptedTokens(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	if !s.config.AllowGlobalReset {
		return 0, ErrGlobalResetDisabled
	}

	removed := 0
	for userID := range s.tokens {
		removed += s.sweepUser(userID)
	}
	if removed == 0 {
		return 0, nil
	}

	s.logger.Warn("global inactive-token sweep completed",
		logger.Int("removed", removed),
	)

	if err := s.persist(ctx); err != nil {
		return removed, err
	}
	return removed, nil
}

// sweepUser drops every inactive record for one user. Must be called with
// the write lock held.
func (s *TokenStore) sweepUser(userID string) int {
	records := s.tokens[userID]
	if len(records) == 0 {
		return 0
	}

	kept := records[:0]
	removed := 0
	for _, rec := range records {
		if rec.Active() {
			kept = append(kept, rec)
		} else {
			removed++
		}
	}

	if len(kept) == 0 {
		delete(s.tokens, userID)
	} else {
		s.tokens[userID] = kept
	}
	return removed
}
