package vault

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid"
)

// TokenState is the lifecycle state of a stored credential.
//
//	Active -> Deleted      user removed or replaced the credential
//	Active -> Quarantined  decryption failed; the record is kept for audit
//	                       but excluded from active use
//
// Both inactive states are terminal until a cleanup operation removes the
// record entirely. Active is the only state from which the secret can be
// resolved.
type TokenState int

const (
	StateActive TokenState = iota
	StateDeleted
	StateQuarantined
)

// String returns the string representation of TokenState
func (s TokenState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDeleted:
		return "deleted"
	case StateQuarantined:
		return "quarantined"
	default:
		return "unknown"
	}
}

// MarshalJSON stores the state by name so snapshots stay readable.
func (s TokenState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TokenState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "active":
		*s = StateActive
	case "deleted":
		*s = StateDeleted
	case "quarantined":
		*s = StateQuarantined
	default:
		return fmt.Errorf("unknown token state %q", name)
	}
	return nil
}

// StoredToken is one credential record. The envelope is the only
// secret-bearing field and is safe to inspect or back up independently of
// the master secret; the plaintext secret never persists anywhere.
type StoredToken struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Provider    string     `json:"provider"`
	Envelope    string     `json:"envelope"`
	DisplayName string     `json:"display_name,omitempty"`
	State       TokenState `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  time.Time  `json:"last_used_at,omitzero"`
}

// Active reports whether the record is in the active state.
func (t *StoredToken) Active() bool {
	return t.State == StateActive
}

// markDeleted transitions an active record to the user-deleted state.
func (t *StoredToken) markDeleted() error {
	if t.State != StateActive {
		return fmt.Errorf("cannot delete token %s in state %s", t.ID, t.State)
	}
	t.State = StateDeleted
	return nil
}

// markQuarantined transitions an active record to the quarantined state
// after a failed decryption.
func (t *StoredToken) markQuarantined() error {
	if t.State != StateActive {
		return fmt.Errorf("cannot quarantine token %s in state %s", t.ID, t.State)
	}
	t.State = StateQuarantined
	return nil
}

// TokenMetadata is the caller-visible view of a record: everything except
// the envelope.
type TokenMetadata struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	DisplayName string    `json:"display_name,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitzero"`
}

// metadata strips the envelope from a record.
func (t *StoredToken) metadata() TokenMetadata {
	return TokenMetadata{
		ID:          t.ID,
		Provider:    t.Provider,
		DisplayName: t.DisplayName,
		IsActive:    t.Active(),
		CreatedAt:   t.CreatedAt,
		LastUsedAt:  t.LastUsedAt,
	}
}

// newTokenID generates a sortable unique record ID.
func newTokenID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
