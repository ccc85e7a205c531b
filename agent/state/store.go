package state

import (
	"context"
	"errors"
)

var (
	ErrStateNotFound   = errors.New("session state not found")
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Store is the read/write contract the turn driver uses around every turn.
type Store interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, st *SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// prepareForSave stamps version and timestamps before a state is persisted.
func prepareForSave(st *SessionState) error {
	if st == nil {
		return ErrNilSessionState
	}
	if err := st.Validate(); err != nil {
		return err
	}
	st.Version++
	if st.CreatedAt.IsZero() {
		st.CreatedAt = st.UpdatedAt
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return nil
}
