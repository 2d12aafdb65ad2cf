package store

import (
	"context"
	"errors"
)

// ErrCorruptState is wrapped into Load errors when persisted data exists but
// cannot be decoded. Callers treat the session as absent; the sentinel only
// exists so the condition can be logged and counted.
var ErrCorruptState = errors.New("persisted session state corrupt")

// State is the persisted session snapshot: the three logical keys written as
// one record. UserJSON is the serialized user record; this package never
// decodes it.
type State struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserJSON     []byte `json:"user,omitempty"`
}

// Empty reports whether the state carries no session at all.
func (s State) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && len(s.UserJSON) == 0
}

// Store is the persistence contract. Save overwrites the full record, Clear
// removes it entirely, Load returns the empty State when nothing is stored.
// Load returns an error wrapping [ErrCorruptState] when stored data exists
// but is undecodable; any other error means the backend itself failed.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
	Clear(ctx context.Context) error
}
