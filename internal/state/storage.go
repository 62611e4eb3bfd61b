// Package state models the per-conversation wizard: the enumerated states, the typed context with
// its back stack, persistence contracts and the machine that loads, locks and saves sessions.
package state

import (
	"context"
	"errors"
)

var (
	// ErrStateNotFound indicates that no session exists for the key.
	ErrStateNotFound = errors.New("conversation state not found")
	// ErrUnknownState indicates a persisted state name that is no longer part of the wizard.
	ErrUnknownState = errors.New("unknown conversation state")
	// ErrMissingContext indicates that a step expected wizard data that is not there.
	ErrMissingContext = errors.New("conversation context incomplete")
)

// Store persists sessions. Sessions are never deleted.
type Store interface {
	// Load returns the session for key or ErrStateNotFound. A record with an unrecognised state is
	// returned together with ErrUnknownState so the caller can recover it.
	Load(ctx context.Context, key Key) (*Session, error)
	// Save creates or replaces the session for its key.
	Save(ctx context.Context, session *Session) error
}
