package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	conversationLockKeyPattern = "conv:lock:%s"
	lockTTL                    = 10 * time.Second
	lockRetryInterval          = 50 * time.Millisecond
	defaultLockWait            = 3 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateLocked indicates that another message for the same conversation is being processed.
	ErrStateLocked = errors.New("conversation is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Machine loads, locks and saves conversation sessions.
type Machine struct {
	store       Store
	log         *slog.Logger
	redisClient *redis.Client
	lockWait    time.Duration
}

// NewMachine creates a Machine backed by store. When redisClient is nil, conversations are not locked.
func NewMachine(store Store, log *slog.Logger, redisClient *redis.Client) *Machine {
	if log == nil {
		log = slog.Default()
	}

	return &Machine{
		store:       store,
		log:         log,
		redisClient: redisClient,
		lockWait:    defaultLockWait,
	}
}

// Acquire loads the session for key, creating a new one for an unseen conversation, and holds the
// conversation lock until release is called.
func (m *Machine) Acquire(ctx context.Context, key Key, name string) (*Session, func(), error) {
	token, err := m.lock(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	release := func() { m.unlock(context.WithoutCancel(ctx), key, token) }

	session, err := m.load(ctx, key, name)
	if err != nil {
		release()
		return nil, nil, err
	}

	return session, release, nil
}

func (m *Machine) load(ctx context.Context, key Key, name string) (*Session, error) {
	session, err := m.store.Load(ctx, key)
	switch {
	case errors.Is(err, ErrStateNotFound):
		return NewSession(key, name), nil
	case errors.Is(err, ErrUnknownState):
		m.log.Warn("unknown stored state, resetting to main menu", slog.String("conversation", key.String()))
		if session == nil {
			session = NewSession(key, name)
		}
		if name != "" {
			session.Name = name
		}
		session.Context = Context{}
		session.State = StateMainMenu
		session.Begin()
		return session, nil
	case err != nil:
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	if name != "" {
		session.Name = name
	}
	session.Begin()
	return session, nil
}

// Save validates the step taken while handling the current message and persists the session.
func (m *Machine) Save(ctx context.Context, session *Session) error {
	from, to := session.loaded, session.State

	if !session.popped && !IsTransitionAllowed(from, to) {
		m.log.Warn("invalid state transition",
			slog.String("conversation", session.Key().String()),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		return ErrInvalidTransition
	}

	session.PreviousState = session.previous()
	session.UpdatedAt = time.Now().UTC()

	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	if from != to {
		transitionRecorder(string(from), string(to))
	}
	session.Begin()

	return nil
}

func (m *Machine) lock(ctx context.Context, key Key) (string, error) {
	if m.redisClient == nil {
		return "", nil
	}

	redisKey := fmt.Sprintf(conversationLockKeyPattern, key)
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	deadline := time.Now().Add(m.lockWait)

	for {
		acquired, err := m.redisClient.SetNX(ctx, redisKey, token, lockTTL).Result()
		if err != nil {
			m.log.Error("failed to acquire conversation lock", slog.String("conversation", key.String()), slog.Any("error", err))
			return "", err
		}
		if acquired {
			return token, nil
		}
		if time.Now().After(deadline) {
			m.log.Warn("conversation lock already held", slog.String("conversation", key.String()))
			return "", ErrStateLocked
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// releaseScript deletes the lock only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (m *Machine) unlock(ctx context.Context, key Key, token string) {
	if m.redisClient == nil {
		return
	}

	redisKey := fmt.Sprintf(conversationLockKeyPattern, key)
	if err := releaseScript.Run(ctx, m.redisClient, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		m.log.Error("failed to release conversation lock", slog.String("conversation", key.String()), slog.Any("error", err))
	}
}
