// Package repository implements the Postgres-backed stores: conversations and templates on
// database/sql, catalog, customers and orders on a pgx pool.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/chatshop/internal/state"
)

// ConversationRepository is the durable state.Store backed by the user_states table.
type ConversationRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewConversationRepository creates a SQL-backed conversation store.
func NewConversationRepository(db *sql.DB, log *slog.Logger) *ConversationRepository {
	if log == nil {
		log = slog.Default()
	}

	return &ConversationRepository{db: db, log: log}
}

// Load retrieves the conversation of key.
func (r *ConversationRepository) Load(ctx context.Context, key state.Key) (*state.Session, error) {
	const query = `
		SELECT phone, business_id, name, state, previous_state, language, context, created_at, updated_at
		FROM user_states
		WHERE phone = $1 AND business_id = $2
	`

	var (
		session  state.Session
		stored   string
		previous string
		raw      []byte
	)
	err := r.db.QueryRowContext(ctx, query, key.Phone, key.BusinessID).Scan(
		&session.Phone,
		&session.BusinessID,
		&session.Name,
		&stored,
		&previous,
		&session.Language,
		&raw,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, state.ErrStateNotFound
		}

		r.log.Error("failed to load conversation", slog.String("conversation", key.String()), slog.Any("error", err))
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &session.Context); err != nil {
			r.log.Warn("dropping undecodable conversation context", slog.String("conversation", key.String()), slog.Any("error", err))
			session.Context = state.Context{}
		}
	}

	if prev, err := state.Parse(previous); err == nil {
		session.PreviousState = prev
	}

	current, err := state.Parse(stored)
	if err != nil {
		return &session, err
	}
	session.State = current

	return &session, nil
}

// Save creates or replaces the conversation row.
func (r *ConversationRepository) Save(ctx context.Context, session *state.Session) error {
	const query = `
		INSERT INTO user_states (phone, business_id, name, state, previous_state, language, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (phone, business_id) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			previous_state = EXCLUDED.previous_state,
			language = EXCLUDED.language,
			context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at
	`

	raw, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("marshal conversation context: %w", err)
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		session.Phone,
		session.BusinessID,
		session.Name,
		string(session.State),
		string(session.PreviousState),
		session.Language,
		raw,
		session.CreatedAt,
		session.UpdatedAt,
	); err != nil {
		r.log.Error("failed to save conversation", slog.String("conversation", session.Key().String()), slog.Any("error", err))
		return fmt.Errorf("upsert conversation: %w", err)
	}

	return nil
}

// CountByState returns how many conversations sit in each state.
func (r *ConversationRepository) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM user_states GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count conversations by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		counts[name] = count
	}

	return counts, rows.Err()
}
