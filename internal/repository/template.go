package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// TemplateRepository reads per-business message overrides from bot_messages.
type TemplateRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewTemplateRepository creates a SQL-backed template source.
func NewTemplateRepository(db *sql.DB, log *slog.Logger) *TemplateRepository {
	if log == nil {
		log = slog.Default()
	}

	return &TemplateRepository{db: db, log: log}
}

// Template returns the override text for (businessID, lang, key); ok is false when there is none.
func (r *TemplateRepository) Template(ctx context.Context, businessID int64, lang, key string) (string, bool, error) {
	const query = `
		SELECT text
		FROM bot_messages
		WHERE business_id = $1 AND language = $2 AND key = $3
	`

	var text string
	if err := r.db.QueryRowContext(ctx, query, businessID, lang, key).Scan(&text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		r.log.Error("failed to fetch template",
			slog.Int64("business_id", businessID),
			slog.String("language", lang),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return "", false, fmt.Errorf("select template: %w", err)
	}

	return text, true, nil
}
