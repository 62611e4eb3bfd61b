// Package media stores payment receipts uploaded by customers.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyMedia is returned when there are no bytes to store.
var ErrEmptyMedia = errors.New("empty media")

// Receipt identifies where a receipt belongs.
type Receipt struct {
	BusinessID int64
	CustomerID int64
	OrderID    int64
	Phone      string
	Ext        string
}

// Store writes receipts under a root directory and returns their public reference.
type Store struct {
	root    string
	baseURL string
	log     *slog.Logger
	now     func() time.Time
}

// NewStore creates a receipt store rooted at root. References are prefixed with baseURL.
func NewStore(root, baseURL string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/"), log: log, now: time.Now}
}

// LogicalPath returns the path of a receipt relative to the store root:
// business_{b}/payments/{customer}/{order}/{unix_ms}_{phone}_{id}.{ext}.
func (s *Store) LogicalPath(r Receipt) string {
	ext := strings.TrimPrefix(strings.ToLower(r.Ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	name := fmt.Sprintf("%d_%s_%s.%s", s.now().UnixMilli(), sanitize(r.Phone), uuid.NewString()[:8], ext)
	return path.Join(
		fmt.Sprintf("business_%d", r.BusinessID),
		"payments",
		idOrUnknown(r.CustomerID, "unknown_customer"),
		idOrUnknown(r.OrderID, "unknown_order"),
		name,
	)
}

// Save writes data and returns the reference stored on the order.
func (s *Store) Save(_ context.Context, r Receipt, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyMedia
	}

	logical := s.LogicalPath(r)
	full := filepath.Join(s.root, filepath.FromSlash(logical))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}

	s.log.Info("receipt stored",
		slog.Int64("business_id", r.BusinessID),
		slog.Int64("order_id", r.OrderID),
		slog.String("path", logical),
	)
	return s.baseURL + "/" + logical, nil
}

func idOrUnknown(id int64, fallback string) string {
	if id <= 0 {
		return fallback
	}
	return fmt.Sprintf("%d", id)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '+':
			return r
		}
		return -1
	}, s)
}
