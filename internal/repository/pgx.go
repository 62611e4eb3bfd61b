package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Proton-105/chatshop/internal/customer"
	"github.com/Proton-105/chatshop/internal/i18n"
	"github.com/Proton-105/chatshop/internal/order"
	"github.com/Proton-105/chatshop/internal/state"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx so queries can run inside or outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBeginner starts pgx transactions.
type txBeginner interface {
	dbtx
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ state.Store          = (*ConversationRepository)(nil)
	_ i18n.Source          = (*TemplateRepository)(nil)
	_ customer.Repository  = (*CustomerRepository)(nil)
	_ order.Repository     = (*OrderRepository)(nil)
	_ order.BusinessSource = (*BusinessRepository)(nil)
)
