// Package pglookup implements identity.Lookup against the restaurant tables in
// Postgres.
package pglookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-session-guard/identity"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
)

const (
	membershipQuery = `SELECT restaurant_id FROM user_restaurants WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
	ownedQuery      = `SELECT id FROM restaurants WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 1`
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgxmock.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Lookup struct {
	db Querier
}

var _ identity.Lookup = (*Lookup)(nil)

func New(db Querier) *Lookup {
	return &Lookup{db: db}
}

// Connect opens a pool for databaseURL and verifies it answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[pglookup Connect] %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("[pglookup Connect] ping: %w", err)
	}
	return pool, nil
}

func (l *Lookup) LookupMembership(ctx context.Context, userID string) (*string, error) {
	return l.queryID(ctx, "LookupMembership", membershipQuery, userID)
}

func (l *Lookup) LookupOwned(ctx context.Context, userID string) (*string, error) {
	return l.queryID(ctx, "LookupOwned", ownedQuery, userID)
}

func (l *Lookup) queryID(ctx context.Context, op, query, userID string) (*string, error) {
	var id string
	err := l.db.QueryRow(ctx, query, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
			return nil, fmt.Errorf("[pglookup %s] %w: %w", op, apperrors.ErrUnavailable, err)
		}
		return nil, fmt.Errorf("[pglookup %s] %w", op, err)
	}
	return &id, nil
}
