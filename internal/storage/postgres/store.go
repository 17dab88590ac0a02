package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements the chat storage interface on top of PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
