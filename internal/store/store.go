// Package store persists queue state in Postgres. Methods follow the
// pool/tx style of pgx; conditional status updates encode the
// forward-only lattice as SQL predicates so a lost race shows up as
// zero affected rows instead of a backward transition.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-queue-api/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
	mode model.ScopeMode
}

func New(pool *pgxpool.Pool, mode model.ScopeMode) *Store {
	return &Store{pool: pool, mode: mode}
}
