package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/model"
)

// NextToken atomically issues the next sequence number for a scope.
// The row update is the single serialization point, so two concurrent
// bookings can never see the same number. The counter only ever moves
// forward; callers that fail after issuance abandon the number.
func (s *Store) NextToken(ctx context.Context, scope string) (int, error) {
	if s.mode == model.ScopeByDate {
		var n int
		err := s.pool.QueryRow(ctx,
			`INSERT INTO daily_tokens (scope, last_token) VALUES ($1, 1)
			 ON CONFLICT (scope) DO UPDATE SET last_token = daily_tokens.last_token + 1
			 RETURNING last_token`,
			scope,
		).Scan(&n)
		if err != nil {
			return 0, apperr.Wrap(apperr.KindDependency, "could not issue token", err)
		}
		return n, nil
	}

	var n int
	err := s.pool.QueryRow(ctx,
		`UPDATE doctors SET current_token = current_token + 1
		 WHERE id = $1 AND active
		 RETURNING current_token`,
		scope,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("doctor not found")
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDependency, "could not issue token", err)
	}
	return n, nil
}
