package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinic-queue-api/internal/session"
)

// SessionStore is the Postgres-backed session.Store, for deployments
// that want admin sessions to survive a restart. Rows are keyed by the
// credential hash; the raw credential is never written.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Save(ctx context.Context, credHash string, sess session.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (credential_hash, user_id, username, name, role, issued_at, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		credHash, sess.UserID, sess.Username, sess.Name, sess.Role, sess.IssuedAt, sess.ExpiresAt,
	)
	return err
}

func (s *SessionStore) Get(ctx context.Context, credHash string) (*session.Session, error) {
	sess := &session.Session{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, name, role, issued_at, expires_at
		 FROM sessions WHERE credential_hash = $1`, credHash,
	).Scan(&sess.UserID, &sess.Username, &sess.Name, &sess.Role, &sess.IssuedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, credHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE credential_hash = $1`, credHash)
	return err
}

func (s *SessionStore) Purge(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
