package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-queue-api/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, name, role)
		 VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Username, u.PasswordHash, u.Name, u.Role,
	)
	return err
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, name, role, created_at
		 FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Users lists all accounts, password hashes excluded.
func (s *Store) Users(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, name, role, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SeedAdmin creates the bootstrap administrator if it does not exist.
func (s *Store) SeedAdmin(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, name, role)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (username) DO NOTHING`,
		u.ID, u.Username, u.PasswordHash, u.Name, u.Role,
	)
	return err
}
