package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-queue-api/internal/model"
)

func (s *Store) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	d := &model.Doctor{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, specialty, token_prefix, current_token, active, created_at
		 FROM doctors WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Specialty, &d.TokenPrefix, &d.CurrentToken, &d.Active, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) ActiveDoctors(ctx context.Context) ([]model.Doctor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, specialty, token_prefix, current_token, active, created_at
		 FROM doctors WHERE active ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.TokenPrefix,
			&d.CurrentToken, &d.Active, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
