package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"clinic-queue-api/internal/model"
)

const appointmentColumns = `id, scope, token_number, display_token, patient_name,
	mobile_number, doctor_id, appointment_date, status, created_at, completed_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(&a.ID, &a.Scope, &a.TokenNumber, &a.DisplayToken, &a.PatientName,
		&a.MobileNumber, &a.DoctorID, &a.Date, &a.Status, &a.CreatedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments
		   (id, scope, token_number, display_token, patient_name,
		    mobile_number, doctor_id, appointment_date, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.Scope, a.TokenNumber, a.DisplayToken, a.PatientName,
		a.MobileNumber, a.DoctorID, a.Date, a.Status, a.CreatedAt,
	)
	return err
}

func (s *Store) AppointmentByToken(ctx context.Context, scope string, token int) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments WHERE scope = $1 AND token_number = $2`,
		scope, token,
	))
}

func (s *Store) CurrentServing(ctx context.Context, scope string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments WHERE scope = $1 AND status = 'serving'`,
		scope,
	))
}

func (s *Store) NextInQueue(ctx context.Context, scope string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE scope = $1 AND status IN ('waiting','notified')
		 ORDER BY token_number
		 LIMIT 1`,
		scope,
	))
}

func (s *Store) WaitingInWindow(ctx context.Context, scope string, afterToken, upToToken int) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments
		 WHERE scope = $1 AND status = 'waiting'
		   AND token_number > $2 AND token_number <= $3
		 ORDER BY token_number`,
		scope, afterToken, upToToken,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (s *Store) QueueLength(ctx context.Context, scope string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments
		 WHERE scope = $1 AND status IN ('waiting','notified')`,
		scope,
	).Scan(&n)
	return n, err
}

func (s *Store) CountAhead(ctx context.Context, scope string, token int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments
		 WHERE scope = $1 AND token_number < $2
		   AND status IN ('waiting','notified','serving')`,
		scope, token,
	).Scan(&n)
	return n, err
}

func (s *Store) ListQueue(ctx context.Context, scope string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments WHERE scope = $1
		 ORDER BY token_number`,
		scope,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// TransitionStatus applies the change only if the row's status is still
// in the allowed set; the boolean reports whether it did. completed_at
// is stamped on the move to completed.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []model.Status, to model.Status) (bool, error) {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments
		 SET status = $2,
		     completed_at = CASE WHEN $2 = 'completed' THEN NOW() ELSE completed_at END
		 WHERE id = $1 AND status = ANY($3)`,
		id, string(to), allowed,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RemoveAppointment(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return err
}

// ActiveScopes lists scopes that still have live entries; the recurring
// notify pass iterates these.
func (s *Store) ActiveScopes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT scope FROM appointments
		 WHERE status IN ('waiting','notified','serving')`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		out = append(out, scope)
	}
	return out, rows.Err()
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.Scope, &a.TokenNumber, &a.DisplayToken, &a.PatientName,
			&a.MobileNumber, &a.DoctorID, &a.Date, &a.Status, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
