package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"clinic-queue-api/internal/model"
	"clinic-queue-api/internal/store"
)

func setup(t *testing.T) (*store.Store, *pgxpool.Pool) {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)
	return store.New(pool, model.ScopeByDate), pool
}

func TestNextTokenMonotonic(t *testing.T) {
	st, pool := setup(t)
	ctx := context.Background()

	scope := "test-" + uuid.New().String()[:8]
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM daily_tokens WHERE scope = $1`, scope)
	})

	prev := 0
	for i := 0; i < 5; i++ {
		n, err := st.NextToken(ctx, scope)
		if err != nil {
			t.Fatalf("next token: %v", err)
		}
		if n != prev+1 {
			t.Fatalf("token %d after %d, want %d", n, prev, prev+1)
		}
		prev = n
	}
}

func TestTransitionStatusPredicates(t *testing.T) {
	st, pool := setup(t)
	ctx := context.Background()

	scope := "test-" + uuid.New().String()[:8]
	a := &model.Appointment{
		ID:           uuid.New().String(),
		Scope:        scope,
		TokenNumber:  1,
		DisplayToken: "A-001",
		PatientName:  "Test Patient",
		MobileNumber: "+15550100",
		Date:         time.Now(),
		Status:       model.StatusWaiting,
		CreatedAt:    time.Now(),
	}
	if err := st.CreateAppointment(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, a.ID)
	})

	ok, err := st.TransitionStatus(ctx, a.ID,
		[]model.Status{model.StatusWaiting, model.StatusNotified}, model.StatusServing)
	if err != nil || !ok {
		t.Fatalf("waiting -> serving: ok=%v err=%v", ok, err)
	}

	// stale predicate is a no-op
	ok, err = st.TransitionStatus(ctx, a.ID,
		[]model.Status{model.StatusWaiting}, model.StatusNotified)
	if err != nil {
		t.Fatalf("stale transition: %v", err)
	}
	if ok {
		t.Error("stale transition applied")
	}

	ok, err = st.TransitionStatus(ctx, a.ID,
		[]model.Status{model.StatusServing}, model.StatusCompleted)
	if err != nil || !ok {
		t.Fatalf("serving -> completed: ok=%v err=%v", ok, err)
	}

	got, err := st.AppointmentByToken(ctx, scope, 1)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed without timestamp")
	}
}
