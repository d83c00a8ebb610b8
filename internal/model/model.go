package model

import (
	"fmt"
	"time"
)

// Status is the queue state of an appointment. Transitions only move
// forward: waiting → notified → serving → completed. Cancelled is
// reachable from any non-terminal state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusNotified  Status = "notified"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusRank = map[Status]int{
	StatusWaiting:   0,
	StatusNotified:  1,
	StatusServing:   2,
	StatusCompleted: 3,
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether a status change is legal under the
// forward-only lattice.
func (s Status) CanTransitionTo(to Status) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fromRank, ok := statusRank[s]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// ScopeMode selects how tokens are partitioned: one queue per doctor,
// or one queue per calendar date for the whole clinic.
type ScopeMode string

const (
	ScopeByDoctor ScopeMode = "doctor"
	ScopeByDate   ScopeMode = "date"
)

// DateScope formats t as the scope key used in date mode.
func DateScope(t time.Time) string {
	return t.Format("2006-01-02")
}

type Appointment struct {
	ID           string
	Scope        string
	TokenNumber  int
	DisplayToken string
	PatientName  string
	MobileNumber string
	DoctorID     string
	Date         time.Time
	Status       Status
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

type Doctor struct {
	ID           string
	Name         string
	Specialty    string
	TokenPrefix  string
	CurrentToken int
	Active       bool
	CreatedAt    time.Time
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
}

// FormatToken renders a token number for patients. Date-scoped queues
// use the zero-padded daily form ("A-007"); doctor-scoped queues use
// the doctor's prefix followed by the plain number ("B12").
func FormatToken(mode ScopeMode, prefix string, n int) string {
	if mode == ScopeByDate {
		return fmt.Sprintf("A-%03d", n)
	}
	if prefix == "" {
		prefix = "X"
	}
	return fmt.Sprintf("%s%d", prefix, n)
}
