// Package queue implements token issuance and queue advancement.
// Token issuance and status transitions for one scope always run under
// that scope's lock; different scopes proceed in parallel.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/model"
	"clinic-queue-api/internal/notify"
)

// Store is the persistence surface the service needs. Transition
// methods are conditional: they only apply when the current status is
// in the allowed set, and report whether they did.
type Store interface {
	NextToken(ctx context.Context, scope string) (int, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	AppointmentByToken(ctx context.Context, scope string, token int) (*model.Appointment, error)
	CurrentServing(ctx context.Context, scope string) (*model.Appointment, error)
	NextInQueue(ctx context.Context, scope string) (*model.Appointment, error)
	WaitingInWindow(ctx context.Context, scope string, afterToken, upToToken int) ([]model.Appointment, error)
	QueueLength(ctx context.Context, scope string) (int, error)
	CountAhead(ctx context.Context, scope string, token int) (int, error)
	ListQueue(ctx context.Context, scope string) ([]model.Appointment, error)
	TransitionStatus(ctx context.Context, id string, from []model.Status, to model.Status) (bool, error)
	RemoveAppointment(ctx context.Context, id string) error
	DoctorByID(ctx context.Context, id string) (*model.Doctor, error)
	ActiveScopes(ctx context.Context) ([]string, error)
}

type Config struct {
	Mode           model.ScopeMode
	ServiceMinutes int
	NotifyWindow   int
	OpeningHour    int
}

type Service struct {
	store    Store
	notifier notify.Notifier
	cfg      Config
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// scopeLock returns the mutex serializing one scope's mutations.
func (s *Service) scopeLock(scope string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		s.locks[scope] = l
	}
	return l
}

type BookRequest struct {
	PatientName  string
	MobileNumber string
	DoctorID     string
	Date         time.Time
}

type BookingResult struct {
	Appointment          *model.Appointment
	Position             int
	EstimatedWaitMinutes int
	SlotTime             time.Time
}

// Book issues the next token in the request's scope and persists the
// appointment. The counter never rolls back: if the appointment write
// fails the issued number is abandoned, leaving a gap rather than
// risking a duplicate.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookingResult, error) {
	scope, prefix, err := s.resolveScope(ctx, req)
	if err != nil {
		return nil, err
	}

	l := s.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	n, err := s.store.NextToken(ctx, scope)
	if err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:           uuid.New().String(),
		Scope:        scope,
		TokenNumber:  n,
		DisplayToken: model.FormatToken(s.cfg.Mode, prefix, n),
		PatientName:  req.PatientName,
		MobileNumber: req.MobileNumber,
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Status:       model.StatusWaiting,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateAppointment(ctx, a); err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not save appointment", err)
	}

	ahead, err := s.store.CountAhead(ctx, scope, n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not compute queue position", err)
	}

	return &BookingResult{
		Appointment:          a,
		Position:             ahead + 1,
		EstimatedWaitMinutes: ahead * s.cfg.ServiceMinutes,
		SlotTime:             s.slotTime(req.Date, n),
	}, nil
}

func (s *Service) resolveScope(ctx context.Context, req BookRequest) (scope, prefix string, err error) {
	if s.cfg.Mode == model.ScopeByDate {
		return model.DateScope(req.Date), "", nil
	}
	d, err := s.store.DoctorByID(ctx, req.DoctorID)
	if err != nil {
		return "", "", err
	}
	if d == nil || !d.Active {
		return "", "", apperr.NotFound("doctor not found")
	}
	return d.ID, d.TokenPrefix, nil
}

// slotTime maps a token number to its indicative appointment time:
// clinic opening plus one service slot per token already issued.
func (s *Service) slotTime(date time.Time, token int) time.Time {
	opening := time.Date(date.Year(), date.Month(), date.Day(),
		s.cfg.OpeningHour, 0, 0, 0, date.Location())
	return opening.Add(time.Duration(token-1) * time.Duration(s.cfg.ServiceMinutes) * time.Minute)
}

type QueueStatus struct {
	CurrentToken         int
	CurrentDisplayToken  string
	QueueLength          int
	EstimatedWaitMinutes int
}

func (s *Service) Status(ctx context.Context, scope string) (*QueueStatus, error) {
	cur, err := s.store.CurrentServing(ctx, scope)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not read queue", err)
	}
	qlen, err := s.store.QueueLength(ctx, scope)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not read queue", err)
	}

	st := &QueueStatus{
		QueueLength:          qlen,
		EstimatedWaitMinutes: qlen * s.cfg.ServiceMinutes,
	}
	if cur != nil {
		st.CurrentToken = cur.TokenNumber
		st.CurrentDisplayToken = cur.DisplayToken
	}
	return st, nil
}

type AdvanceResult struct {
	Empty   bool
	Serving *model.Appointment
}

// Advance completes the currently served appointment (if any), promotes
// the earliest waiting or notified token, and runs the notify pass.
// Concurrent advances for one scope serialize on the scope lock; the
// conditional transitions make a lost race observable instead of a
// double-advance.
func (s *Service) Advance(ctx context.Context, scope string) (*AdvanceResult, error) {
	l := s.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	cur, err := s.store.CurrentServing(ctx, scope)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not read queue", err)
	}
	if cur != nil {
		ok, err := s.store.TransitionStatus(ctx, cur.ID,
			[]model.Status{model.StatusServing}, model.StatusCompleted)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindDependency, "could not complete appointment", err)
		}
		if !ok {
			// another caller already completed it; if it also promoted a
			// successor, report that state instead of promoting again
			serving, err := s.store.CurrentServing(ctx, scope)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindDependency, "could not read queue", err)
			}
			if serving != nil {
				s.logger.Info("queue advanced concurrently",
					zap.String("scope", scope), zap.Int("token", serving.TokenNumber))
				return &AdvanceResult{Serving: serving}, nil
			}
		}
	}

	next, err := s.store.NextInQueue(ctx, scope)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not read queue", err)
	}
	if next == nil {
		return &AdvanceResult{Empty: true}, nil
	}

	ok, err := s.store.TransitionStatus(ctx, next.ID,
		[]model.Status{model.StatusWaiting, model.StatusNotified}, model.StatusServing)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not promote appointment", err)
	}
	if !ok {
		// a concurrent advance won; report the state it produced
		serving, err := s.store.CurrentServing(ctx, scope)
		if err != nil || serving == nil {
			return nil, apperr.Conflict("queue advanced concurrently, retry")
		}
		return &AdvanceResult{Serving: serving}, nil
	}
	next.Status = model.StatusServing

	s.notifyWindow(ctx, scope)

	s.logger.Info("queue advanced",
		zap.String("scope", scope),
		zap.Int("token", next.TokenNumber))
	return &AdvanceResult{Serving: next}, nil
}

// NotifyPass re-runs the look-ahead notification step for one scope.
// Invoked by the recurring job as well as after every advance.
func (s *Service) NotifyPass(ctx context.Context, scope string) {
	l := s.scopeLock(scope)
	l.Lock()
	defer l.Unlock()
	s.notifyWindow(ctx, scope)
}

// NotifyAll runs the notify pass over every scope with live entries.
func (s *Service) NotifyAll(ctx context.Context) {
	scopes, err := s.store.ActiveScopes(ctx)
	if err != nil {
		s.logger.Error("could not list active scopes", zap.Error(err))
		return
	}
	for _, scope := range scopes {
		s.NotifyPass(ctx, scope)
	}
}

// notifyWindow messages still-waiting patients within the look-ahead
// window. A patient only moves to notified after the send succeeded;
// failed sends stay waiting and are retried on the next pass.
func (s *Service) notifyWindow(ctx context.Context, scope string) {
	cur, err := s.store.CurrentServing(ctx, scope)
	if err != nil {
		s.logger.Error("notify pass: could not read queue",
			zap.String("scope", scope), zap.Error(err))
		return
	}
	if cur == nil {
		return
	}

	upcoming, err := s.store.WaitingInWindow(ctx, scope,
		cur.TokenNumber, cur.TokenNumber+s.cfg.NotifyWindow)
	if err != nil {
		s.logger.Error("notify pass: could not list upcoming",
			zap.String("scope", scope), zap.Error(err))
		return
	}

	for i := range upcoming {
		a := &upcoming[i]
		// live entries only; cancelled and completed gaps are not patients
		ahead, err := s.store.CountAhead(ctx, scope, a.TokenNumber)
		if err != nil {
			s.logger.Error("notify pass: could not count queue",
				zap.String("scope", scope),
				zap.Int("token", a.TokenNumber),
				zap.Error(err))
			continue
		}
		msg := fmt.Sprintf(
			"Queue alert: your token %s will be called shortly. %d patient(s) ahead of you. Please proceed to the waiting area.",
			a.DisplayToken, ahead)

		if err := s.notifier.Send(ctx, a.MobileNumber, msg); err != nil {
			s.logger.Warn("notification failed, will retry next pass",
				zap.String("scope", scope),
				zap.Int("token", a.TokenNumber),
				zap.Error(err))
			continue
		}
		if _, err := s.store.TransitionStatus(ctx, a.ID,
			[]model.Status{model.StatusWaiting}, model.StatusNotified); err != nil {
			s.logger.Error("could not mark notified",
				zap.String("scope", scope),
				zap.Int("token", a.TokenNumber),
				zap.Error(err))
		}
	}
}

// Cancel marks an appointment cancelled. Terminal appointments stay as
// they are; other patients' tokens and positions are untouched.
func (s *Service) Cancel(ctx context.Context, scope string, token int) error {
	l := s.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	a, err := s.store.AppointmentByToken(ctx, scope, token)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "could not read appointment", err)
	}
	if a == nil {
		return apperr.NotFound("appointment not found")
	}
	if a.Status.Terminal() {
		return apperr.Conflict("appointment already " + string(a.Status))
	}

	ok, err := s.store.TransitionStatus(ctx, a.ID,
		[]model.Status{model.StatusWaiting, model.StatusNotified, model.StatusServing},
		model.StatusCancelled)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "could not cancel appointment", err)
	}
	if !ok {
		return apperr.Conflict("appointment state changed, retry")
	}
	return nil
}

// Remove deletes an appointment record entirely. Admin-only; issued
// tokens are not reused afterwards.
func (s *Service) Remove(ctx context.Context, scope string, token int) error {
	l := s.scopeLock(scope)
	l.Lock()
	defer l.Unlock()

	a, err := s.store.AppointmentByToken(ctx, scope, token)
	if err != nil {
		return apperr.Wrap(apperr.KindDependency, "could not read appointment", err)
	}
	if a == nil {
		return apperr.NotFound("appointment not found")
	}
	if err := s.store.RemoveAppointment(ctx, a.ID); err != nil {
		return apperr.Wrap(apperr.KindDependency, "could not remove appointment", err)
	}
	return nil
}

// ListQueue returns the full scoped queue, token-ascending.
func (s *Service) ListQueue(ctx context.Context, scope string) ([]model.Appointment, error) {
	list, err := s.store.ListQueue(ctx, scope)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "could not read queue", err)
	}
	return list, nil
}
