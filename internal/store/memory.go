package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/model"
)

// Memory keeps everything in process, mirroring the Postgres store's
// semantics (conditional transitions, monotonic counters). It backs
// local development without a database and the state-machine tests.
type Memory struct {
	mode model.ScopeMode

	mu           sync.Mutex
	appointments map[string]*model.Appointment
	counters     map[string]int
	doctors      map[string]*model.Doctor
	users        map[string]*model.User
}

func NewMemory(mode model.ScopeMode) *Memory {
	return &Memory{
		mode:         mode,
		appointments: make(map[string]*model.Appointment),
		counters:     make(map[string]int),
		doctors:      make(map[string]*model.Doctor),
		users:        make(map[string]*model.User),
	}
}

func (m *Memory) NextToken(_ context.Context, scope string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == model.ScopeByDoctor {
		d, ok := m.doctors[scope]
		if !ok || !d.Active {
			return 0, apperr.NotFound("doctor not found")
		}
		d.CurrentToken++
		return d.CurrentToken, nil
	}
	m.counters[scope]++
	return m.counters[scope], nil
}

func (m *Memory) CreateAppointment(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *Memory) AppointmentByToken(_ context.Context, scope string, token int) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.Scope == scope && a.TokenNumber == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CurrentServing(_ context.Context, scope string) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.Scope == scope && a.Status == model.StatusServing {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) NextInQueue(_ context.Context, scope string) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Appointment
	for _, a := range m.appointments {
		if a.Scope != scope {
			continue
		}
		if a.Status != model.StatusWaiting && a.Status != model.StatusNotified {
			continue
		}
		if best == nil || a.TokenNumber < best.TokenNumber {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *Memory) WaitingInWindow(_ context.Context, scope string, afterToken, upToToken int) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.Scope == scope && a.Status == model.StatusWaiting &&
			a.TokenNumber > afterToken && a.TokenNumber <= upToToken {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenNumber < out[j].TokenNumber })
	return out, nil
}

func (m *Memory) QueueLength(_ context.Context, scope string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.Scope == scope &&
			(a.Status == model.StatusWaiting || a.Status == model.StatusNotified) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountAhead(_ context.Context, scope string, token int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.Scope != scope || a.TokenNumber >= token {
			continue
		}
		switch a.Status {
		case model.StatusWaiting, model.StatusNotified, model.StatusServing:
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListQueue(_ context.Context, scope string) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.Scope == scope {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenNumber < out[j].TokenNumber })
	return out, nil
}

func (m *Memory) TransitionStatus(_ context.Context, id string, from []model.Status, to model.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, st := range from {
		if a.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	a.Status = to
	if to == model.StatusCompleted {
		now := time.Now()
		a.CompletedAt = &now
	}
	return true, nil
}

func (m *Memory) RemoveAppointment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.appointments, id)
	return nil
}

func (m *Memory) ActiveScopes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, a := range m.appointments {
		if a.Status.Terminal() || seen[a.Scope] {
			continue
		}
		seen[a.Scope] = true
		out = append(out, a.Scope)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) DoctorByID(_ context.Context, id string) (*model.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) ActiveDoctors(_ context.Context) ([]model.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Doctor
	for _, d := range m.doctors {
		if d.Active {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) AddDoctor(d model.Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[d.ID] = &d
}

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return apperr.Conflict("username already exists")
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *Memory) UserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) Users(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		cp := *u
		cp.PasswordHash = ""
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *Memory) SeedAdmin(ctx context.Context, u *model.User) error {
	if existing, _ := m.UserByUsername(ctx, u.Username); existing != nil {
		return nil
	}
	return m.CreateUser(ctx, u)
}
