package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/auth"
	"clinic-queue-api/internal/model"
)

// Users is the slice of the user store the authority needs.
type Users interface {
	UserByUsername(ctx context.Context, username string) (*model.User, error)
}

type Authority struct {
	users    Users
	sessions Store
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthority(users Users, sessions Store, ttl time.Duration, logger *zap.Logger) *Authority {
	return &Authority{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Login verifies the password and issues a fresh credential. Multiple
// live sessions per user are allowed.
func (a *Authority) Login(ctx context.Context, username, password string) (string, *Session, error) {
	u, err := a.users.UserByUsername(ctx, username)
	if err != nil || u == nil {
		// same answer for unknown user and bad password
		return "", nil, apperr.Auth("invalid username or password")
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, apperr.Auth("invalid username or password")
	}

	raw, hash, err := auth.GenerateCredential()
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindDependency, "could not create session", err)
	}

	issued := a.now()
	s := Session{
		UserID:    u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Role:      u.Role,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(a.ttl),
	}
	if err := a.sessions.Save(ctx, hash, s); err != nil {
		return "", nil, apperr.Wrap(apperr.KindDependency, "could not create session", err)
	}

	a.logger.Info("admin login", zap.String("username", u.Username))
	return raw, &s, nil
}

// Validate resolves a credential to its session, rejecting expired or
// unknown ones. Expired sessions are dropped eagerly so the periodic
// sweep is only a backstop.
func (a *Authority) Validate(ctx context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, apperr.Auth("authentication required")
	}
	hash := auth.HashCredential(credential)
	s, err := a.sessions.Get(ctx, hash)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDependency, "session lookup failed", err)
	}
	if s == nil {
		return nil, apperr.Auth("authentication required")
	}
	if s.ExpiresAt.Before(a.now()) {
		_ = a.sessions.Delete(ctx, hash)
		return nil, apperr.Auth("session expired")
	}
	return s, nil
}

func (a *Authority) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	return a.sessions.Delete(ctx, auth.HashCredential(credential))
}

// Sweep purges expired sessions.
func (a *Authority) Sweep(ctx context.Context) {
	n, err := a.sessions.Purge(ctx, a.now())
	if err != nil {
		a.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		a.logger.Info("swept expired sessions", zap.Int("count", n))
	}
}
