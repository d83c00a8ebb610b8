// Package handler exposes the HTTP JSON API.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/middleware"
	"clinic-queue-api/internal/model"
	"clinic-queue-api/internal/queue"
	"clinic-queue-api/internal/session"
)

// Directory lists the bookable doctors.
type Directory interface {
	ActiveDoctors(ctx context.Context) ([]model.Doctor, error)
}

// Users is the slice of the user store needed for admin account
// management.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	Users(ctx context.Context) ([]model.User, error)
}

type Handler struct {
	queue    *queue.Service
	sessions *session.Authority
	dir      Directory
	users    Users
	mode     model.ScopeMode
	logger   *zap.Logger
}

func New(q *queue.Service, sessions *session.Authority, dir Directory, users Users,
	mode model.ScopeMode, logger *zap.Logger) *Handler {
	return &Handler{
		queue:    q,
		sessions: sessions,
		dir:      dir,
		users:    users,
		mode:     mode,
		logger:   logger,
	}
}

func (h *Handler) Router(rl *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(h.logger))

	limited := middleware.RateLimit(rl)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/doctors", h.ListDoctors)
	r.POST("/appointments", limited, h.BookAppointment)
	r.GET("/queue-status/:scope", h.QueueStatus)
	r.POST("/appointments/:token/cancel", h.CancelAppointment)

	r.POST("/login", limited, h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/session", h.SessionInfo)

	admin := r.Group("/admin", middleware.Auth(h.sessions))
	admin.POST("/advance/:scope", h.Advance)
	admin.GET("/queue/:scope", h.Queue)
	admin.DELETE("/queue/:scope/:token", h.RemoveFromQueue)
	admin.POST("/register", h.Register)
	admin.GET("/users", h.ListUsers)

	return r
}

// fail writes the stable error envelope; unexpected errors surface as
// a dependency kind with a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindDependency {
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(httpStatus(kind), gin.H{
		"error": gin.H{"kind": kind, "message": apperr.MessageOf(err)},
	})
}

func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// parseToken accepts either the bare sequence number or a display form
// such as "A-007" or "B12".
func parseToken(raw string) (int, error) {
	trimmed := strings.TrimLeftFunc(raw, func(r rune) bool {
		return r < '0' || r > '9'
	})
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 {
		return 0, apperr.Validation("invalid token")
	}
	return n, nil
}
