package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/auth"
	"clinic-queue-api/internal/middleware"
	"clinic-queue-api/internal/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		h.fail(c, apperr.Validation("username and password required"))
		return
	}

	credential, s, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credential": credential,
		"username":   s.Username,
		"name":       s.Name,
		"expiresAt":  s.ExpiresAt,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), middleware.Credential(c)); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindDependency, "logout failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// SessionInfo reports whether the presented credential is still live.
// Public on purpose: the admin UI polls it before showing the panel.
func (h *Handler) SessionInfo(c *gin.Context) {
	s, err := h.sessions.Validate(c.Request.Context(), middleware.Credential(c))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"username":      s.Username,
		"name":          s.Name,
		"role":          s.Role,
		"issuedAt":      s.IssuedAt,
		"expiresAt":     s.ExpiresAt,
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register creates another admin user. Only reachable through the
// authenticated group.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" || req.Name == "" {
		h.fail(c, apperr.Validation("all fields required"))
		return
	}
	if len(req.Password) < 8 {
		h.fail(c, apperr.Validation("password too short"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.KindDependency, "internal error", err))
		return
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         "admin",
	}
	if err := h.users.CreateUser(c.Request.Context(), u); err != nil {
		// unique violation = duplicate username, but don't reveal that
		h.fail(c, apperr.Conflict("registration failed"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"role":     u.Role,
	})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.Users(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.KindDependency, "could not list users", err))
		return
	}

	out := make([]gin.H, len(users))
	for i, u := range users {
		out[i] = gin.H{
			"id":        u.ID,
			"username":  u.Username,
			"name":      u.Name,
			"role":      u.Role,
			"createdAt": u.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}
