package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-queue-api/internal/session"
)

const SessionKey = "session"

// Auth requires a valid admin session credential, taken from
// "Authorization: Bearer <credential>" or the X-Session-Token header.
func Auth(authority *session.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := credentialFrom(c)
		s, err := authority.Validate(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"kind": "auth", "message": "authentication required"},
			})
			return
		}
		c.Set(SessionKey, s)
		c.Next()
	}
}

func credentialFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.GetHeader("X-Session-Token")
}

// SessionFrom returns the session placed by Auth; nil outside the
// authenticated group.
func SessionFrom(c *gin.Context) *session.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

// Credential exposes the raw credential so logout can revoke it.
func Credential(c *gin.Context) string {
	return credentialFrom(c)
}
