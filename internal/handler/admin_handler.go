package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinic-queue-api/internal/middleware"
	"clinic-queue-api/internal/model"
)

func (h *Handler) Advance(c *gin.Context) {
	res, err := h.queue.Advance(c.Request.Context(), c.Param("scope"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if s := middleware.SessionFrom(c); s != nil {
		h.logger.Info("queue advanced by admin",
			zap.String("username", s.Username),
			zap.String("scope", c.Param("scope")))
	}

	if res.Empty {
		c.JSON(http.StatusOK, gin.H{"message": "queue empty"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "next patient called",
		"patient": gin.H{
			"name":         res.Serving.PatientName,
			"token":        res.Serving.TokenNumber,
			"displayToken": res.Serving.DisplayToken,
		},
	})
}

func (h *Handler) Queue(c *gin.Context) {
	list, err := h.queue.ListQueue(c.Request.Context(), c.Param("scope"))
	if err != nil {
		h.fail(c, err)
		return
	}

	waiting, completed := 0, 0
	out := make([]gin.H, len(list))
	for i, a := range list {
		switch a.Status {
		case model.StatusWaiting, model.StatusNotified:
			waiting++
		case model.StatusCompleted:
			completed++
		}
		entry := gin.H{
			"token":        a.TokenNumber,
			"displayToken": a.DisplayToken,
			"patientName":  a.PatientName,
			"mobileNumber": a.MobileNumber,
			"status":       a.Status,
			"createdAt":    a.CreatedAt,
		}
		if a.CompletedAt != nil {
			entry["completedAt"] = a.CompletedAt
		}
		out[i] = entry
	}

	c.JSON(http.StatusOK, gin.H{
		"queue":          out,
		"totalCount":     len(list),
		"waitingCount":   waiting,
		"completedCount": completed,
	})
}

func (h *Handler) RemoveFromQueue(c *gin.Context) {
	token, err := parseToken(c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.queue.Remove(c.Request.Context(), c.Param("scope"), token); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment removed"})
}
