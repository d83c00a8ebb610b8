package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clinic-queue-api/internal/apperr"
	"clinic-queue-api/internal/model"
	"clinic-queue-api/internal/queue"
)

type bookRequest struct {
	PatientName     string `json:"patientName"`
	MobileNumber    string `json:"mobileNumber"`
	DoctorID        string `json:"doctorId"`
	AppointmentDate string `json:"appointmentDate"`
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperr.Validation("invalid request body"))
		return
	}
	if req.PatientName == "" || req.MobileNumber == "" || req.AppointmentDate == "" {
		h.fail(c, apperr.Validation("patientName, mobileNumber and appointmentDate are required"))
		return
	}
	if h.mode == model.ScopeByDoctor && req.DoctorID == "" {
		h.fail(c, apperr.Validation("doctorId is required"))
		return
	}

	date, err := time.Parse("2006-01-02", req.AppointmentDate)
	if err != nil {
		h.fail(c, apperr.Validation("appointmentDate must be YYYY-MM-DD"))
		return
	}

	res, err := h.queue.Book(c.Request.Context(), queue.BookRequest{
		PatientName:  req.PatientName,
		MobileNumber: req.MobileNumber,
		DoctorID:     req.DoctorID,
		Date:         date,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":                res.Appointment.TokenNumber,
		"displayToken":         res.Appointment.DisplayToken,
		"position":             res.Position,
		"estimatedWaitMinutes": res.EstimatedWaitMinutes,
		"slotTime":             res.SlotTime.Format("15:04"),
		"status":               res.Appointment.Status,
	})
}

func (h *Handler) QueueStatus(c *gin.Context) {
	st, err := h.queue.Status(c.Request.Context(), c.Param("scope"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currentToken":         st.CurrentToken,
		"currentDisplayToken":  st.CurrentDisplayToken,
		"queueLength":          st.QueueLength,
		"estimatedWaitMinutes": st.EstimatedWaitMinutes,
	})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	token, err := parseToken(c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	scope, err := h.scopeFromQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.queue.Cancel(c.Request.Context(), scope, token); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled"})
}

// scopeFromQuery resolves the scope for token-addressed endpoints: the
// explicit ?scope= value, or today's date in date mode.
func (h *Handler) scopeFromQuery(c *gin.Context) (string, error) {
	if scope := c.Query("scope"); scope != "" {
		return scope, nil
	}
	if h.mode == model.ScopeByDate {
		return model.DateScope(time.Now()), nil
	}
	return "", apperr.Validation("scope query parameter is required")
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.dir.ActiveDoctors(c.Request.Context())
	if err != nil {
		h.fail(c, apperr.Wrap(apperr.KindDependency, "could not list doctors", err))
		return
	}

	out := make([]gin.H, len(doctors))
	for i, d := range doctors {
		out[i] = gin.H{
			"id":           d.ID,
			"name":         d.Name,
			"specialty":    d.Specialty,
			"currentToken": d.CurrentToken,
		}
	}
	c.JSON(http.StatusOK, gin.H{"doctors": out})
}
