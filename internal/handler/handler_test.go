package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-queue-api/internal/auth"
	"clinic-queue-api/internal/handler"
	"clinic-queue-api/internal/middleware"
	"clinic-queue-api/internal/model"
	"clinic-queue-api/internal/notify"
	"clinic-queue-api/internal/queue"
	"clinic-queue-api/internal/session"
	"clinic-queue-api/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	logger := zap.NewNop()

	mem := store.NewMemory(model.ScopeByDoctor)
	mem.AddDoctor(model.Doctor{ID: "doc-a", Name: "Dr. A", Specialty: "General", TokenPrefix: "A", Active: true})

	hash, err := auth.HashPassword("admin123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := mem.CreateUser(context.Background(), &model.User{
		ID: uuid.New().String(), Username: "admin", PasswordHash: hash,
		Name: "Admin", Role: "admin",
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	qsvc := queue.NewService(mem, &notify.LogNotifier{Logger: logger}, queue.Config{
		Mode:           model.ScopeByDoctor,
		ServiceMinutes: 15,
		NotifyWindow:   2,
		OpeningHour:    9,
	}, logger)
	authority := session.NewAuthority(mem, session.NewMemoryStore(), time.Hour, logger)

	h := handler.New(qsvc, authority, mem, mem, model.ScopeByDoctor, logger)
	return h.Router(middleware.NewRateLimiter(1000, 1000)), mem
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, credential string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func bookBody(patient string) map[string]string {
	return map[string]string{
		"patientName":     patient,
		"mobileNumber":    "+15550100",
		"doctorId":        "doc-a",
		"appointmentDate": "2026-09-01",
	}
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/login",
		map[string]string{"username": "admin", "password": "admin123"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", w.Code, w.Body.String())
	}
	cred, _ := decode(t, w)["credential"].(string)
	if cred == "" {
		t.Fatal("empty credential")
	}
	return cred
}

func TestBookAppointment(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/appointments", bookBody("Asha"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["token"].(float64) != 1 {
		t.Errorf("token = %v, want 1", resp["token"])
	}
	if resp["displayToken"] != "A1" {
		t.Errorf("displayToken = %v, want A1", resp["displayToken"])
	}
	if resp["estimatedWaitMinutes"].(float64) != 0 {
		t.Errorf("estimatedWaitMinutes = %v, want 0", resp["estimatedWaitMinutes"])
	}
}

func TestBookValidation(t *testing.T) {
	r, _ := setup(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"mobileNumber": "+1", "doctorId": "doc-a", "appointmentDate": "2026-09-01"}},
		{"missing mobile", map[string]string{"patientName": "X", "doctorId": "doc-a", "appointmentDate": "2026-09-01"}},
		{"missing doctor", map[string]string{"patientName": "X", "mobileNumber": "+1", "appointmentDate": "2026-09-01"}},
		{"bad date", map[string]string{"patientName": "X", "mobileNumber": "+1", "doctorId": "doc-a", "appointmentDate": "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/appointments", tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			resp := decode(t, w)
			errObj, _ := resp["error"].(map[string]any)
			if errObj == nil || errObj["kind"] != "validation" {
				t.Errorf("error = %v, want validation kind", resp["error"])
			}
		})
	}
}

func TestBookUnknownDoctor(t *testing.T) {
	r, _ := setup(t)

	body := bookBody("Asha")
	body["doctorId"] = "doc-nope"
	w := doJSON(t, r, http.MethodPost, "/appointments", body, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestQueueStatus(t *testing.T) {
	r, _ := setup(t)

	for i := 0; i < 3; i++ {
		doJSON(t, r, http.MethodPost, "/appointments", bookBody(fmt.Sprintf("p%d", i)), "")
	}

	w := doJSON(t, r, http.MethodGet, "/queue-status/doc-a", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["queueLength"].(float64) != 3 {
		t.Errorf("queueLength = %v, want 3", resp["queueLength"])
	}
	if resp["estimatedWaitMinutes"].(float64) != 45 {
		t.Errorf("estimatedWaitMinutes = %v, want 45", resp["estimatedWaitMinutes"])
	}
}

func TestCancelAppointment(t *testing.T) {
	r, _ := setup(t)

	doJSON(t, r, http.MethodPost, "/appointments", bookBody("Asha"), "")

	w := doJSON(t, r, http.MethodPost, "/appointments/1/cancel?scope=doc-a", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	// second cancel conflicts
	w = doJSON(t, r, http.MethodPost, "/appointments/1/cancel?scope=doc-a", nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("second cancel: status = %d, want 409", w.Code)
	}

	// unknown token
	w = doJSON(t, r, http.MethodPost, "/appointments/99/cancel?scope=doc-a", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown token: status = %d, want 404", w.Code)
	}
}

func TestCancelAcceptsDisplayToken(t *testing.T) {
	r, _ := setup(t)

	doJSON(t, r, http.MethodPost, "/appointments", bookBody("Asha"), "")

	w := doJSON(t, r, http.MethodPost, "/appointments/A1/cancel?scope=doc-a", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestAdvanceRequiresAuth(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodPost, "/admin/advance/doc-a", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/admin/advance/doc-a", nil, "bogus-credential")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bogus credential: status = %d, want 401", w.Code)
	}
}

func TestAdminFlow(t *testing.T) {
	r, _ := setup(t)

	doJSON(t, r, http.MethodPost, "/appointments", bookBody("Asha"), "")
	doJSON(t, r, http.MethodPost, "/appointments", bookBody("Ben"), "")

	cred := login(t, r)

	// advance: first patient serving
	w := doJSON(t, r, http.MethodPost, "/admin/advance/doc-a", nil, cred)
	if w.Code != http.StatusOK {
		t.Fatalf("advance: status %d: %s", w.Code, w.Body.String())
	}
	patient, _ := decode(t, w)["patient"].(map[string]any)
	if patient == nil || patient["token"].(float64) != 1 {
		t.Fatalf("advance response = %s", w.Body.String())
	}

	// queue view
	w = doJSON(t, r, http.MethodGet, "/admin/queue/doc-a", nil, cred)
	if w.Code != http.StatusOK {
		t.Fatalf("queue: status %d", w.Code)
	}
	resp := decode(t, w)
	if resp["totalCount"].(float64) != 2 {
		t.Errorf("totalCount = %v, want 2", resp["totalCount"])
	}

	// drain the queue
	doJSON(t, r, http.MethodPost, "/admin/advance/doc-a", nil, cred)
	w = doJSON(t, r, http.MethodPost, "/admin/advance/doc-a", nil, cred)
	if decode(t, w)["message"] != "queue empty" {
		t.Errorf("expected queue empty, got %s", w.Body.String())
	}

	// logout revokes the credential
	doJSON(t, r, http.MethodPost, "/logout", nil, cred)
	w = doJSON(t, r, http.MethodPost, "/admin/advance/doc-a", nil, cred)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("after logout: status = %d, want 401", w.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r, _ := setup(t)

	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/login",
			map[string]string{"username": "admin", "password": "nope"}, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, w.Code)
		}
	}
}

func TestSessionInfo(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodGet, "/session", nil, "")
	if decode(t, w)["authenticated"] != false {
		t.Error("expected unauthenticated")
	}

	cred := login(t, r)
	w = doJSON(t, r, http.MethodGet, "/session", nil, cred)
	resp := decode(t, w)
	if resp["authenticated"] != true || resp["username"] != "admin" {
		t.Errorf("session info = %v", resp)
	}
}

func TestRegisterAdmin(t *testing.T) {
	r, _ := setup(t)

	// unauthenticated registration is rejected
	body := map[string]string{"username": "second", "password": "longenough1", "name": "Second"}
	if w := doJSON(t, r, http.MethodPost, "/admin/register", body, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	cred := login(t, r)
	if w := doJSON(t, r, http.MethodPost, "/admin/register", body, cred); w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d", w.Code)
	}

	// short password rejected
	bad := map[string]string{"username": "third", "password": "short", "name": "Third"}
	if w := doJSON(t, r, http.MethodPost, "/admin/register", bad, cred); w.Code != http.StatusBadRequest {
		t.Errorf("short password: status = %d, want 400", w.Code)
	}

	// duplicate username conflicts
	if w := doJSON(t, r, http.MethodPost, "/admin/register", body, cred); w.Code != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409", w.Code)
	}

	// new admin can log in
	w := doJSON(t, r, http.MethodPost, "/login",
		map[string]string{"username": "second", "password": "longenough1"}, "")
	if w.Code != http.StatusOK {
		t.Errorf("new admin login: status = %d", w.Code)
	}
}

func TestListUsers(t *testing.T) {
	r, _ := setup(t)

	if w := doJSON(t, r, http.MethodGet, "/admin/users", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: status = %d, want 401", w.Code)
	}

	cred := login(t, r)
	body := map[string]string{"username": "second", "password": "longenough1", "name": "Second"}
	if w := doJSON(t, r, http.MethodPost, "/admin/register", body, cred); w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/admin/users", nil, cred)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	users, _ := decode(t, w)["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
	for _, v := range users {
		u, _ := v.(map[string]any)
		if _, leaked := u["passwordHash"]; leaked {
			t.Error("password hash exposed in user listing")
		}
	}
}

func TestListDoctors(t *testing.T) {
	r, _ := setup(t)

	w := doJSON(t, r, http.MethodGet, "/doctors", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	doctors, _ := decode(t, w)["doctors"].([]any)
	if len(doctors) != 1 {
		t.Fatalf("doctors = %d, want 1", len(doctors))
	}
}

func TestRemoveFromQueue(t *testing.T) {
	r, mem := setup(t)

	doJSON(t, r, http.MethodPost, "/appointments", bookBody("Asha"), "")
	cred := login(t, r)

	w := doJSON(t, r, http.MethodDelete, "/admin/queue/doc-a/1", nil, cred)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: status %d: %s", w.Code, w.Body.String())
	}
	a, _ := mem.AppointmentByToken(context.Background(), "doc-a", 1)
	if a != nil {
		t.Error("appointment still present after removal")
	}
}
