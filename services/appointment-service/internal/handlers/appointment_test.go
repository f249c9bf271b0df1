package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/availability"
)

func newTestHandler() *AppointmentHandler {
	// Validation tests exercise only the paths that reject a request
	// before the repository or guard is consulted.
	return NewAppointmentHandler(nil, availability.NewGuard(nil), nil, slog.Default())
}

func newTestMux(h *AppointmentHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/appointments", h.Create)
	mux.HandleFunc("GET /api/v1/appointments/available-slots/{veterinarianId}/{date}", h.AvailableSlots)
	return mux
}

func TestCreate_InvalidBody(t *testing.T) {
	mux := newTestMux(newTestHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader("{not json"))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestCreate_MissingFields(t *testing.T) {
	mux := newTestMux(newTestHandler())

	body := `{"client_id":"c1","pet_name":"Firulais"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestCreate_RejectsShortPetName(t *testing.T) {
	mux := newTestMux(newTestHandler())

	body := `{
		"client_id":"c1","veterinarian_id":"v1","pet_name":"F","pet_species":"dog","pet_age":3,
		"appointment_date":"2030-06-01T10:00:00Z","client_name":"Ana","client_email":"ana@example.com",
		"veterinarian_name":"Dr. Lopez"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestCreate_RejectsInvalidType(t *testing.T) {
	mux := newTestMux(newTestHandler())

	body := `{
		"client_id":"c1","veterinarian_id":"v1","pet_name":"Firulais","pet_species":"dog","pet_age":3,
		"appointment_date":"2030-06-01T10:00:00Z","type":"grooming","client_name":"Ana",
		"client_email":"ana@example.com","veterinarian_name":"Dr. Lopez"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestCreate_RejectsInvalidDate(t *testing.T) {
	mux := newTestMux(newTestHandler())

	body := `{
		"client_id":"c1","veterinarian_id":"v1","pet_name":"Firulais","pet_species":"dog","pet_age":3,
		"appointment_date":"mañana","client_name":"Ana","client_email":"ana@example.com",
		"veterinarian_name":"Dr. Lopez"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestAvailableSlots_RejectsInvalidDate(t *testing.T) {
	mux := newTestMux(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/available-slots/v1/25-12-2025", nil)
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}
