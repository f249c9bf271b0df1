package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/availability"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/model"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/outbox"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/storage"
)

type AppointmentHandler struct {
	repo       *storage.AppointmentRepository
	guard      *availability.Guard
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewAppointmentHandler(repo *storage.AppointmentRepository, guard *availability.Guard, outboxRepo *outbox.Repository, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		repo:       repo,
		guard:      guard,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

type createAppointmentRequest struct {
	ClientID         string   `json:"client_id"`
	VeterinarianID   string   `json:"veterinarian_id"`
	PetName          string   `json:"pet_name"`
	PetSpecies       string   `json:"pet_species"`
	PetBreed         string   `json:"pet_breed"`
	PetAge           *int     `json:"pet_age"`
	AppointmentDate  string   `json:"appointment_date"`
	Type             string   `json:"type"`
	Reason           string   `json:"reason"`
	ClientName       string   `json:"client_name"`
	ClientEmail      string   `json:"client_email"`
	ClientPhone      string   `json:"client_phone"`
	VeterinarianName string   `json:"veterinarian_name"`
	Cost             *float64 `json:"cost"`
	IsEmergency      bool     `json:"is_emergency"`
}

type updateAppointmentRequest struct {
	PetName         *string  `json:"pet_name"`
	PetSpecies      *string  `json:"pet_species"`
	PetBreed        *string  `json:"pet_breed"`
	PetAge          *int     `json:"pet_age"`
	AppointmentDate *string  `json:"appointment_date"`
	Type            *string  `json:"type"`
	Reason          *string  `json:"reason"`
	Notes           *string  `json:"notes"`
	ClientPhone     *string  `json:"client_phone"`
	Cost            *float64 `json:"cost"`
	IsEmergency     *bool    `json:"is_emergency"`
}

type confirmAppointmentRequest struct {
	Notes string `json:"notes"`
}

type statusChangeRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type appointmentResponse struct {
	ID               string   `json:"id"`
	ClientID         string   `json:"client_id"`
	VeterinarianID   string   `json:"veterinarian_id"`
	PetName          string   `json:"pet_name"`
	PetSpecies       string   `json:"pet_species"`
	PetBreed         string   `json:"pet_breed,omitempty"`
	PetAge           int      `json:"pet_age"`
	AppointmentDate  string   `json:"appointment_date"`
	Type             string   `json:"type"`
	Status           string   `json:"status"`
	Reason           string   `json:"reason,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	ClientName       string   `json:"client_name"`
	ClientEmail      string   `json:"client_email"`
	ClientPhone      string   `json:"client_phone,omitempty"`
	VeterinarianName string   `json:"veterinarian_name"`
	Cost             *float64 `json:"cost,omitempty"`
	IsEmergency      bool     `json:"is_emergency"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type appointmentListResponse struct {
	Appointments []appointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

func toResponse(appt model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:               appt.ID,
		ClientID:         appt.ClientID,
		VeterinarianID:   appt.VeterinarianID,
		PetName:          appt.PetName,
		PetSpecies:       appt.PetSpecies,
		PetBreed:         appt.PetBreed,
		PetAge:           appt.PetAge,
		AppointmentDate:  appt.AppointmentDate.UTC().Format(time.RFC3339),
		Type:             string(appt.Type),
		Status:           string(appt.Status),
		Reason:           appt.Reason,
		Notes:            appt.Notes,
		ClientName:       appt.ClientName,
		ClientEmail:      appt.ClientEmail,
		ClientPhone:      appt.ClientPhone,
		VeterinarianName: appt.VeterinarianName,
		Cost:             appt.Cost,
		IsEmergency:      appt.IsEmergency,
		CreatedAt:        appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.ClientID = strings.TrimSpace(req.ClientID)
	req.VeterinarianID = strings.TrimSpace(req.VeterinarianID)
	req.PetName = strings.TrimSpace(req.PetName)
	req.PetSpecies = strings.TrimSpace(req.PetSpecies)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.TrimSpace(req.ClientEmail)
	req.VeterinarianName = strings.TrimSpace(req.VeterinarianName)

	if req.ClientID == "" || req.VeterinarianID == "" || req.ClientName == "" || req.ClientEmail == "" || req.VeterinarianName == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	if len(req.PetName) < 2 || len(req.PetName) > 100 {
		http.Error(w, "pet_name must be between 2 and 100 characters", http.StatusBadRequest)
		return
	}
	if req.PetSpecies == "" || len(req.PetSpecies) > 50 {
		http.Error(w, "pet_species is required", http.StatusBadRequest)
		return
	}
	if req.PetAge == nil || *req.PetAge < 0 || *req.PetAge > 50 {
		http.Error(w, "pet_age must be between 0 and 50", http.StatusBadRequest)
		return
	}
	if req.Cost != nil && *req.Cost < 0 {
		http.Error(w, "cost must not be negative", http.StatusBadRequest)
		return
	}

	apptType := model.AppointmentType(strings.TrimSpace(req.Type))
	if apptType == "" {
		apptType = model.TypeConsultation
	}
	if !model.ValidType(apptType) {
		http.Error(w, "invalid appointment type", http.StatusBadRequest)
		return
	}

	appointmentDate, err := time.Parse(time.RFC3339, req.AppointmentDate)
	if err != nil {
		http.Error(w, "invalid appointment_date", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.guard.ValidateSchedule(ctx, req.VeterinarianID, appointmentDate, ""); err != nil {
		h.writeScheduleError(w, err)
		return
	}

	appt := &model.Appointment{
		ClientID:         req.ClientID,
		VeterinarianID:   req.VeterinarianID,
		PetName:          req.PetName,
		PetSpecies:       req.PetSpecies,
		PetBreed:         strings.TrimSpace(req.PetBreed),
		PetAge:           *req.PetAge,
		AppointmentDate:  appointmentDate.UTC(),
		Type:             apptType,
		Status:           model.StatusScheduled,
		Reason:           strings.TrimSpace(req.Reason),
		ClientName:       req.ClientName,
		ClientEmail:      req.ClientEmail,
		ClientPhone:      strings.TrimSpace(req.ClientPhone),
		VeterinarianName: req.VeterinarianName,
		Cost:             req.Cost,
		IsEmergency:      req.IsEmergency,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, availability.ErrSlotConflict.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	appt.ID = id

	if err := h.insertAppointmentEvent(ctx, tx, "appointments.appointment.scheduled.v1", appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	created, err := h.repo.GetByID(ctx, id)
	if err != nil {
		// The row committed; respond with what we have.
		created = *appt
	}
	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ListFilter{
		ClientID:       strings.TrimSpace(q.Get("client_id")),
		VeterinarianID: strings.TrimSpace(q.Get("veterinarian_id")),
		Page:           1,
		Limit:          10,
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := model.Status(raw)
		if !model.ValidStatus(status) {
			http.Error(w, "invalid status filter", http.StatusBadRequest)
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid start_date", http.StatusBadRequest)
			return
		}
		filter.StartDate = start
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid end_date", http.StatusBadRequest)
			return
		}
		filter.EndDate = end
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Page = n
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			filter.Limit = n
		}
	}

	appts, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toResponse(appt))
	}
	writeJSON(w, http.StatusOK, appointmentListResponse{
		Appointments: items,
		Total:        total,
		Page:         filter.Page,
		Limit:        filter.Limit,
	})
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	// Edits are restricted to freshly scheduled appointments, whatever
	// fields are being changed.
	if !appt.Status.Editable() {
		http.Error(w, availability.ErrInvalidState.Error(), http.StatusBadRequest)
		return
	}

	if req.AppointmentDate != nil {
		newDate, err := time.Parse(time.RFC3339, *req.AppointmentDate)
		if err != nil {
			http.Error(w, "invalid appointment_date", http.StatusBadRequest)
			return
		}
		// Re-guard the new slot, excluding this appointment so it does
		// not conflict with itself.
		if err := h.guard.ValidateSchedule(ctx, appt.VeterinarianID, newDate, appt.ID); err != nil {
			h.writeScheduleError(w, err)
			return
		}
		appt.AppointmentDate = newDate.UTC()
	}

	if req.PetName != nil {
		name := strings.TrimSpace(*req.PetName)
		if len(name) < 2 || len(name) > 100 {
			http.Error(w, "pet_name must be between 2 and 100 characters", http.StatusBadRequest)
			return
		}
		appt.PetName = name
	}
	if req.PetSpecies != nil {
		species := strings.TrimSpace(*req.PetSpecies)
		if species == "" || len(species) > 50 {
			http.Error(w, "pet_species must not be empty", http.StatusBadRequest)
			return
		}
		appt.PetSpecies = species
	}
	if req.PetBreed != nil {
		appt.PetBreed = strings.TrimSpace(*req.PetBreed)
	}
	if req.PetAge != nil {
		if *req.PetAge < 0 || *req.PetAge > 50 {
			http.Error(w, "pet_age must be between 0 and 50", http.StatusBadRequest)
			return
		}
		appt.PetAge = *req.PetAge
	}
	if req.Type != nil {
		apptType := model.AppointmentType(strings.TrimSpace(*req.Type))
		if !model.ValidType(apptType) {
			http.Error(w, "invalid appointment type", http.StatusBadRequest)
			return
		}
		appt.Type = apptType
	}
	if req.Reason != nil {
		appt.Reason = strings.TrimSpace(*req.Reason)
	}
	if req.Notes != nil {
		appt.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.ClientPhone != nil {
		appt.ClientPhone = strings.TrimSpace(*req.ClientPhone)
	}
	if req.Cost != nil {
		if *req.Cost < 0 {
			http.Error(w, "cost must not be negative", http.StatusBadRequest)
			return
		}
		appt.Cost = req.Cost
	}
	if req.IsEmergency != nil {
		appt.IsEmergency = *req.IsEmergency
	}

	if err := h.repo.Update(ctx, tx, &appt); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, availability.ErrSlotConflict.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}

	if err := h.insertAppointmentEvent(ctx, tx, "appointments.appointment.updated.v1", &appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	updated, err := h.repo.GetByID(ctx, id)
	if err != nil {
		updated = appt
	}
	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	var req confirmAppointmentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}

	h.transition(w, r, id, model.StatusConfirmed, strings.TrimSpace(req.Notes), "appointments.appointment.confirmed.v1")
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	next := model.Status(strings.TrimSpace(req.Status))
	if !model.ValidStatus(next) {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	eventType := "appointments.appointment.status_changed.v1"
	if next == model.StatusCancelled {
		eventType = "appointments.appointment.cancelled.v1"
	}
	h.transition(w, r, id, next, strings.TrimSpace(req.Notes), eventType)
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, id string, next model.Status, notes string, eventType string) {
	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if !appt.Status.CanTransitionTo(next) {
		http.Error(w, availability.ErrInvalidState.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.SetStatus(ctx, tx, id, next, notes); err != nil {
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}
	appt.Status = next
	if notes != "" {
		appt.Notes = notes
	}

	if err := h.insertAppointmentEvent(ctx, tx, eventType, &appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	updated, err := h.repo.GetByID(ctx, id)
	if err != nil {
		updated = appt
	}
	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if err := h.repo.Delete(ctx, tx, id); err != nil {
		http.Error(w, "failed to delete appointment", http.StatusInternalServerError)
		return
	}

	if err := h.insertAppointmentEvent(ctx, tx, "appointments.appointment.deleted.v1", &appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	veterinarianID := strings.TrimSpace(r.PathValue("veterinarianId"))
	dateStr := strings.TrimSpace(r.PathValue("date"))
	if veterinarianID == "" || dateStr == "" {
		http.Error(w, "veterinarian id and date are required", http.StatusBadRequest)
		return
	}

	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	start, end := availability.DayWindow(day)
	booked, err := h.repo.ListActiveDatesInWindow(r.Context(), veterinarianID, start, end)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, availability.AvailableSlots(booked))
}

func (h *AppointmentHandler) writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidSchedule):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, availability.ErrSlotConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, availability.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("schedule validation failed", "err", err)
		http.Error(w, "failed to validate schedule", http.StatusInternalServerError)
	}
}

func (h *AppointmentHandler) insertAppointmentEvent(ctx context.Context, tx pgx.Tx, eventType string, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":    appt.ID,
		"client_id":         appt.ClientID,
		"veterinarian_id":   appt.VeterinarianID,
		"client_name":       appt.ClientName,
		"client_email":      appt.ClientEmail,
		"client_phone":      appt.ClientPhone,
		"veterinarian_name": appt.VeterinarianName,
		"pet_name":          appt.PetName,
		"type":              appt.Type,
		"status":            appt.Status,
		"appointment_date":  appt.AppointmentDate.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
