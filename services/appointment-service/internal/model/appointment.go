package model

import "time"

// Status is the appointment lifecycle state. Appointments start as
// scheduled and move forward only; cancelled and completed are terminal.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeVaccination  AppointmentType = "vaccination"
	TypeSurgery      AppointmentType = "surgery"
	TypeEmergency    AppointmentType = "emergency"
	TypeCheckup      AppointmentType = "checkup"
)

type Appointment struct {
	ID               string
	ClientID         string
	VeterinarianID   string
	PetName          string
	PetSpecies       string
	PetBreed         string
	PetAge           int
	AppointmentDate  time.Time
	Type             AppointmentType
	Status           Status
	Reason           string
	Notes            string
	ClientName       string
	ClientEmail      string
	ClientPhone      string
	VeterinarianName string
	Cost             *float64
	IsEmergency      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func ValidType(t AppointmentType) bool {
	switch t {
	case TypeConsultation, TypeVaccination, TypeSurgery, TypeEmergency, TypeCheckup:
		return true
	default:
		return false
	}
}

// Editable reports whether the appointment's date and descriptive fields
// may still be changed. Only freshly scheduled appointments are editable.
func (s Status) Editable() bool {
	return s == StatusScheduled
}

// Active reports whether the appointment occupies its time slot.
// Cancelled appointments free their slot for reuse.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// CanTransitionTo enforces the forward-only lifecycle:
// scheduled -> confirmed -> in_progress -> completed, with cancelled
// reachable from scheduled or confirmed. No transition skips a state and
// nothing leaves completed or cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusScheduled:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted
	default:
		return false
	}
}
