package main

import (
	"strings"
	"testing"
)

func TestMessageFor(t *testing.T) {
	payload := appointmentPayload{
		AppointmentID:    "appt-1",
		ClientName:       "Ana",
		PetName:          "Firulais",
		VeterinarianName: "Dr. Lopez",
		AppointmentDate:  "2025-06-15T10:00:00Z",
	}

	subject, body, ok := messageFor("appointments.appointment.scheduled.v1", payload)
	if !ok {
		t.Fatal("scheduled event should produce a message")
	}
	if subject != "Appointment scheduled" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Firulais") || !strings.Contains(body, "Dr. Lopez") {
		t.Fatalf("body should mention pet and veterinarian: %q", body)
	}
	if !strings.Contains(body, "15 Jun 2025 10:00") {
		t.Fatalf("body should contain the formatted date: %q", body)
	}

	if _, _, ok := messageFor("appointments.appointment.cancelled.v1", payload); !ok {
		t.Fatal("cancelled event should produce a message")
	}
	subject, _, ok = messageFor("reminders.appointment.due.v1", payload)
	if !ok || subject != "Appointment reminder" {
		t.Fatalf("reminder event should produce a reminder message, got %q", subject)
	}
	if _, _, ok := messageFor("billing.invoice.paid.v1", payload); ok {
		t.Fatal("unrelated events should be skipped")
	}
}
