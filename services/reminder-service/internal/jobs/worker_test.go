package jobs

import (
	"testing"
	"time"
)

func TestDuePayload(t *testing.T) {
	remindAt := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	job := Job{
		AppointmentID: "appt-1",
		ClientID:      "client-1",
		RemindAt:      remindAt,
		TemplateData: map[string]any{
			"client_email": "ana@example.com",
			"pet_name":     "Firulais",
		},
	}

	payload := duePayload(job)

	if payload["appointment_id"] != "appt-1" {
		t.Fatalf("unexpected appointment_id %v", payload["appointment_id"])
	}
	if payload["client_id"] != "client-1" {
		t.Fatalf("unexpected client_id %v", payload["client_id"])
	}
	if payload["remind_at"] != "2025-06-14T10:00:00Z" {
		t.Fatalf("unexpected remind_at %v", payload["remind_at"])
	}
	if payload["client_email"] != "ana@example.com" || payload["pet_name"] != "Firulais" {
		t.Fatal("template data should be carried through")
	}

	// The source map must not be mutated.
	if _, ok := job.TemplateData["appointment_id"]; ok {
		t.Fatal("template data should not be mutated")
	}
}
