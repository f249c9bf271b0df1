package model

import (
	"testing"
	"time"
)

func TestEditable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := Message{SenderID: "u1", CreatedAt: now.Add(-2 * time.Minute)}

	if !msg.Editable("u1", now) {
		t.Fatal("sender should be able to edit within the window")
	}
	if msg.Editable("u2", now) {
		t.Fatal("non-sender should never be able to edit")
	}

	old := Message{SenderID: "u1", CreatedAt: now.Add(-6 * time.Minute)}
	if old.Editable("u1", now) {
		t.Fatal("edit window should close after five minutes")
	}

	boundary := Message{SenderID: "u1", CreatedAt: now.Add(-EditWindow)}
	if !boundary.Editable("u1", now) {
		t.Fatal("edit at exactly the window boundary should be allowed")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusSent, StatusDelivered, StatusRead} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%q) should be true", s)
		}
	}
	if ValidStatus("archived") {
		t.Error("ValidStatus(archived) should be false")
	}
}

func TestValidType(t *testing.T) {
	for _, tt := range []MessageType{TypeConsultation, TypeGeneral, TypeEmergency} {
		if !ValidType(tt) {
			t.Errorf("ValidType(%q) should be true", tt)
		}
	}
	if ValidType("spam") {
		t.Error("ValidType(spam) should be false")
	}
}
