package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusInProgress, false},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusInProgress, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusCompleted, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestStatusEditable(t *testing.T) {
	if !StatusScheduled.Editable() {
		t.Fatal("scheduled appointments must be editable")
	}
	for _, s := range []Status{StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled} {
		if s.Editable() {
			t.Errorf("%s must not be editable", s)
		}
	}
}

func TestStatusActive(t *testing.T) {
	if StatusCancelled.Active() {
		t.Fatal("cancelled appointments must not occupy a slot")
	}
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted} {
		if !s.Active() {
			t.Errorf("%s must occupy its slot", s)
		}
	}
}
