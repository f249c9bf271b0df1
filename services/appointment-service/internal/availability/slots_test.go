package availability

import (
	"testing"
	"time"
)

func TestSlotGrid(t *testing.T) {
	grid := SlotGrid()
	if len(grid) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(grid))
	}
	if grid[0] != "08:00" {
		t.Fatalf("expected first slot 08:00, got %s", grid[0])
	}
	if grid[len(grid)-1] != "17:30" {
		t.Fatalf("expected last slot 17:30, got %s", grid[len(grid)-1])
	}
	for i := 1; i < len(grid); i++ {
		if grid[i] <= grid[i-1] {
			t.Fatalf("grid not ascending at %d: %s <= %s", i, grid[i], grid[i-1])
		}
	}
}

func TestAvailableSlots_EmptyDay(t *testing.T) {
	slots := AvailableSlots(nil)
	if len(slots) != 20 {
		t.Fatalf("expected full 20-slot grid, got %d", len(slots))
	}
}

func TestAvailableSlots_OccupiedSlotRemoved(t *testing.T) {
	day := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	booked := []time.Time{day.Add(10 * time.Hour)}

	slots := AvailableSlots(booked)
	if len(slots) != 19 {
		t.Fatalf("expected 19 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s == "10:00" {
			t.Fatal("slot 10:00 should be occupied")
		}
	}

	// Freeing the slot restores the full grid.
	slots = AvailableSlots(nil)
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots after cancellation, got %d", len(slots))
	}
}

func TestAvailableSlots_NormalizesSeconds(t *testing.T) {
	day := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	booked := []time.Time{day.Add(9*time.Hour + 30*time.Minute + 15*time.Second)}

	for _, s := range AvailableSlots(booked) {
		if s == "09:30" {
			t.Fatal("slot 09:30 should be occupied despite seconds on the stored timestamp")
		}
	}
}

func TestAvailableSlots_Idempotent(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	booked := []time.Time{day.Add(8 * time.Hour), day.Add(17*time.Hour + 30*time.Minute)}

	first := AvailableSlots(booked)
	second := AvailableSlots(booked)
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d mismatch: %s vs %s", i, first[i], second[i])
		}
	}
	if len(first) != 18 {
		t.Fatalf("expected 18 slots with first and last taken, got %d", len(first))
	}
}

func TestAvailableSlots_FullDay(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start, end := DayWindow(day)

	var booked []time.Time
	for ts := start; ts.Before(end); ts = ts.Add(SlotInterval) {
		booked = append(booked, ts)
	}

	slots := AvailableSlots(booked)
	if slots == nil {
		t.Fatal("expected empty list, got nil")
	}
	if len(slots) != 0 {
		t.Fatalf("expected no free slots, got %d", len(slots))
	}
}

func TestDayWindow(t *testing.T) {
	day := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	start, end := DayWindow(day)
	if start.Hour() != 8 || end.Hour() != 18 {
		t.Fatalf("unexpected window: %s - %s", start, end)
	}
	if !end.After(start) {
		t.Fatal("window end must follow start")
	}
}
