package availability

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeConflictStore struct {
	taken     map[string]string // "vet@RFC3339" -> appointment id holding the slot
	err       error
	lastQuery struct {
		vetID     string
		at        time.Time
		excludeID string
	}
}

func (f *fakeConflictStore) ExistsActiveAt(_ context.Context, vetID string, at time.Time, excludeID string) (bool, error) {
	f.lastQuery.vetID = vetID
	f.lastQuery.at = at
	f.lastQuery.excludeID = excludeID
	if f.err != nil {
		return false, f.err
	}
	holder, ok := f.taken[vetID+"@"+at.UTC().Format(time.RFC3339)]
	if !ok {
		return false, nil
	}
	return holder != excludeID, nil
}

func fixedNowGuard(store ConflictStore, now time.Time) *Guard {
	g := NewGuard(store)
	g.now = func() time.Time { return now }
	return g
}

func TestValidateSchedule_PastDate(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	g := fixedNowGuard(&fakeConflictStore{}, now)

	err := g.ValidateSchedule(context.Background(), "vet-1", time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC), "")
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}

	// Exactly now is not strictly in the future either.
	if err := g.ValidateSchedule(context.Background(), "vet-1", now, ""); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for now, got %v", err)
	}
}

func TestValidateSchedule_FreeSlot(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	g := fixedNowGuard(&fakeConflictStore{}, now)

	if err := g.ValidateSchedule(context.Background(), "vet-1", now.Add(24*time.Hour), ""); err != nil {
		t.Fatalf("expected success for a free future slot, got %v", err)
	}
}

func TestValidateSchedule_Conflict(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	at := time.Date(2026, 1, 11, 10, 0, 0, 0, time.UTC)
	store := &fakeConflictStore{taken: map[string]string{
		"vet-1@" + at.Format(time.RFC3339): "appt-1",
	}}
	g := fixedNowGuard(store, now)

	err := g.ValidateSchedule(context.Background(), "vet-1", at, "")
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}

	// Another veterinarian is free at the same time.
	if err := g.ValidateSchedule(context.Background(), "vet-2", at, ""); err != nil {
		t.Fatalf("expected success for a different veterinarian, got %v", err)
	}
}

func TestValidateSchedule_ExcludesSelf(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	at := time.Date(2026, 1, 11, 10, 0, 0, 0, time.UTC)
	store := &fakeConflictStore{taken: map[string]string{
		"vet-1@" + at.Format(time.RFC3339): "appt-1",
	}}
	g := fixedNowGuard(store, now)

	// Editing appt-1 to its own timestamp must not conflict with itself.
	if err := g.ValidateSchedule(context.Background(), "vet-1", at, "appt-1"); err != nil {
		t.Fatalf("expected success when the only conflict is the excluded appointment, got %v", err)
	}
	if store.lastQuery.excludeID != "appt-1" {
		t.Fatalf("exclude id not forwarded to store: %q", store.lastQuery.excludeID)
	}
}

func TestValidateSchedule_StoreErrorPropagates(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	storeErr := errors.New("connection refused")
	g := fixedNowGuard(&fakeConflictStore{err: storeErr}, now)

	err := g.ValidateSchedule(context.Background(), "vet-1", now.Add(time.Hour), "")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrInvalidSchedule) {
		t.Fatal("infrastructure failures must not be reported as domain errors")
	}
}
