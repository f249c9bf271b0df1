package availability

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidSchedule means the requested timestamp is not strictly in
	// the future.
	ErrInvalidSchedule = errors.New("the appointment date must be in the future")
	// ErrSlotConflict means an active appointment already occupies the
	// exact requested timestamp for that veterinarian.
	ErrSlotConflict = errors.New("the selected time slot is not available")
	// ErrInvalidState means a mutation was attempted on an appointment
	// whose status no longer permits it.
	ErrInvalidState = errors.New("the appointment state does not allow this operation")
)

// ConflictStore answers whether an active (non-cancelled) appointment
// exists for a veterinarian at an exact timestamp. excludeID, when
// non-empty, is left out of the check so an appointment being edited
// does not conflict with itself.
type ConflictStore interface {
	ExistsActiveAt(ctx context.Context, veterinarianID string, at time.Time, excludeID string) (bool, error)
}

// Guard validates new and edited appointment times against the
// temporal-ordering and overlap rules. It never writes; the caller must
// persist inside the same transaction that backs the ConflictStore so
// the check and the insert cannot be split across units of work.
type Guard struct {
	store ConflictStore
	now   func() time.Time
}

func NewGuard(store ConflictStore) *Guard {
	return &Guard{store: store, now: time.Now}
}

// ValidateSchedule authorizes booking veterinarianID at the exact
// timestamp at. It fails with ErrInvalidSchedule for past or present
// timestamps and ErrSlotConflict when another active appointment holds
// the slot. Store failures propagate unchanged.
func (g *Guard) ValidateSchedule(ctx context.Context, veterinarianID string, at time.Time, excludeID string) error {
	if !at.After(g.now()) {
		return ErrInvalidSchedule
	}

	taken, err := g.store.ExistsActiveAt(ctx, veterinarianID, at, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotConflict
	}
	return nil
}
