package availability

import "time"

// The clinic workday is a fixed 08:00-18:00 window sliced into 30-minute
// slots. 18:00 itself is never a bookable start, so a day yields 20
// candidate slots.
const (
	WorkdayStartHour = 8
	WorkdayEndHour   = 18
	SlotInterval     = 30 * time.Minute
)

const slotFormat = "15:04"

// DayWindow returns the [start, end) workday window for the given
// calendar date in UTC.
func DayWindow(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), WorkdayStartHour, 0, 0, 0, time.UTC)
	end := time.Date(date.Year(), date.Month(), date.Day(), WorkdayEndHour, 0, 0, 0, time.UTC)
	return start, end
}

// SlotGrid enumerates every slot start of the workday as an "HH:MM"
// string in ascending order.
func SlotGrid() []string {
	start := time.Date(0, 1, 1, WorkdayStartHour, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, WorkdayEndHour, 0, 0, 0, time.UTC)

	var grid []string
	for t := start; t.Before(end); t = t.Add(SlotInterval) {
		grid = append(grid, t.Format(slotFormat))
	}
	return grid
}

// AvailableSlots returns the workday slot grid minus the time-of-day of
// each booked timestamp, preserving grid order. Both sides are
// normalized to UTC "HH:MM" before comparing; booked timestamps with
// seconds or sub-minute precision still knock out their slot.
//
// A day with every slot taken yields an empty (non-nil) list, never an
// error.
func AvailableSlots(booked []time.Time) []string {
	occupied := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		occupied[b.UTC().Format(slotFormat)] = struct{}{}
	}

	grid := SlotGrid()
	free := make([]string, 0, len(grid))
	for _, slot := range grid {
		if _, taken := occupied[slot]; taken {
			continue
		}
		free = append(free, slot)
	}
	return free
}
