// Package booking assigns appointments to closers.
package booking

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"homebase/api/internal/store"
)

// ErrNoCloserAvailable means every active closer is either outside working
// hours or already booked for the requested slot.
var ErrNoCloserAvailable = errors.New("no closer available for slot")

// PickCloser chooses the closer for a new appointment. Candidates must be
// active, working during the slot, and free of overlapping appointments.
// Among candidates the one with the fewest appointments that day wins,
// with name as a deterministic tie-break.
func PickCloser(closers []store.Closer, sameDay []store.Appointment, startsAt, endsAt time.Time) (store.Closer, error) {
	counts := make(map[string]int)
	busy := make(map[string]bool)
	for _, appt := range sameDay {
		counts[appt.CloserID]++
		if appt.StartsAt.Before(endsAt) && appt.EndsAt.After(startsAt) {
			busy[appt.CloserID] = true
		}
	}

	var candidates []store.Closer
	for _, closer := range closers {
		if !closer.Active || busy[closer.ID] {
			continue
		}
		if !withinWorkingHours(closer, startsAt, endsAt) {
			continue
		}
		candidates = append(candidates, closer)
	}

	if len(candidates) == 0 {
		return store.Closer{}, ErrNoCloserAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := counts[candidates[i].ID], counts[candidates[j].ID]
		if ci != cj {
			return ci < cj
		}
		return candidates[i].Name < candidates[j].Name
	})

	return candidates[0], nil
}

// withinWorkingHours checks the slot against the closer's "HH:MM" window.
// A closer without configured hours takes any slot.
func withinWorkingHours(closer store.Closer, startsAt, endsAt time.Time) bool {
	if closer.WorkStart == "" || closer.WorkEnd == "" {
		return true
	}

	workStart, err1 := minutesOfDay(closer.WorkStart)
	workEnd, err2 := minutesOfDay(closer.WorkEnd)
	if err1 != nil || err2 != nil {
		return true
	}

	slotStart := startsAt.UTC().Hour()*60 + startsAt.UTC().Minute()
	slotEnd := endsAt.UTC().Hour()*60 + endsAt.UTC().Minute()
	if slotEnd == 0 && endsAt.After(startsAt) {
		slotEnd = 24 * 60
	}

	return slotStart >= workStart && slotEnd <= workEnd
}

func minutesOfDay(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	return h*60 + m, nil
}
