package scheduling

import (
	"context"
	"time"

	"github.com/hmtp/hmtp/pkg/civil"
)

// ConflictBand is the half-width of the protected interval around a
// booking. Two appointments conflict when they are strictly closer than
// this, so bookings exactly ConflictBand apart are allowed.
const ConflictBand = 29 * time.Minute

// AvailabilityResolver decides whether a doctor's weekly windows cover an
// instant. Times are wall-clock; no timezone conversion happens.
type AvailabilityResolver struct {
	windows AvailabilityRepository
}

func NewAvailabilityResolver(windows AvailabilityRepository) *AvailabilityResolver {
	return &AvailabilityResolver{windows: windows}
}

func (r *AvailabilityResolver) IsAvailable(ctx context.Context, doctorID int64, at civil.DateTime) (bool, error) {
	day, tod := at.Weekday(), at.TimeOfDay()
	windows, err := r.windows.ListForDay(ctx, doctorID, day)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if w.Covers(day, tod) {
			return true, nil
		}
	}
	return false, nil
}

// ConflictDetector looks for scheduled bookings inside the protected band.
type ConflictDetector struct {
	appointments AppointmentRepository
}

func NewConflictDetector(appointments AppointmentRepository) *ConflictDetector {
	return &ConflictDetector{appointments: appointments}
}

// HasConflict reports whether another scheduled appointment of doctorID lies
// strictly within ConflictBand of at. excludeID, when non-zero, is ignored
// so an appointment never conflicts with itself.
func (d *ConflictDetector) HasConflict(ctx context.Context, doctorID int64, at civil.DateTime, excludeID int64) (bool, error) {
	nearby, err := d.appointments.ScheduledBetween(ctx, doctorID, at.Add(-ConflictBand), at.Add(ConflictBand))
	if err != nil {
		return false, err
	}
	for _, a := range nearby {
		if a.ID == excludeID || a.Status != StatusScheduled {
			continue
		}
		if gap := a.AppointmentDateTime.Sub(at); gap > -ConflictBand && gap < ConflictBand {
			return true, nil
		}
	}
	return false, nil
}
