package scheduling

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/events"
	"github.com/hmtp/hmtp/internal/platform/lock"
	"github.com/hmtp/hmtp/internal/platform/telemetry"
	"github.com/hmtp/hmtp/pkg/civil"
)

type BookingDeps struct {
	Appointments AppointmentRepository
	Doctors      DoctorRepository
	Windows      AvailabilityRepository
	Patients     PatientDirectory
	Tx           db.Transactor
	Locker       lock.Locker
	Audit        *audit.Recorder
	Notifier     *events.Notifier
}

// BookingCoordinator owns every appointment mutation. Checks and writes for
// one booking run in a single serializable transaction while holding the
// doctor's booking lock.
type BookingCoordinator struct {
	appointments AppointmentRepository
	doctors      DoctorRepository
	patients     PatientDirectory
	availability *AvailabilityResolver
	conflicts    *ConflictDetector
	tx           db.Transactor
	locker       lock.Locker
	audit        *audit.Recorder
	notifier     *events.Notifier
}

func NewBookingCoordinator(d BookingDeps) *BookingCoordinator {
	locker := d.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &BookingCoordinator{
		appointments: d.Appointments,
		doctors:      d.Doctors,
		patients:     d.Patients,
		availability: NewAvailabilityResolver(d.Windows),
		conflicts:    NewConflictDetector(d.Appointments),
		tx:           d.Tx,
		locker:       locker,
		audit:        d.Audit,
		notifier:     d.Notifier,
	}
}

func (b *BookingCoordinator) notify(ctx context.Context, tenantID, event string, a *Appointment) {
	if b.notifier != nil {
		b.notifier.Notify(ctx, tenantID, event, a)
	}
}

// checkSlot runs the availability check before the conflict check, so an
// unavailable doctor is reported as such whatever else is booked.
func (b *BookingCoordinator) checkSlot(ctx context.Context, doctorID int64, at civil.DateTime, excludeID int64) error {
	ok, err := b.availability.IsAvailable(ctx, doctorID, at)
	if err != nil {
		return apperr.Storage(err)
	}
	if !ok {
		return ErrDoctorUnavailable
	}
	clash, err := b.conflicts.HasConflict(ctx, doctorID, at, excludeID)
	if err != nil {
		return apperr.Storage(err)
	}
	if clash {
		return ErrSchedulingConflict
	}
	return nil
}

func (b *BookingCoordinator) requireDoctor(ctx context.Context, id int64) error {
	if _, err := b.doctors.GetByID(ctx, id); err != nil {
		return err
	}
	return nil
}

// Create books a new appointment. Failures are reported in this order:
// patient, doctor, availability, conflict.
func (b *BookingCoordinator) Create(ctx context.Context, a *Appointment) (err error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	ctx, span := telemetry.StartSpan(ctx, "booking.create", tenantID,
		attribute.Int64("doctor_id", a.DoctorID), attribute.Int64("patient_id", a.PatientID))
	defer func() {
		telemetry.BookingAttempts.WithLabelValues(telemetry.Outcome("booked", err)).Inc()
		telemetry.End(span, err)
	}()

	switch {
	case a.PatientID <= 0:
		return apperr.Validation("patient_id is required")
	case a.DoctorID <= 0:
		return apperr.Validation("doctor_id is required")
	case a.AppointmentDateTime.IsZero():
		return apperr.Validation("appointment_datetime is required")
	}
	a.ID = 0
	a.Status = StatusScheduled

	err = b.locker.WithDoctorLock(ctx, tenantID, a.DoctorID, func(ctx context.Context) error {
		return b.tx.InTx(ctx, func(ctx context.Context) error {
			exists, err := b.patients.Exists(ctx, a.PatientID)
			if err != nil {
				return apperr.Storage(err)
			}
			if !exists {
				return ErrPatientNotFound
			}
			if err := b.requireDoctor(ctx, a.DoctorID); err != nil {
				return err
			}
			if err := b.checkSlot(ctx, a.DoctorID, a.AppointmentDateTime, 0); err != nil {
				return err
			}
			if err := b.appointments.Create(ctx, a); err != nil {
				return err
			}
			return b.audit.Record(ctx, audit.Event{
				Action:       audit.ActionCreateAppointment,
				ResourceType: audit.ResourceAppointment,
				ResourceID:   a.ID,
				Details: map[string]any{
					"patient_id":           a.PatientID,
					"doctor_id":            a.DoctorID,
					"appointment_datetime": a.AppointmentDateTime,
					"reason":               a.Reason,
					"notes":                a.Notes,
				},
			})
		}, db.Serializable())
	})
	if err != nil {
		return err
	}
	b.notify(ctx, tenantID, events.AppointmentBooked, a)
	return nil
}

// Update applies a partial change. The slot is re-validated, excluding the
// appointment itself, when the result is scheduled and the doctor or time
// moved or the appointment came back from another status.
func (b *BookingCoordinator) Update(ctx context.Context, id int64, u AppointmentUpdate) (out *Appointment, err error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	if err := u.validate(); err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartSpan(ctx, "booking.update", tenantID, attribute.Int64("appointment_id", id))
	defer func() { telemetry.End(span, err) }()

	current, err := b.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doctorID := current.DoctorID
	if u.DoctorID != nil {
		doctorID = *u.DoctorID
	}

	err = b.locker.WithDoctorLock(ctx, tenantID, doctorID, func(ctx context.Context) error {
		return b.tx.InTx(ctx, func(ctx context.Context) error {
			a, err := b.appointments.GetByID(ctx, id)
			if err != nil {
				return err
			}
			doctorChanged := u.DoctorID != nil && *u.DoctorID != a.DoctorID
			moved := doctorChanged ||
				(u.AppointmentDateTime != nil && !u.AppointmentDateTime.Equal(a.AppointmentDateTime))
			reopened := a.Status != StatusScheduled
			u.apply(a)

			if doctorChanged {
				if err := b.requireDoctor(ctx, a.DoctorID); err != nil {
					return err
				}
			}
			if a.Status == StatusScheduled && (moved || reopened) {
				if err := b.checkSlot(ctx, a.DoctorID, a.AppointmentDateTime, a.ID); err != nil {
					return err
				}
			}
			if err := b.appointments.Update(ctx, a); err != nil {
				return err
			}
			out = a
			return b.audit.Record(ctx, audit.Event{
				Action:       audit.ActionUpdateAppointment,
				ResourceType: audit.ResourceAppointment,
				ResourceID:   a.ID,
				Details:      u,
			})
		}, db.Serializable())
	})
	if err != nil {
		return nil, err
	}

	event := events.AppointmentUpdated
	if out.Status == StatusCancelled && current.Status != StatusCancelled {
		event = events.AppointmentCancelled
	}
	b.notify(ctx, tenantID, event, out)
	return out, nil
}

// Cancel moves a scheduled appointment to cancelled. The row is kept.
func (b *BookingCoordinator) Cancel(ctx context.Context, id int64) (*Appointment, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	var out *Appointment
	err = b.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := b.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusScheduled {
			return ErrNotScheduled
		}
		previous := a.Status
		a.Status = StatusCancelled
		if err := b.appointments.Update(ctx, a); err != nil {
			return err
		}
		out = a
		return b.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCancelAppointment,
			ResourceType: audit.ResourceAppointment,
			ResourceID:   a.ID,
			Details:      map[string]string{"previous_status": previous},
		})
	})
	if err != nil {
		return nil, err
	}
	b.notify(ctx, tenantID, events.AppointmentCancelled, out)
	return out, nil
}

// Delete removes the appointment row. Reserved for administrators.
func (b *BookingCoordinator) Delete(ctx context.Context, id int64) error {
	return b.tx.InTx(ctx, func(ctx context.Context) error {
		if err := b.appointments.Delete(ctx, id); err != nil {
			return err
		}
		return b.audit.Record(ctx, audit.Event{
			Action:       audit.ActionDeleteAppointment,
			ResourceType: audit.ResourceAppointment,
			ResourceID:   id,
		})
	})
}

func (b *BookingCoordinator) Get(ctx context.Context, id int64) (*Appointment, error) {
	return b.appointments.GetByID(ctx, id)
}

func (b *BookingCoordinator) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status: %s", f.Status)
	}
	return b.appointments.List(ctx, f, limit, offset)
}

// Check reports what a booking at at would run into without booking.
func (b *BookingCoordinator) Check(ctx context.Context, doctorID int64, at civil.DateTime) (*AvailabilityCheck, error) {
	if at.IsZero() {
		return nil, apperr.Validation("at is required")
	}
	if err := b.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	res := &AvailabilityCheck{DoctorID: doctorID, At: at}
	var err error
	if res.Available, err = b.availability.IsAvailable(ctx, doctorID, at); err != nil {
		return nil, apperr.Storage(err)
	}
	if res.HasConflict, err = b.conflicts.HasConflict(ctx, doctorID, at, 0); err != nil {
		return nil, apperr.Storage(err)
	}
	res.Bookable = res.Available && !res.HasConflict
	return res, nil
}
