package scheduling

import (
	"context"

	"github.com/hmtp/hmtp/pkg/civil"
)

// Every repository is scoped to the context tenant. Rows of other tenants
// are reported as not found.

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error)
}

type AvailabilityRepository interface {
	Create(ctx context.Context, a *Availability) error
	Delete(ctx context.Context, doctorID, id int64) error
	ListByDoctor(ctx context.Context, doctorID int64) ([]*Availability, error)
	// ListForDay returns the doctor's windows on day, available or not.
	ListForDay(ctx context.Context, doctorID int64, day int) ([]*Availability, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	// ScheduledBetween returns the doctor's scheduled appointments strictly
	// inside (from, to).
	ScheduledBetween(ctx context.Context, doctorID int64, from, to civil.DateTime) ([]*Appointment, error)
}

// PatientDirectory answers patient existence within the context tenant.
type PatientDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
