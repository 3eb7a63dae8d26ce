package scheduling

import (
	"context"
	"errors"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/db"
)

// Service manages doctors and their availability windows.
type Service struct {
	doctors DoctorRepository
	windows AvailabilityRepository
	tx      db.Transactor
	audit   *audit.Recorder
}

func NewService(doctors DoctorRepository, windows AvailabilityRepository, tx db.Transactor, rec *audit.Recorder) *Service {
	return &Service{doctors: doctors, windows: windows, tx: tx, audit: rec}
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	if err := d.validate(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.doctors.Create(ctx, d); err != nil {
			return err
		}
		d.Availability = []*Availability{}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreateDoctor,
			ResourceType: audit.ResourceDoctor,
			ResourceID:   d.ID,
			Details: map[string]string{
				"first_name":     d.FirstName,
				"last_name":      d.LastName,
				"specialization": d.Specialization,
				"license_number": d.LicenseNumber,
			},
		})
	})
}

// GetDoctor returns the doctor with its availability windows.
func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	windows, err := s.windows.ListByDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Availability = nonNil(windows)
	return d, nil
}

// DoctorExists reports whether id names a doctor of the context tenant.
func (s *Service) DoctorExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.doctors.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrDoctorNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, u DoctorUpdate) (*Doctor, error) {
	var out *Doctor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.doctors.GetByID(ctx, id)
		if err != nil {
			return err
		}
		u.apply(d)
		if err := d.validate(); err != nil {
			return err
		}
		if err := s.doctors.Update(ctx, d); err != nil {
			return err
		}
		out = d
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionUpdateDoctor,
			ResourceType: audit.ResourceDoctor,
			ResourceID:   d.ID,
			Details:      u,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDoctor removes the doctor and, by cascade, its windows.
func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.doctors.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionDeleteDoctor,
			ResourceType: audit.ResourceDoctor,
			ResourceID:   id,
		})
	})
}

func (s *Service) ListDoctors(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, specialization, limit, offset)
}

// -- Availability --

func (s *Service) AddAvailability(ctx context.Context, a *Availability) error {
	if err := a.validate(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.doctors.GetByID(ctx, a.DoctorID); err != nil {
			return err
		}
		if err := s.windows.Create(ctx, a); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreateAvailability,
			ResourceType: audit.ResourceAvailability,
			ResourceID:   a.ID,
			Details: map[string]any{
				"doctor_id":    a.DoctorID,
				"day_of_week":  a.DayOfWeek,
				"start_time":   a.StartTime,
				"end_time":     a.EndTime,
				"is_available": a.IsAvailable,
			},
		})
	})
}

func (s *Service) ListAvailability(ctx context.Context, doctorID int64) ([]*Availability, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	windows, err := s.windows.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return nonNil(windows), nil
}

func (s *Service) DeleteAvailability(ctx context.Context, doctorID, id int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.windows.Delete(ctx, doctorID, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionDeleteAvailability,
			ResourceType: audit.ResourceAvailability,
			ResourceID:   id,
			Details:      map[string]int64{"doctor_id": doctorID},
		})
	})
}

func nonNil(w []*Availability) []*Availability {
	if w == nil {
		return []*Availability{}
	}
	return w
}
