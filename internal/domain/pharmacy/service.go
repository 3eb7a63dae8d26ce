package pharmacy

import (
	"context"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
)

type Service struct {
	medicines     MedicineRepository
	prescriptions PrescriptionRepository
	patients      Directory
	doctors       Directory
	tx            db.Transactor
	audit         *audit.Recorder
}

func NewService(meds MedicineRepository, rx PrescriptionRepository, patients, doctors Directory, tx db.Transactor, rec *audit.Recorder) *Service {
	return &Service{medicines: meds, prescriptions: rx, patients: patients, doctors: doctors, tx: tx, audit: rec}
}

// -- Medicine --

func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	if err := m.validate(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.medicines.Create(ctx, m); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreateMedicine,
			ResourceType: audit.ResourceMedicine,
			ResourceID:   m.ID,
			Details: map[string]any{
				"name":       m.Name,
				"quantity":   m.Quantity,
				"unit_price": m.UnitPrice,
			},
		})
	})
}

func (s *Service) GetMedicine(ctx context.Context, id int64) (*Medicine, error) {
	return s.medicines.GetByID(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context, search string, limit, offset int) ([]*Medicine, int, error) {
	return s.medicines.List(ctx, search, limit, offset)
}

func (s *Service) UpdateMedicine(ctx context.Context, id int64, u MedicineUpdate) (*Medicine, error) {
	var out *Medicine
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		m, err := s.medicines.GetByID(ctx, id)
		if err != nil {
			return err
		}
		u.apply(m)
		if err := m.validate(); err != nil {
			return err
		}
		if err := s.medicines.Update(ctx, m); err != nil {
			return err
		}
		out = m
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionUpdateMedicine,
			ResourceType: audit.ResourceMedicine,
			ResourceID:   m.ID,
			Details:      u,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -- Prescription --

func (s *Service) exists(ctx context.Context, dir Directory, id int64, notFound error) error {
	ok, err := dir.Exists(ctx, id)
	if err != nil {
		return apperr.Storage(err)
	}
	if !ok {
		return notFound
	}
	return nil
}

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.Status == "" {
		p.Status = StatusActive
	}
	if err := p.validate(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.exists(ctx, s.patients, p.PatientID, ErrPatientNotFound); err != nil {
			return err
		}
		if err := s.exists(ctx, s.doctors, p.DoctorID, ErrDoctorNotFound); err != nil {
			return err
		}
		if _, err := s.medicines.GetByID(ctx, p.MedicineID); err != nil {
			return err
		}
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreatePrescription,
			ResourceType: audit.ResourcePrescription,
			ResourceID:   p.ID,
			Details: map[string]any{
				"patient_id":  p.PatientID,
				"doctor_id":   p.DoctorID,
				"medicine_id": p.MedicineID,
				"dosage":      p.Dosage,
				"frequency":   p.Frequency,
				"duration":    p.Duration,
			},
		})
	})
}

func (s *Service) GetPrescription(ctx context.Context, id int64) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error) {
	if patientID <= 0 {
		return nil, 0, apperr.Validation("patient_id is required")
	}
	return s.prescriptions.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) UpdatePrescriptionStatus(ctx context.Context, id int64, status string) (*Prescription, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	var out *Prescription
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		prev, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p, err := s.prescriptions.UpdateStatus(ctx, id, status)
		if err != nil {
			return err
		}
		out = p
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionUpdatePrescriptionStatus,
			ResourceType: audit.ResourcePrescription,
			ResourceID:   id,
			Details:      map[string]string{"from": prev.Status, "to": status},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
