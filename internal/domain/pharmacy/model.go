package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/pkg/civil"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var validStatuses = map[string]bool{StatusActive: true, StatusCompleted: true, StatusCancelled: true}

var (
	ErrMedicineNotFound     = apperr.New(apperr.KindNotFound, "medicine_not_found", "medicine not found")
	ErrPrescriptionNotFound = apperr.New(apperr.KindNotFound, "prescription_not_found", "prescription not found")
	ErrPatientNotFound      = apperr.New(apperr.KindNotFound, "patient_not_found", "patient not found")
	ErrDoctorNotFound       = apperr.New(apperr.KindNotFound, "doctor_not_found", "doctor not found")

	ErrPrescriptionNotActive = apperr.New(apperr.KindConflict, "prescription_not_active", "prescription is not active")
	ErrInsufficientStock     = apperr.New(apperr.KindConflict, "insufficient_stock", "insufficient stock")
)

type Medicine struct {
	ID           int64      `db:"id" json:"id"`
	TenantID     string     `db:"tenant_id" json:"tenant_id"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Manufacturer *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	Quantity     int        `db:"quantity" json:"quantity"`
	UnitPrice    float64    `db:"unit_price" json:"unit_price"`
	ExpiryDate   civil.Date `db:"expiry_date" json:"expiry_date"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (m *Medicine) validate() error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return apperr.Validation("name is required")
	case m.Quantity < 0:
		return apperr.Validation("quantity cannot be negative")
	case m.UnitPrice < 0:
		return apperr.Validation("unit_price cannot be negative")
	}
	return nil
}

// MedicineUpdate carries the fields of a partial update.
type MedicineUpdate struct {
	Name         *string     `json:"name,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Manufacturer *string     `json:"manufacturer,omitempty"`
	Quantity     *int        `json:"quantity,omitempty"`
	UnitPrice    *float64    `json:"unit_price,omitempty"`
	ExpiryDate   *civil.Date `json:"expiry_date,omitempty"`
}

func (u MedicineUpdate) apply(m *Medicine) {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Description != nil {
		m.Description = u.Description
	}
	if u.Manufacturer != nil {
		m.Manufacturer = u.Manufacturer
	}
	if u.Quantity != nil {
		m.Quantity = *u.Quantity
	}
	if u.UnitPrice != nil {
		m.UnitPrice = *u.UnitPrice
	}
	if u.ExpiryDate != nil {
		m.ExpiryDate = *u.ExpiryDate
	}
}

type Prescription struct {
	ID           int64     `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	PatientID    int64     `db:"patient_id" json:"patient_id"`
	DoctorID     int64     `db:"doctor_id" json:"doctor_id"`
	MedicineID   int64     `db:"medicine_id" json:"medicine_id"`
	Dosage       string    `db:"dosage" json:"dosage"`
	Frequency    string    `db:"frequency" json:"frequency"`
	Duration     string    `db:"duration" json:"duration"`
	Instructions *string   `db:"instructions" json:"instructions,omitempty"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Prescription) validate() error {
	switch {
	case p.PatientID <= 0:
		return apperr.Validation("patient_id is required")
	case p.DoctorID <= 0:
		return apperr.Validation("doctor_id is required")
	case p.MedicineID <= 0:
		return apperr.Validation("medicine_id is required")
	case strings.TrimSpace(p.Dosage) == "":
		return apperr.Validation("dosage is required")
	case strings.TrimSpace(p.Frequency) == "":
		return apperr.Validation("frequency is required")
	case strings.TrimSpace(p.Duration) == "":
		return apperr.Validation("duration is required")
	case !validStatuses[p.Status]:
		return apperr.Validation("invalid status: %s", p.Status)
	}
	return nil
}

// DispenseResult is returned by a successful dispense.
type DispenseResult struct {
	PrescriptionID int64 `json:"prescription_id"`
	MedicineID     int64 `json:"medicine_id"`
	Quantity       int   `json:"quantity"`
	RemainingStock int   `json:"remaining_stock"`
}

// Directory answers existence within the context tenant.
type Directory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// ExistsFunc adapts a function to Directory.
type ExistsFunc func(ctx context.Context, id int64) (bool, error)

func (f ExistsFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }
