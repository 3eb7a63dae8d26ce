package scheduling

import (
	"strings"
	"time"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/pkg/civil"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

var (
	ErrDoctorNotFound       = apperr.New(apperr.KindNotFound, "doctor_not_found", "doctor not found")
	ErrPatientNotFound      = apperr.New(apperr.KindNotFound, "patient_not_found", "patient not found")
	ErrAppointmentNotFound  = apperr.New(apperr.KindNotFound, "appointment_not_found", "appointment not found")
	ErrAvailabilityNotFound = apperr.New(apperr.KindNotFound, "availability_not_found", "availability window not found")

	ErrDoctorUnavailable  = apperr.New(apperr.KindValidation, "doctor_unavailable", "doctor is not available at the requested time")
	ErrSchedulingConflict = apperr.New(apperr.KindConflict, "scheduling_conflict", "doctor has a conflicting appointment")
	ErrNotScheduled       = apperr.New(apperr.KindConflict, "appointment_not_scheduled", "only scheduled appointments can be cancelled")

	ErrLicenseTaken = apperr.New(apperr.KindConflict, "license_taken", "license number already registered")
	ErrDoctorInUse  = apperr.New(apperr.KindConflict, "doctor_in_use", "doctor has appointments or prescriptions")
)

type Doctor struct {
	ID             int64           `db:"id" json:"id"`
	TenantID       string          `db:"tenant_id" json:"tenant_id"`
	FirstName      string          `db:"first_name" json:"first_name"`
	LastName       string          `db:"last_name" json:"last_name"`
	Specialization string          `db:"specialization" json:"specialization"`
	LicenseNumber  string          `db:"license_number" json:"license_number"`
	Phone          *string         `db:"phone" json:"phone,omitempty"`
	Email          *string         `db:"email" json:"email,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	Availability   []*Availability `json:"availability"`
}

func (d *Doctor) validate() error {
	switch {
	case strings.TrimSpace(d.FirstName) == "":
		return apperr.Validation("first_name is required")
	case strings.TrimSpace(d.LastName) == "":
		return apperr.Validation("last_name is required")
	case strings.TrimSpace(d.Specialization) == "":
		return apperr.Validation("specialization is required")
	case strings.TrimSpace(d.LicenseNumber) == "":
		return apperr.Validation("license_number is required")
	}
	return nil
}

// DoctorUpdate carries the fields of a partial update.
type DoctorUpdate struct {
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	LicenseNumber  *string `json:"license_number,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Email          *string `json:"email,omitempty"`
}

func (u DoctorUpdate) apply(d *Doctor) {
	if u.FirstName != nil {
		d.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		d.LastName = *u.LastName
	}
	if u.Specialization != nil {
		d.Specialization = *u.Specialization
	}
	if u.LicenseNumber != nil {
		d.LicenseNumber = *u.LicenseNumber
	}
	if u.Phone != nil {
		d.Phone = u.Phone
	}
	if u.Email != nil {
		d.Email = u.Email
	}
}

// Availability is a recurring weekly window. DayOfWeek counts from
// Monday=0. Windows of one doctor may overlap.
type Availability struct {
	ID          int64           `db:"id" json:"id"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	DoctorID    int64           `db:"doctor_id" json:"doctor_id"`
	DayOfWeek   int             `db:"day_of_week" json:"day_of_week"`
	StartTime   civil.TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     civil.TimeOfDay `db:"end_time" json:"end_time"`
	IsAvailable bool            `db:"is_available" json:"is_available"`
}

func (a *Availability) validate() error {
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return apperr.Validation("day_of_week must be between 0 (Monday) and 6 (Sunday)")
	}
	if !a.StartTime.Before(a.EndTime) {
		return apperr.Validation("start_time must be before end_time")
	}
	return nil
}

// Covers reports whether the window is open at tod on day.
func (a *Availability) Covers(day int, tod civil.TimeOfDay) bool {
	return a.IsAvailable && a.DayOfWeek == day &&
		a.StartTime.Compare(tod) <= 0 && tod.Before(a.EndTime)
}

type Appointment struct {
	ID                  int64          `db:"id" json:"id"`
	TenantID            string         `db:"tenant_id" json:"tenant_id"`
	PatientID           int64          `db:"patient_id" json:"patient_id"`
	DoctorID            int64          `db:"doctor_id" json:"doctor_id"`
	AppointmentDateTime civil.DateTime `db:"appointment_datetime" json:"appointment_datetime"`
	Status              string         `db:"status" json:"status"`
	Reason              *string        `db:"reason" json:"reason,omitempty"`
	Notes               *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// AppointmentUpdate carries the fields of a partial update.
type AppointmentUpdate struct {
	DoctorID            *int64          `json:"doctor_id,omitempty"`
	AppointmentDateTime *civil.DateTime `json:"appointment_datetime,omitempty"`
	Status              *string         `json:"status,omitempty"`
	Reason              *string         `json:"reason,omitempty"`
	Notes               *string         `json:"notes,omitempty"`
}

func (u AppointmentUpdate) validate() error {
	if u.DoctorID != nil && *u.DoctorID <= 0 {
		return apperr.Validation("doctor_id must be positive")
	}
	if u.AppointmentDateTime != nil && u.AppointmentDateTime.IsZero() {
		return apperr.Validation("appointment_datetime cannot be empty")
	}
	if u.Status != nil && !validStatuses[*u.Status] {
		return apperr.Validation("invalid status: %s", *u.Status)
	}
	return nil
}

func (u AppointmentUpdate) apply(a *Appointment) {
	if u.DoctorID != nil {
		a.DoctorID = *u.DoctorID
	}
	if u.AppointmentDateTime != nil {
		a.AppointmentDateTime = *u.AppointmentDateTime
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Reason != nil {
		a.Reason = u.Reason
	}
	if u.Notes != nil {
		a.Notes = u.Notes
	}
}

// AppointmentFilter narrows List. Zero values match everything; From and To
// bound appointment_datetime inclusively.
type AppointmentFilter struct {
	DoctorID  int64
	PatientID int64
	Status    string
	From      civil.DateTime
	To        civil.DateTime
}

// AvailabilityCheck answers whether a booking at At would pass the
// availability and conflict checks.
type AvailabilityCheck struct {
	DoctorID    int64          `json:"doctor_id"`
	At          civil.DateTime `json:"at"`
	Available   bool           `json:"available"`
	HasConflict bool           `json:"has_conflict"`
	Bookable    bool           `json:"bookable"`
}
