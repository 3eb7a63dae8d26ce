package audit

import (
	"encoding/json"
	"time"
)

// Actions recorded by mutating operations.
const (
	ActionCreatePatient            = "CREATE_PATIENT"
	ActionUpdatePatient            = "UPDATE_PATIENT"
	ActionDeletePatient            = "DELETE_PATIENT"
	ActionCreateDoctor             = "CREATE_DOCTOR"
	ActionUpdateDoctor             = "UPDATE_DOCTOR"
	ActionDeleteDoctor             = "DELETE_DOCTOR"
	ActionCreateAvailability       = "CREATE_DOCTOR_AVAILABILITY"
	ActionDeleteAvailability       = "DELETE_DOCTOR_AVAILABILITY"
	ActionCreateAppointment        = "CREATE_APPOINTMENT"
	ActionUpdateAppointment        = "UPDATE_APPOINTMENT"
	ActionCancelAppointment        = "CANCEL_APPOINTMENT"
	ActionDeleteAppointment        = "DELETE_APPOINTMENT"
	ActionCreateMedicine           = "CREATE_MEDICINE"
	ActionUpdateMedicine           = "UPDATE_MEDICINE"
	ActionCreatePrescription       = "CREATE_PRESCRIPTION"
	ActionUpdatePrescriptionStatus = "UPDATE_PRESCRIPTION_STATUS"
	ActionDispenseMedicine         = "DISPENSE_MEDICINE"
	ActionCreateInvoice            = "CREATE_INVOICE"
	ActionCreatePayment            = "CREATE_PAYMENT"
	ActionSubmitInsuranceClaim     = "SUBMIT_INSURANCE_CLAIM"
	ActionRegisterUser             = "REGISTER_USER"
)

// Resource types.
const (
	ResourcePatient      = "patient"
	ResourceDoctor       = "doctor"
	ResourceAvailability = "doctor_availability"
	ResourceAppointment  = "appointment"
	ResourceMedicine     = "medicine"
	ResourcePrescription = "prescription"
	ResourceInvoice      = "invoice"
	ResourcePayment      = "payment"
	ResourceClaim        = "insurance_claim"
	ResourceUser         = "user"
)

// Entry maps to the append-only audit_logs table.
type Entry struct {
	ID           int64           `db:"id" json:"id"`
	TenantID     string          `db:"tenant_id" json:"tenant_id"`
	UserID       *int64          `db:"user_id" json:"user_id,omitempty"`
	Action       string          `db:"action" json:"action"`
	ResourceType *string         `db:"resource_type" json:"resource_type,omitempty"`
	ResourceID   *int64          `db:"resource_id" json:"resource_id,omitempty"`
	Details      json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress    *string         `db:"ip_address" json:"ip_address,omitempty"`
	RequestID    *string         `db:"request_id" json:"request_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Event is what a mutating operation hands to Record. Zero TenantID and
// UserID default to the request's tenant and principal.
type Event struct {
	TenantID     string
	UserID       int64
	Action       string
	ResourceType string
	ResourceID   int64
	Details      any
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Action       string
	ResourceType string
	ResourceID   int64
	UserID       int64
}
