package patient

import (
	"strings"
	"time"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/pkg/civil"
)

var (
	ErrNotFound = apperr.New(apperr.KindNotFound, "patient_not_found", "patient not found")
	ErrInUse    = apperr.New(apperr.KindConflict, "patient_in_use",
		"patient has appointments, prescriptions or invoices")
)

type Patient struct {
	ID          int64      `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	DateOfBirth civil.Date `db:"date_of_birth" json:"date_of_birth"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Update carries the fields of a partial update. Nil fields are left as is.
type Update struct {
	FirstName   *string     `json:"first_name,omitempty"`
	LastName    *string     `json:"last_name,omitempty"`
	DateOfBirth *civil.Date `json:"date_of_birth,omitempty"`
	Gender      *string     `json:"gender,omitempty"`
	Phone       *string     `json:"phone,omitempty"`
	Email       *string     `json:"email,omitempty"`
	Address     *string     `json:"address,omitempty"`
}

func (u Update) apply(p *Patient) {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.DateOfBirth != nil {
		p.DateOfBirth = *u.DateOfBirth
	}
	if u.Gender != nil {
		p.Gender = u.Gender
	}
	if u.Phone != nil {
		p.Phone = u.Phone
	}
	if u.Email != nil {
		p.Email = u.Email
	}
	if u.Address != nil {
		p.Address = u.Address
	}
}

func (p *Patient) validate() error {
	if strings.TrimSpace(p.FirstName) == "" {
		return apperr.Validation("first_name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return apperr.Validation("last_name is required")
	}
	return nil
}
