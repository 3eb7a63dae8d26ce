package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/pkg/civil"
)

const (
	InvoicePending   = "pending"
	InvoicePartial   = "partial"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"

	ClaimSubmitted = "submitted"
	ClaimApproved  = "approved"
	ClaimRejected  = "rejected"
)

var (
	ErrInvoiceNotFound = apperr.New(apperr.KindNotFound, "invoice_not_found", "invoice not found")
	ErrPatientNotFound = apperr.New(apperr.KindNotFound, "patient_not_found", "patient not found")
	ErrInvoiceSettled  = apperr.New(apperr.KindConflict, "invoice_settled", "invoice is already paid")
	ErrInvoiceCanceled = apperr.New(apperr.KindConflict, "invoice_cancelled", "invoice is cancelled")
)

// roundCents rounds to two decimal places, matching NUMERIC(12,2).
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type Invoice struct {
	ID          int64      `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	PatientID   int64      `db:"patient_id" json:"patient_id"`
	TotalAmount float64    `db:"total_amount" json:"total_amount"`
	Tax         float64    `db:"tax" json:"tax"`
	Discount    float64    `db:"discount" json:"discount"`
	FinalAmount float64    `db:"final_amount" json:"final_amount"`
	Status      string     `db:"status" json:"status"`
	DueDate     civil.Date `db:"due_date" json:"due_date"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// price validates the amounts and fills FinalAmount and Status. Any
// final_amount supplied by the client is ignored.
func (i *Invoice) price() error {
	switch {
	case i.PatientID <= 0:
		return apperr.Validation("patient_id is required")
	case i.TotalAmount < 0:
		return apperr.Validation("total_amount cannot be negative")
	case i.Tax < 0:
		return apperr.Validation("tax cannot be negative")
	case i.Discount < 0:
		return apperr.Validation("discount cannot be negative")
	}
	i.TotalAmount, i.Tax, i.Discount = roundCents(i.TotalAmount), roundCents(i.Tax), roundCents(i.Discount)
	i.FinalAmount = roundCents(i.TotalAmount + i.Tax - i.Discount)
	if i.FinalAmount < 0 {
		return apperr.Validation("discount exceeds total plus tax")
	}
	i.Status = InvoicePending
	return nil
}

type Payment struct {
	ID            int64     `db:"id" json:"id"`
	TenantID      string    `db:"tenant_id" json:"tenant_id"`
	InvoiceID     int64     `db:"invoice_id" json:"invoice_id"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	TransactionID *string   `db:"transaction_id" json:"transaction_id,omitempty"`
	PaidAt        time.Time `db:"paid_at" json:"paid_at"`
}

func (p *Payment) validate() error {
	p.PaymentMethod = strings.TrimSpace(p.PaymentMethod)
	p.Amount = roundCents(p.Amount)
	switch {
	case p.InvoiceID <= 0:
		return apperr.Validation("invoice_id is required")
	case p.Amount <= 0:
		return apperr.Validation("amount must be positive")
	case p.PaymentMethod == "":
		return apperr.Validation("payment_method is required")
	}
	return nil
}

// settle returns the invoice status implied by the amount paid so far.
func settle(final, paid float64) string {
	if roundCents(paid) >= final {
		return InvoicePaid
	}
	return InvoicePartial
}

type Claim struct {
	ID             int64     `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	InvoiceID      int64     `db:"invoice_id" json:"invoice_id"`
	ProviderName   string    `db:"provider_name" json:"provider_name"`
	PolicyNumber   string    `db:"policy_number" json:"policy_number"`
	ClaimAmount    float64   `db:"claim_amount" json:"claim_amount"`
	Status         string    `db:"status" json:"status"`
	SubmissionDate time.Time `db:"submission_date" json:"submission_date"`
}

func (c *Claim) validate() error {
	c.ProviderName = strings.TrimSpace(c.ProviderName)
	c.PolicyNumber = strings.TrimSpace(c.PolicyNumber)
	c.ClaimAmount = roundCents(c.ClaimAmount)
	switch {
	case c.InvoiceID <= 0:
		return apperr.Validation("invoice_id is required")
	case c.ProviderName == "":
		return apperr.Validation("provider_name is required")
	case c.PolicyNumber == "":
		return apperr.Validation("policy_number is required")
	case c.ClaimAmount < 0:
		return apperr.Validation("claim_amount cannot be negative")
	}
	return nil
}

// PatientDirectory answers whether a patient exists in the context tenant.
type PatientDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
