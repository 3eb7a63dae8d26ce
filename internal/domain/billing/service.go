package billing

import (
	"context"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
)

type Service struct {
	invoices InvoiceRepository
	payments PaymentRepository
	claims   ClaimRepository
	patients PatientDirectory
	tx       db.Transactor
	audit    *audit.Recorder
}

func NewService(inv InvoiceRepository, pay PaymentRepository, cl ClaimRepository, patients PatientDirectory, tx db.Transactor, rec *audit.Recorder) *Service {
	return &Service{invoices: inv, payments: pay, claims: cl, patients: patients, tx: tx, audit: rec}
}

// -- Invoice --

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if err := inv.price(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.patients.Exists(ctx, inv.PatientID)
		if err != nil {
			return apperr.Storage(err)
		}
		if !ok {
			return ErrPatientNotFound
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreateInvoice,
			ResourceType: audit.ResourceInvoice,
			ResourceID:   inv.ID,
			Details: map[string]any{
				"patient_id":   inv.PatientID,
				"total_amount": inv.TotalAmount,
				"tax":          inv.Tax,
				"discount":     inv.Discount,
				"final_amount": inv.FinalAmount,
			},
		})
	})
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, patientID int64, limit, offset int) ([]*Invoice, int, error) {
	if patientID <= 0 {
		return nil, 0, apperr.Validation("patient_id is required")
	}
	return s.invoices.ListByPatient(ctx, patientID, limit, offset)
}

// -- Payment --

// RecordPayment books p against its invoice and moves the invoice to paid
// once the payments cover the final amount, partial otherwise. The invoice
// row is held for the whole transaction so concurrent payments settle in
// order.
func (s *Service) RecordPayment(ctx context.Context, p *Payment) (*Invoice, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	var out *Invoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		switch inv.Status {
		case InvoiceCancelled:
			return ErrInvoiceCanceled
		case InvoicePaid:
			return ErrInvoiceSettled
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		paid, err := s.payments.SumForInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		status := settle(inv.FinalAmount, paid)
		if status != inv.Status {
			if err := s.invoices.SetStatus(ctx, inv.ID, status); err != nil {
				return err
			}
			inv.Status = status
		}
		out = inv
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreatePayment,
			ResourceType: audit.ResourcePayment,
			ResourceID:   p.ID,
			Details: map[string]any{
				"invoice_id":     p.InvoiceID,
				"amount":         p.Amount,
				"payment_method": p.PaymentMethod,
				"invoice_status": status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]*Payment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.payments.ListByInvoice(ctx, invoiceID)
}

// -- Insurance claim --

func (s *Service) SubmitClaim(ctx context.Context, c *Claim) error {
	if err := c.validate(); err != nil {
		return err
	}
	c.Status = ClaimSubmitted
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetByID(ctx, c.InvoiceID)
		if err != nil {
			return err
		}
		if c.ClaimAmount > inv.FinalAmount {
			return apperr.Validation("claim_amount exceeds the invoice final amount")
		}
		if err := s.claims.Create(ctx, c); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionSubmitInsuranceClaim,
			ResourceType: audit.ResourceClaim,
			ResourceID:   c.ID,
			Details: map[string]any{
				"invoice_id":    c.InvoiceID,
				"provider_name": c.ProviderName,
				"policy_number": c.PolicyNumber,
				"claim_amount":  c.ClaimAmount,
			},
		})
	})
}

func (s *Service) ListClaims(ctx context.Context, invoiceID int64) ([]*Claim, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.claims.ListByInvoice(ctx, invoiceID)
}
