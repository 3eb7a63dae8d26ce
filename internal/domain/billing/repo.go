package billing

import "context"

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id int64) (*Invoice, error)
	// GetForUpdate reads the invoice and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Invoice, error)
	SetStatus(ctx context.Context, id int64, status string) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Invoice, int, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	SumForInvoice(ctx context.Context, invoiceID int64) (float64, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*Payment, error)
}

type ClaimRepository interface {
	Create(ctx context.Context, c *Claim) error
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*Claim, error)
}
