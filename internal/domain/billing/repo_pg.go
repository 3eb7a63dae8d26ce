package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
)

// -- Invoice --

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invoiceCols = `id, tenant_id, patient_id, total_amount, tax, discount, final_amount,
	status, due_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var i Invoice
	err := row.Scan(&i.ID, &i.TenantID, &i.PatientID, &i.TotalAmount, &i.Tax, &i.Discount, &i.FinalAmount,
		&i.Status, &i.DueDate, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &i, nil
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	inv.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO invoices (tenant_id, patient_id, total_amount, tax, discount, final_amount, status, due_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at`,
		inv.TenantID, inv.PatientID, inv.TotalAmount, inv.Tax, inv.Discount, inv.FinalAmount, inv.Status, inv.DueDate,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	return apperr.Storage(err)
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return scanInvoice(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *invoiceRepoPG) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return nil, db.ErrNoTransaction
	}
	return scanInvoice(tx.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id))
}

func (r *invoiceRepoPG) SetStatus(ctx context.Context, id int64, status string) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE invoices SET status = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status)
	if err != nil {
		return apperr.Storage(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *invoiceRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Invoice, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	q := db.Conn(ctx, r.pool)

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE tenant_id = $1 AND patient_id = $2`, tenantID, patientID,
	).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err)
	}

	rows, err := q.Query(ctx, `SELECT `+invoiceCols+` FROM invoices
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, tenantID, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, apperr.Storage(rows.Err())
}

// -- Payment --

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	p.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payments (tenant_id, invoice_id, amount, payment_method, transaction_id)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, paid_at`,
		p.TenantID, p.InvoiceID, p.Amount, p.PaymentMethod, p.TransactionID,
	).Scan(&p.ID, &p.PaidAt)
	return apperr.Storage(err)
}

func (r *paymentRepoPG) SumForInvoice(ctx context.Context, invoiceID int64) (float64, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return 0, err
	}
	var sum float64
	err = db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE tenant_id = $1 AND invoice_id = $2`,
		tenantID, invoiceID).Scan(&sum)
	return sum, apperr.Storage(err)
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID int64) ([]*Payment, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, invoice_id, amount, payment_method, transaction_id, paid_at
		FROM payments WHERE tenant_id = $1 AND invoice_id = $2 ORDER BY paid_at, id`, tenantID, invoiceID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.InvoiceID, &p.Amount, &p.PaymentMethod, &p.TransactionID, &p.PaidAt); err != nil {
			return nil, apperr.Storage(err)
		}
		out = append(out, &p)
	}
	return out, apperr.Storage(rows.Err())
}

// -- Claim --

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewClaimRepoPG(pool *pgxpool.Pool) ClaimRepository { return &claimRepoPG{pool: pool} }

func (r *claimRepoPG) Create(ctx context.Context, c *Claim) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	c.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO insurance_claims (tenant_id, invoice_id, provider_name, policy_number, claim_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, submission_date`,
		c.TenantID, c.InvoiceID, c.ProviderName, c.PolicyNumber, c.ClaimAmount, c.Status,
	).Scan(&c.ID, &c.SubmissionDate)
	return apperr.Storage(err)
}

func (r *claimRepoPG) ListByInvoice(ctx context.Context, invoiceID int64) ([]*Claim, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, invoice_id, provider_name, policy_number, claim_amount, status, submission_date
		FROM insurance_claims WHERE tenant_id = $1 AND invoice_id = $2 ORDER BY submission_date, id`,
		tenantID, invoiceID)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var out []*Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.TenantID, &c.InvoiceID, &c.ProviderName, &c.PolicyNumber,
			&c.ClaimAmount, &c.Status, &c.SubmissionDate); err != nil {
			return nil, apperr.Storage(err)
		}
		out = append(out, &c)
	}
	return out, apperr.Storage(rows.Err())
}
