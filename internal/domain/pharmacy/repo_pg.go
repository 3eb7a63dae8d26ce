package pharmacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
)

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository { return &medicineRepoPG{pool: pool} }

const medicineCols = `id, tenant_id, name, description, manufacturer, quantity, unit_price,
	expiry_date, created_at, updated_at`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Description, &m.Manufacturer, &m.Quantity, &m.UnitPrice,
		&m.ExpiryDate, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMedicineNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &m, nil
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	m.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medicines (tenant_id, name, description, manufacturer, quantity, unit_price, expiry_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		m.TenantID, m.Name, m.Description, m.Manufacturer, m.Quantity, m.UnitPrice, m.ExpiryDate,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return apperr.Storage(err)
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id int64) (*Medicine, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return scanMedicine(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medicines SET name=$3, description=$4, manufacturer=$5, quantity=$6, unit_price=$7,
			expiry_date=$8, updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`,
		tenantID, m.ID, m.Name, m.Description, m.Manufacturer, m.Quantity, m.UnitPrice, m.ExpiryDate,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrMedicineNotFound
	}
	return apperr.Storage(err)
}

func (r *medicineRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Medicine, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND name ILIKE $2`
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM medicines`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err)
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+medicineCols+` FROM medicines`+where+
		fmt.Sprintf(` ORDER BY name, id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, apperr.Storage(rows.Err())
}

// Decrement guards the update on quantity >= qty, so concurrent dispenses
// can never drive stock below zero.
func (r *medicineRepoPG) Decrement(ctx context.Context, id int64, qty int) (int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return 0, err
	}
	q := db.Conn(ctx, r.pool)
	var remaining int
	err = q.QueryRow(ctx, `
		UPDATE medicines SET quantity = quantity - $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND quantity >= $3
		RETURNING quantity`, tenantID, id, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.Storage(err)
	}

	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medicines WHERE tenant_id = $1 AND id = $2)`, tenantID, id,
	).Scan(&exists); err != nil {
		return 0, apperr.Storage(err)
	}
	if !exists {
		return 0, ErrMedicineNotFound
	}
	return 0, ErrInsufficientStock
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, tenant_id, patient_id, doctor_id, medicine_id, dosage, frequency,
	duration, instructions, status, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.TenantID, &p.PatientID, &p.DoctorID, &p.MedicineID, &p.Dosage, &p.Frequency,
		&p.Duration, &p.Instructions, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	p.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO prescriptions (tenant_id, patient_id, doctor_id, medicine_id, dosage, frequency,
			duration, instructions, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at`,
		p.TenantID, p.PatientID, p.DoctorID, p.MedicineID, p.Dosage, p.Frequency,
		p.Duration, p.Instructions, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return apperr.Storage(err)
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id int64) (*Prescription, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return scanPrescription(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, id int64, status string) (*Prescription, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return scanPrescription(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE prescriptions SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+prescriptionCols, tenantID, id, status))
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions WHERE tenant_id = $1 AND patient_id = $2`,
		tenantID, patientID).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err)
	}
	rows, err := q.Query(ctx, `SELECT `+prescriptionCols+` FROM prescriptions
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, tenantID, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, apperr.Storage(rows.Err())
}
