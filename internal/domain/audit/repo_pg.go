package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
)

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

const entryCols = `id, tenant_id, user_id, action, resource_type, resource_id,
	details, ip_address, request_id, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID,
		&e.Details, &e.IPAddress, &e.RequestID, &e.CreatedAt)
	return &e, err
}

// Insert writes through the caller's transaction only. An entry written
// outside a transaction could outlive a rolled-back mutation.
func (s *storePG) Insert(ctx context.Context, e *Entry) error {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return db.ErrNoTransaction
	}
	var details any
	if len(e.Details) > 0 {
		details = e.Details
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id,
			details, ip_address, request_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at`,
		e.TenantID, e.UserID, e.Action, e.ResourceType, e.ResourceID,
		details, e.IPAddress, e.RequestID).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return apperr.Storage(fmt.Errorf("insert audit entry: %w", err))
	}
	return nil
}

func (s *storePG) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if f.Action != "" {
		args = append(args, f.Action)
		where += fmt.Sprintf(` AND action = $%d`, len(args))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		where += fmt.Sprintf(` AND resource_type = $%d`, len(args))
	}
	if f.ResourceID != 0 {
		args = append(args, f.ResourceID)
		where += fmt.Sprintf(` AND resource_id = $%d`, len(args))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		where += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}

	q := db.Conn(ctx, s.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err)
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+entryCols+` FROM audit_logs`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, apperr.Storage(err)
		}
		items = append(items, e)
	}
	return items, total, apperr.Storage(rows.Err())
}
