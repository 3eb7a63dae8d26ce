package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/pkg/civil"
)

const (
	uniqueViolation = "23505"
	fkViolation     = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

const doctorCols = `id, tenant_id, first_name, last_name, specialization, license_number,
	phone, email, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.TenantID, &d.FirstName, &d.LastName, &d.Specialization, &d.LicenseNumber,
		&d.Phone, &d.Email, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	d.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (tenant_id, first_name, last_name, specialization, license_number, phone, email)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		d.TenantID, d.FirstName, d.LastName, d.Specialization, d.LicenseNumber, d.Phone, d.Email,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if pgCode(err) == uniqueViolation {
		return ErrLicenseTaken
	}
	return apperr.Storage(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET first_name=$3, last_name=$4, specialization=$5, license_number=$6,
			phone=$7, email=$8, updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`,
		tenantID, d.ID, d.FirstName, d.LastName, d.Specialization, d.LicenseNumber, d.Phone, d.Email,
	).Scan(&d.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrDoctorNotFound
	case pgCode(err) == uniqueViolation:
		return ErrLicenseTaken
	}
	return apperr.Storage(err)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id int64) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM doctors WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if pgCode(err) == fkViolation {
		return ErrDoctorInUse
	}
	if err != nil {
		return apperr.Storage(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if specialization != "" {
		args = append(args, specialization)
		where += ` AND specialization = $2`
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err)
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+doctorCols+` FROM doctors`+where+
		fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, apperr.Storage(rows.Err())
}

// =========== Availability Repository ===========

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

const availCols = `id, tenant_id, doctor_id, day_of_week, start_time, end_time, is_available`

func (r *availabilityRepoPG) Create(ctx context.Context, a *Availability) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	a.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor_availability (tenant_id, doctor_id, day_of_week, start_time, end_time, is_available)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`,
		a.TenantID, a.DoctorID, a.DayOfWeek, a.StartTime, a.EndTime, a.IsAvailable,
	).Scan(&a.ID)
	return apperr.Storage(err)
}

func (r *availabilityRepoPG) Delete(ctx context.Context, doctorID, id int64) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM doctor_availability WHERE tenant_id = $1 AND doctor_id = $2 AND id = $3`,
		tenantID, doctorID, id)
	if err != nil {
		return apperr.Storage(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *availabilityRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Availability, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.ID, &a.TenantID, &a.DoctorID, &a.DayOfWeek, &a.StartTime, &a.EndTime, &a.IsAvailable); err != nil {
			return nil, apperr.Storage(err)
		}
		items = append(items, &a)
	}
	return items, apperr.Storage(rows.Err())
}

func (r *availabilityRepoPG) ListByDoctor(ctx context.Context, doctorID int64) ([]*Availability, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `SELECT `+availCols+` FROM doctor_availability
		WHERE tenant_id = $1 AND doctor_id = $2
		ORDER BY day_of_week, start_time, id`, tenantID, doctorID)
}

func (r *availabilityRepoPG) ListForDay(ctx context.Context, doctorID int64, day int) ([]*Availability, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, `SELECT `+availCols+` FROM doctor_availability
		WHERE tenant_id = $1 AND doctor_id = $2 AND day_of_week = $3
		ORDER BY start_time, id`, tenantID, doctorID, day)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, tenant_id, patient_id, doctor_id, appointment_datetime, status,
	reason, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.TenantID, &a.PatientID, &a.DoctorID, &a.AppointmentDateTime, &a.Status,
		&a.Reason, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	a.TenantID = tenantID
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (tenant_id, patient_id, doctor_id, appointment_datetime, status, reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at`,
		a.TenantID, a.PatientID, a.DoctorID, a.AppointmentDateTime, a.Status, a.Reason, a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return apperr.Storage(err)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET doctor_id=$3, appointment_datetime=$4, status=$5, reason=$6, notes=$7,
			updated_at=NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at`,
		tenantID, a.ID, a.DoctorID, a.AppointmentDateTime, a.Status, a.Reason, a.Notes,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAppointmentNotFound
	}
	return apperr.Storage(err)
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM appointments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return apperr.Storage(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where += fmt.Sprintf(` AND `+cond, len(args))
	}
	if f.DoctorID != 0 {
		add(`doctor_id = $%d`, f.DoctorID)
	}
	if f.PatientID != 0 {
		add(`patient_id = $%d`, f.PatientID)
	}
	if f.Status != "" {
		add(`status = $%d`, f.Status)
	}
	if !f.From.IsZero() {
		add(`appointment_datetime >= $%d`, f.From)
	}
	if !f.To.IsZero() {
		add(`appointment_datetime <= $%d`, f.To)
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Storage(err)
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+apptCols+` FROM appointments`+where+
		fmt.Sprintf(` ORDER BY appointment_datetime, id LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, apperr.Storage(rows.Err())
}

func (r *appointmentRepoPG) ScheduledBetween(ctx context.Context, doctorID int64, from, to civil.DateTime) ([]*Appointment, error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE tenant_id = $1 AND doctor_id = $2 AND status = 'scheduled'
		  AND appointment_datetime > $3 AND appointment_datetime < $4
		ORDER BY appointment_datetime`, tenantID, doctorID, from, to)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, apperr.Storage(rows.Err())
}
