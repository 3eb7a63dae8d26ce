//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/domain/pharmacy"
	"github.com/hmtp/hmtp/internal/domain/scheduling"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/pkg/civil"
)

func createDoctor(t *testing.T, ctx context.Context) *scheduling.Doctor {
	t.Helper()
	d := &scheduling.Doctor{FirstName: "Lisa", LastName: "Cuddy", Specialization: "endocrinology", LicenseNumber: "LIC-1"}
	require.NoError(t, db.NewTransactor(globalDB.App).InTx(ctx, func(ctx context.Context) error {
		return scheduling.NewDoctorRepoPG(globalDB.App).Create(ctx, d)
	}))
	return d
}

func TestDispense_ConcurrentNeverNegative(t *testing.T) {
	const stock, attempts = 10, 25

	tenantID := uniqueTenantID("stock")
	ctx := db.WithTenant(context.Background(), tenantID)
	tr := db.NewTransactor(globalDB.App)
	meds := pharmacy.NewMedicineRepoPG(globalDB.App)
	rxs := pharmacy.NewPrescriptionRepoPG(globalDB.App)

	p := createPatient(t, tenantID, "Stock")
	d := createDoctor(t, ctx)
	m := &pharmacy.Medicine{Name: "Amoxicillin", Quantity: stock, UnitPrice: 1.5}
	rx := &pharmacy.Prescription{
		PatientID: p.ID, DoctorID: d.ID, Dosage: "500mg", Frequency: "daily", Duration: "10 days",
		Status: pharmacy.StatusActive,
	}
	require.NoError(t, tr.InTx(ctx, func(ctx context.Context) error {
		if err := meds.Create(ctx, m); err != nil {
			return err
		}
		rx.MedicineID = m.ID
		return rxs.Create(ctx, rx)
	}))

	ledger := pharmacy.NewLedger(meds, rxs, tr, audit.NewRecorder(audit.NewStorePG(globalDB.App)), nil)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, short  int
		unexpected []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Dispense(ctx, rx.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, pharmacy.ErrInsufficientStock):
				short++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, stock, ok)
	assert.Equal(t, attempts-stock, short)

	got, err := meds.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Quantity)
	assert.Equal(t, stock, countRows(t, "audit_logs", tenantID), "one audit entry per successful dispense")
}

func TestScheduledBetween_StrictBounds(t *testing.T) {
	tenantID := uniqueTenantID("band")
	ctx := db.WithTenant(context.Background(), tenantID)
	repo := scheduling.NewAppointmentRepoPG(globalDB.App)

	p := createPatient(t, tenantID, "Band")
	d := createDoctor(t, ctx)
	at := func(hour, min int) civil.DateTime { return civil.NewDateTime(2024, time.January, 1, hour, min, 0) }

	book := []struct {
		at     civil.DateTime
		status string
	}{
		{at(9, 30), scheduling.StatusScheduled},
		{at(9, 31), scheduling.StatusScheduled},
		{at(10, 0), scheduling.StatusCancelled},
		{at(10, 29), scheduling.StatusScheduled},
		{at(10, 30), scheduling.StatusScheduled},
	}
	require.NoError(t, db.NewTransactor(globalDB.App).InTx(ctx, func(ctx context.Context) error {
		for _, b := range book {
			a := &scheduling.Appointment{PatientID: p.ID, DoctorID: d.ID, AppointmentDateTime: b.at, Status: b.status}
			if err := repo.Create(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := repo.ScheduledBetween(ctx, d.ID, at(9, 30), at(10, 30))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].AppointmentDateTime.Equal(at(9, 31)))
	assert.True(t, got[1].AppointmentDateTime.Equal(at(10, 29)))
}
