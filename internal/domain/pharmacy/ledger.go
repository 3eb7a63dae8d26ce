package pharmacy

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/events"
	"github.com/hmtp/hmtp/internal/platform/telemetry"
)

// Ledger moves stock out of inventory against active prescriptions.
type Ledger struct {
	medicines     MedicineRepository
	prescriptions PrescriptionRepository
	tx            db.Transactor
	audit         *audit.Recorder
	notifier      *events.Notifier
}

func NewLedger(meds MedicineRepository, rx PrescriptionRepository, tx db.Transactor, rec *audit.Recorder, notifier *events.Notifier) *Ledger {
	return &Ledger{medicines: meds, prescriptions: rx, tx: tx, audit: rec, notifier: notifier}
}

// Dispense removes qty units of the prescribed medicine. The prescription
// keeps its status; closing it is a separate status update.
func (l *Ledger) Dispense(ctx context.Context, prescriptionID int64, qty int) (res *DispenseResult, err error) {
	tenantID, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartSpan(ctx, "pharmacy.dispense", tenantID,
		attribute.Int64("prescription_id", prescriptionID), attribute.Int("quantity", qty))
	defer func() {
		telemetry.DispenseTotal.WithLabelValues(telemetry.Outcome("dispensed", err)).Inc()
		telemetry.End(span, err)
	}()

	if qty <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}

	err = l.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := l.prescriptions.GetByID(ctx, prescriptionID)
		if err != nil {
			return err
		}
		if p.Status != StatusActive {
			return ErrPrescriptionNotActive
		}
		remaining, err := l.medicines.Decrement(ctx, p.MedicineID, qty)
		if err != nil {
			return err
		}
		res = &DispenseResult{
			PrescriptionID: p.ID,
			MedicineID:     p.MedicineID,
			Quantity:       qty,
			RemainingStock: remaining,
		}
		return l.audit.Record(ctx, audit.Event{
			Action:       audit.ActionDispenseMedicine,
			ResourceType: audit.ResourcePrescription,
			ResourceID:   p.ID,
			Details:      map[string]any{"quantity": qty, "medicine_id": p.MedicineID},
		})
	})
	if err != nil {
		return nil, err
	}

	if l.notifier != nil {
		l.notifier.Notify(ctx, tenantID, events.MedicineDispensed, res)
		if res.RemainingStock == 0 {
			l.notifier.Notify(ctx, tenantID, events.StockDepleted, map[string]int64{"medicine_id": res.MedicineID})
		}
	}
	return res, nil
}
