package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	events []Envelope
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, tenantID, eventType string, data any) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, newEnvelope(tenantID, eventType, data))
	return nil
}

func TestNotifier_Publishes(t *testing.T) {
	rec := &recordingPublisher{}
	n := NewNotifier(rec, zerolog.Nop())

	n.Notify(context.Background(), "hosp-a", AppointmentBooked, map[string]int64{"appointment_id": 4})

	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.TenantID != "hosp-a" || ev.Type != AppointmentBooked || ev.ID == "" {
		t.Errorf("unexpected envelope %+v", ev)
	}
}

func TestNotifier_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&recordingPublisher{err: errors.New("broker down")}, zerolog.New(&buf))

	n.Notify(context.Background(), "hosp-a", MedicineDispensed, nil)

	if !strings.Contains(buf.String(), "event publish failed") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}

func TestNotifier_IgnoresCancelledRequest(t *testing.T) {
	rec := &recordingPublisher{}
	n := NewNotifier(rec, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n.Notify(ctx, "hosp-a", AppointmentCancelled, nil)

	if len(rec.events) != 1 {
		t.Error("committed work must still be announced after the request ends")
	}
}

func TestNewNotifier_NilPublisher(t *testing.T) {
	n := NewNotifier(nil, zerolog.Nop())
	n.Notify(context.Background(), "hosp-a", StockDepleted, nil)
}
