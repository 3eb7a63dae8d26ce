package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/domain/audit/audittest"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/db/dbtest"
)

type memDB struct {
	mu       sync.Mutex
	invoices map[int64]Invoice
	payments []Payment
	claims   []Claim
	nextID   int64
}

func newMemDB() *memDB {
	return &memDB{invoices: make(map[int64]Invoice), nextID: 1}
}

func (m *memDB) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := make(map[int64]Invoice, len(m.invoices))
	for k, v := range m.invoices {
		inv[k] = v
	}
	pay := append([]Payment(nil), m.payments...)
	cl := append([]Claim(nil), m.claims...)
	next := m.nextID
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.invoices, m.payments, m.claims, m.nextID = inv, pay, cl, next
	}
}

func (m *memDB) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

type memInvoices struct{ *memDB }

func (r memInvoices) Create(ctx context.Context, inv *Invoice) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.ID, inv.TenantID, inv.CreatedAt = r.id(), tid, time.Now()
	r.invoices[inv.ID] = *inv
	return nil
}

func (r memInvoices) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tid {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

func (r memInvoices) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	if !dbtest.Active(ctx) {
		return nil, db.ErrNoTransaction
	}
	return r.GetByID(ctx, id)
}

func (r memInvoices) SetStatus(ctx context.Context, id int64, status string) error {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.Status = status
	r.invoices[id] = *inv
	return nil
}

func (r memInvoices) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Invoice, int, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Invoice
	for _, inv := range r.invoices {
		inv := inv
		if inv.TenantID == tid && inv.PatientID == patientID {
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

type memPayments struct{ *memDB }

func (r memPayments) Create(ctx context.Context, p *Payment) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID, p.TenantID, p.PaidAt = r.id(), tid, time.Now()
	r.payments = append(r.payments, *p)
	return nil
}

func (r memPayments) SumForInvoice(ctx context.Context, invoiceID int64) (float64, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, p := range r.payments {
		if p.TenantID == tid && p.InvoiceID == invoiceID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r memPayments) ListByInvoice(ctx context.Context, invoiceID int64) ([]*Payment, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Payment
	for _, p := range r.payments {
		p := p
		if p.TenantID == tid && p.InvoiceID == invoiceID {
			out = append(out, &p)
		}
	}
	return out, nil
}

type memClaims struct{ *memDB }

func (r memClaims) Create(ctx context.Context, c *Claim) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID, c.TenantID, c.SubmissionDate = r.id(), tid, time.Now()
	r.claims = append(r.claims, *c)
	return nil
}

func (r memClaims) ListByInvoice(ctx context.Context, invoiceID int64) ([]*Claim, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Claim
	for _, c := range r.claims {
		c := c
		if c.TenantID == tid && c.InvoiceID == invoiceID {
			out = append(out, &c)
		}
	}
	return out, nil
}

type memPatients map[int64]string

func (m memPatients) Exists(ctx context.Context, id int64) (bool, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return false, err
	}
	return m[id] == tid, nil
}

type fixture struct {
	db       *memDB
	patients memPatients
	audit    *audittest.MemoryStore
	svc      *Service
}

func newFixture() *fixture {
	m := newMemDB()
	store := audittest.NewMemoryStore()
	patients := memPatients{1: "clinic-a", 2: "clinic-b"}
	return &fixture{
		db:       m,
		patients: patients,
		audit:    store,
		svc: NewService(memInvoices{m}, memPayments{m}, memClaims{m}, patients,
			dbtest.NewTransactor(m, store), audit.NewRecorder(store)),
	}
}

func tenantCtx(tenantID string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		UserID: 3, Subject: "frontdesk@example.com", TenantID: tenantID, Role: auth.RoleNurse,
	})
}
