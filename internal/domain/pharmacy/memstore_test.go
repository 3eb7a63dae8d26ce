package pharmacy

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/domain/audit/audittest"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/db/dbtest"
)

type memDB struct {
	mu            sync.Mutex
	medicines     map[int64]Medicine
	prescriptions map[int64]Prescription
	nextID        int64
}

func newMemDB() *memDB {
	return &memDB{
		medicines:     make(map[int64]Medicine),
		prescriptions: make(map[int64]Prescription),
		nextID:        1,
	}
}

func (m *memDB) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	meds := make(map[int64]Medicine, len(m.medicines))
	for k, v := range m.medicines {
		meds[k] = v
	}
	rx := make(map[int64]Prescription, len(m.prescriptions))
	for k, v := range m.prescriptions {
		rx[k] = v
	}
	next := m.nextID
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.medicines, m.prescriptions, m.nextID = meds, rx, next
	}
}

type memMedicines struct{ *memDB }

func (r memMedicines) Create(ctx context.Context, m *Medicine) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID, m.TenantID = r.nextID, tid
	r.nextID++
	r.medicines[m.ID] = *m
	return nil
}

func (r memMedicines) GetByID(ctx context.Context, id int64) (*Medicine, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.medicines[id]
	if !ok || m.TenantID != tid {
		return nil, ErrMedicineNotFound
	}
	return &m, nil
}

func (r memMedicines) Update(ctx context.Context, m *Medicine) error {
	if _, err := r.GetByID(ctx, m.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.medicines[m.ID] = *m
	return nil
}

func (r memMedicines) List(ctx context.Context, search string, limit, offset int) ([]*Medicine, int, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Medicine
	for _, m := range r.medicines {
		m := m
		if m.TenantID == tid && strings.Contains(strings.ToLower(m.Name), strings.ToLower(search)) {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	if end := offset + limit; end < total {
		return out[offset:end], total, nil
	}
	return out[offset:], total, nil
}

func (r memMedicines) Decrement(ctx context.Context, id int64, qty int) (int, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.medicines[id]
	if !ok || m.TenantID != tid {
		return 0, ErrMedicineNotFound
	}
	if m.Quantity < qty {
		return 0, ErrInsufficientStock
	}
	m.Quantity -= qty
	r.medicines[id] = m
	return m.Quantity, nil
}

func (r memMedicines) stock(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.medicines[id].Quantity
}

type memPrescriptions struct{ *memDB }

func (r memPrescriptions) Create(ctx context.Context, p *Prescription) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID, p.TenantID = r.nextID, tid
	r.nextID++
	r.prescriptions[p.ID] = *p
	return nil
}

func (r memPrescriptions) GetByID(ctx context.Context, id int64) (*Prescription, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescriptions[id]
	if !ok || p.TenantID != tid {
		return nil, ErrPrescriptionNotFound
	}
	return &p, nil
}

func (r memPrescriptions) UpdateStatus(ctx context.Context, id int64, status string) (*Prescription, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Status = status
	r.prescriptions[id] = *p
	return p, nil
}

func (r memPrescriptions) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Prescription
	for _, p := range r.prescriptions {
		p := p
		if p.TenantID == tid && p.PatientID == patientID {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

// directory maps ids to their tenant.
type directory map[int64]string

func (d directory) Exists(ctx context.Context, id int64) (bool, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return false, err
	}
	return d[id] == tid, nil
}

type fixture struct {
	db       *memDB
	patients directory
	doctors  directory
	audit    *audittest.MemoryStore
	tx       *dbtest.Transactor
	svc      *Service
	ledger   *Ledger
}

func newFixture() *fixture {
	m := newMemDB()
	store := audittest.NewMemoryStore()
	tx := dbtest.NewTransactor(m, store)
	rec := audit.NewRecorder(store)
	patients, doctors := directory{}, directory{}
	return &fixture{
		db:       m,
		patients: patients,
		doctors:  doctors,
		audit:    store,
		tx:       tx,
		svc:      NewService(memMedicines{m}, memPrescriptions{m}, patients, doctors, tx, rec),
		ledger:   NewLedger(memMedicines{m}, memPrescriptions{m}, tx, rec, nil),
	}
}

func tenantCtx(tenantID string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		UserID: 5, Subject: "pharmacist@example.com", TenantID: tenantID, Role: auth.RolePharmacist,
	})
}
