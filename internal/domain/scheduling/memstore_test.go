package scheduling

import (
	"context"
	"sort"
	"sync"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/domain/audit/audittest"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
	"github.com/hmtp/hmtp/internal/platform/db/dbtest"
	"github.com/hmtp/hmtp/pkg/civil"
)

// memDB backs all three repositories. Ids are allocated globally across
// tenants, like BIGSERIAL, so tests can provoke cross-tenant id lookups.
type memDB struct {
	mu           sync.Mutex
	doctors      map[int64]Doctor
	windows      map[int64]Availability
	appointments map[int64]Appointment
	nextID       int64
}

func newMemDB() *memDB {
	return &memDB{
		doctors:      make(map[int64]Doctor),
		windows:      make(map[int64]Availability),
		appointments: make(map[int64]Appointment),
		nextID:       1,
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *memDB) Snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, w, a, next := copyMap(m.doctors), copyMap(m.windows), copyMap(m.appointments), m.nextID
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.doctors, m.windows, m.appointments, m.nextID = d, w, a, next
	}
}

func (m *memDB) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

type memDoctors struct{ *memDB }

func (r memDoctors) Create(ctx context.Context, d *Doctor) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.doctors {
		if o.TenantID == tid && o.LicenseNumber == d.LicenseNumber {
			return ErrLicenseTaken
		}
	}
	d.ID, d.TenantID = r.id(), tid
	r.doctors[d.ID] = *d
	return nil
}

func (r memDoctors) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok || d.TenantID != tid {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r memDoctors) Update(ctx context.Context, d *Doctor) error {
	if _, err := r.GetByID(ctx, d.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = *d
	return nil
}

func (r memDoctors) Delete(ctx context.Context, id int64) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.DoctorID == id {
			return ErrDoctorInUse
		}
	}
	delete(r.doctors, id)
	for wid, w := range r.windows {
		if w.DoctorID == id {
			delete(r.windows, wid)
		}
	}
	return nil
}

func (r memDoctors) List(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Doctor
	for _, d := range r.doctors {
		d := d
		if d.TenantID == tid && (specialization == "" || d.Specialization == specialization) {
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), len(out), nil
}

type memWindows struct{ *memDB }

func (r memWindows) Create(ctx context.Context, a *Availability) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID, a.TenantID = r.id(), tid
	r.windows[a.ID] = *a
	return nil
}

func (r memWindows) Delete(ctx context.Context, doctorID, id int64) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok || w.TenantID != tid || w.DoctorID != doctorID {
		return ErrAvailabilityNotFound
	}
	delete(r.windows, id)
	return nil
}

func (r memWindows) list(ctx context.Context, match func(Availability) bool) ([]*Availability, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Availability
	for _, w := range r.windows {
		w := w
		if w.TenantID == tid && match(w) {
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memWindows) ListByDoctor(ctx context.Context, doctorID int64) ([]*Availability, error) {
	return r.list(ctx, func(w Availability) bool { return w.DoctorID == doctorID })
}

func (r memWindows) ListForDay(ctx context.Context, doctorID int64, day int) ([]*Availability, error) {
	return r.list(ctx, func(w Availability) bool { return w.DoctorID == doctorID && w.DayOfWeek == day })
}

type memAppointments struct{ *memDB }

func (r memAppointments) Create(ctx context.Context, a *Appointment) error {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID, a.TenantID = r.id(), tid
	r.appointments[a.ID] = *a
	return nil
}

func (r memAppointments) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.TenantID != tid {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r memAppointments) Update(ctx context.Context, a *Appointment) error {
	if _, err := r.GetByID(ctx, a.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[a.ID] = *a
	return nil
}

func (r memAppointments) Delete(ctx context.Context, id int64) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.appointments, id)
	return nil
}

func (r memAppointments) all(ctx context.Context, match func(*Appointment) bool) ([]*Appointment, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, a := range r.appointments {
		a := a
		if a.TenantID == tid && match(&a) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchFilter(f AppointmentFilter) func(*Appointment) bool {
	return func(a *Appointment) bool {
		switch {
		case f.DoctorID != 0 && a.DoctorID != f.DoctorID:
			return false
		case f.PatientID != 0 && a.PatientID != f.PatientID:
			return false
		case f.Status != "" && a.Status != f.Status:
			return false
		case !f.From.IsZero() && a.AppointmentDateTime.Before(f.From):
			return false
		case !f.To.IsZero() && a.AppointmentDateTime.After(f.To):
			return false
		}
		return true
	}
}

func (r memAppointments) List(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	out, err := r.all(ctx, matchFilter(f))
	if err != nil {
		return nil, 0, err
	}
	return page(out, limit, offset), len(out), nil
}

func (r memAppointments) ScheduledBetween(ctx context.Context, doctorID int64, from, to civil.DateTime) ([]*Appointment, error) {
	return r.all(ctx, func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Status == StatusScheduled &&
			a.AppointmentDateTime.After(from) && a.AppointmentDateTime.Before(to)
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// memPatients maps patient id to tenant.
type memPatients map[int64]string

func (p memPatients) Exists(ctx context.Context, id int64) (bool, error) {
	tid, err := db.RequireTenant(ctx)
	if err != nil {
		return false, err
	}
	return p[id] == tid, nil
}

type fixture struct {
	db       *memDB
	patients memPatients
	audit    *audittest.MemoryStore
	tx       *dbtest.Transactor
	svc      *Service
	booking  *BookingCoordinator
}

func newFixture() *fixture {
	m := newMemDB()
	store := audittest.NewMemoryStore()
	tx := dbtest.NewTransactor(m, store)
	rec := audit.NewRecorder(store)
	patients := memPatients{}
	return &fixture{
		db:       m,
		patients: patients,
		audit:    store,
		tx:       tx,
		svc:      NewService(memDoctors{m}, memWindows{m}, tx, rec),
		booking: NewBookingCoordinator(BookingDeps{
			Appointments: memAppointments{m},
			Doctors:      memDoctors{m},
			Windows:      memWindows{m},
			Patients:     patients,
			Tx:           tx,
			Audit:        rec,
		}),
	}
}

func tenantCtx(tenantID string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{
		UserID: 11, Subject: "frontdesk@example.com", TenantID: tenantID, Role: auth.RoleNurse,
	})
}

func (f *fixture) appointmentCount() int {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.appointments)
}
