package handler_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-management-api/internal/model"
	"clinic-management-api/internal/store"
)

// memStore is an in-memory stand-in for *store.Store covering the handler
// and schedule interfaces.
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	roles    map[string]*model.Role
	patients map[string]*model.Patient
	staff    map[string]*model.Staff
	doctors  map[string]*model.Doctor
	appts    map[string]*model.Appointment
	// failWrites makes account updates fail
	failWrites error
}

func newMemStore() *memStore {
	m := &memStore{
		users:    map[string]*model.User{},
		roles:    map[string]*model.Role{},
		patients: map[string]*model.Patient{},
		staff:    map[string]*model.Staff{},
		doctors:  map[string]*model.Doctor{},
		appts:    map[string]*model.Appointment{},
	}
	for _, r := range []model.Role{
		{Name: "admin", HasAllAccess: true},
		{Name: "receptionist", Permissions: []string{"appointments:create", "appointments:read", "patients:read"}},
		{Name: "patient", Permissions: []string{}},
	} {
		r.ID = uuid.NewString()
		r.Status = model.RoleStatusActive
		m.roles[r.ID] = &r
	}
	return m
}

// ----- users -----

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) MarkUserVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (m *memStore) UpdateUserPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) SetUserRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	return nil
}

// ----- roles -----

func (m *memStore) ListRoles(context.Context) ([]model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Role{}
	for _, r := range m.roles {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) RoleByID(_ context.Context, id string) (*model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roles[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) RoleByName(_ context.Context, name string) (*model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == strings.ToLower(name) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) nameTaken(name, exceptID string) bool {
	for _, r := range m.roles {
		if r.ID != exceptID && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

func (m *memStore) CreateRole(_ context.Context, r *model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(r.Name, "") {
		return store.ErrDuplicate
	}
	cp := *r
	m.roles[r.ID] = &cp
	return nil
}

func (m *memStore) UpdateRole(_ context.Context, r *model.Role) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.roles[r.ID]
	if !ok {
		return "", store.ErrNotFound
	}
	if m.nameTaken(r.Name, r.ID) {
		return "", store.ErrDuplicate
	}
	prev := old.Name
	for _, u := range m.users {
		if u.Role == prev {
			u.Role = r.Name
		}
	}
	cp := *r
	cp.UserCount = old.UserCount
	m.roles[r.ID] = &cp
	return prev, nil
}

func (m *memStore) DeleteRole(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return "", store.ErrNotFound
	}
	for _, u := range m.users {
		if u.Role == r.Name {
			return "", store.ErrInUse
		}
	}
	delete(m.roles, id)
	return r.Name, nil
}

func (m *memStore) RecountRoleUsers(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		n := 0
		for _, u := range m.users {
			if u.Role == r.Name {
				n++
			}
		}
		r.UserCount = n
	}
	return nil
}

// ----- directory -----

func (m *memStore) CreatePatient(_ context.Context, p *model.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *memStore) PatientByID(_ context.Context, id string) (*model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.patients[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListPatients(_ context.Context, search string, limit int) ([]model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Patient{}
	for _, p := range m.patients {
		if search == "" || strings.Contains(strings.ToLower(p.FullName()), strings.ToLower(search)) {
			out = append(out, *p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CreateStaff(_ context.Context, s *model.Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.staff[s.ID] = &cp
	return nil
}

func (m *memStore) StaffByID(_ context.Context, id string) (*model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.staff[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListStaff(context.Context) ([]model.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Staff{}
	for _, s := range m.staff {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) CreateDoctor(_ context.Context, d *model.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[d.StaffID]
	if !ok {
		return store.ErrNotFound
	}
	d.Name = s.Name
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *memStore) DoctorByID(_ context.Context, id string) (*model.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.doctors[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListDoctors(context.Context) ([]model.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Doctor{}
	for _, d := range m.doctors {
		out = append(out, *d)
	}
	return out, nil
}

// ----- appointments -----

func (m *memStore) InsertAppointment(_ context.Context, a *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.appts {
		if x.StaffID == a.StaffID && x.Date.Equal(a.Date) && x.Time == a.Time && x.Status != model.StatusCancelled {
			return store.ErrDuplicate
		}
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memStore) viewOf(a *model.Appointment) model.AppointmentView {
	p, s := m.patients[a.PatientID], m.staff[a.StaffID]
	return model.AppointmentView{
		ID: a.ID, PatientID: a.PatientID, PatientName: p.FullName(), StaffID: a.StaffID,
		DoctorName: s.Name, Date: a.Date.Format(model.DateLayout), Time: a.Time, Room: s.Room, Status: a.Status,
	}
}

func (m *memStore) AppointmentView(_ context.Context, id string) (*model.AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	v := m.viewOf(a)
	return &v, nil
}

func (m *memStore) Calendar(_ context.Context, from, to time.Time, doctorID string) ([]model.AppointmentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AppointmentView{}
	for _, a := range m.appts {
		if a.Date.Before(from) || a.Date.After(to) || (doctorID != "" && a.StaffID != doctorID) {
			continue
		}
		out = append(out, m.viewOf(a))
	}
	return out, nil
}

func (m *memStore) CountAppointments(_ context.Context, f store.CountFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.appts {
		if (!f.From.IsZero() && a.Date.Before(f.From)) || (!f.To.IsZero() && a.Date.After(f.To)) {
			continue
		}
		if f.ExcludeCancelled && a.Status == model.StatusCancelled {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memStore) CountByStatus(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, a := range m.appts {
		out[a.Status]++
	}
	return out, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	return nil
}

// ----- otp challenges -----

type memChallenges struct {
	mu   sync.Mutex
	data map[string]model.Challenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{data: map[string]model.Challenge{}}
}

func ckey(email string, p model.Purpose) string { return string(p) + "|" + email }

func (c *memChallenges) Save(_ context.Context, ch *model.Challenge) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *ch
	cp.Attempts = 0
	c.data[ckey(ch.Email, ch.Purpose)] = cp
	return nil
}

func (c *memChallenges) Get(_ context.Context, email string, p model.Purpose) (*model.Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.data[ckey(email, p)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ch, nil
}

func (c *memChallenges) IncrementAttempts(_ context.Context, email string, p model.Purpose) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.data[ckey(email, p)]
	if !ok {
		return 0, store.ErrNotFound
	}
	ch.Attempts++
	c.data[ckey(email, p)] = ch
	return ch.Attempts, nil
}

func (c *memChallenges) Delete(_ context.Context, email string, p model.Purpose) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, ckey(email, p))
	return nil
}

// mailbox captures delivered codes.
type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
	fail  error
}

func (m *mailbox) SendCode(_ context.Context, to, code string, p model.Purpose, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[ckey(to, p)] = code
	m.sent++
	return nil
}

func (m *mailbox) code(email string, p model.Purpose) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[ckey(email, p)]
}
