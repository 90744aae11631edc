package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dentistplus/clinic-api/internal/model"
)

// NewMemory returns a Store holding everything in process memory. Tests and
// the fixture seeder use it; its behavior mirrors the Mongo implementation,
// including the procedure-id secondary index on plans.
func NewMemory() *Store {
	m := &memory{
		users:        map[string]model.User{},
		profiles:     map[string]model.PatientProfile{},
		records:      map[string]model.DentalRecord{},
		plans:        map[string]model.TreatmentPlan{},
		appointments: map[string]model.Appointment{},
		invoices:     map[string]model.Invoice{},
		procedures:   map[string]string{},
	}
	return &Store{
		Users:        (*memUsers)(m),
		Profiles:     (*memProfiles)(m),
		Records:      (*memRecords)(m),
		Plans:        (*memPlans)(m),
		Appointments: (*memAppointments)(m),
		Invoices:     (*memInvoices)(m),
	}
}

type memory struct {
	mu           sync.RWMutex
	users        map[string]model.User
	profiles     map[string]model.PatientProfile
	records      map[string]model.DentalRecord
	plans        map[string]model.TreatmentPlan
	appointments map[string]model.Appointment
	invoices     map[string]model.Invoice
	// procedures maps procedure id -> owning plan id, maintained on every
	// plan write.
	procedures map[string]string
}

func newMemoryID() string { return uuid.NewString() }

type memUsers memory

func (s *memUsers) Create(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = newMemoryID()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *memUsers) ByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNoDocument
	}
	u.Roles = append(model.Roles(nil), u.Roles...)
	return &u, nil
}

func (s *memUsers) ByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			u.Roles = append(model.Roles(nil), u.Roles...)
			return &u, nil
		}
	}
	return nil, ErrNoDocument
}

func (s *memUsers) ByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []model.User
	for _, u := range s.users {
		if u.Roles.Has(role) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *memUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUsers) Save(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *memUsers) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

type memProfiles memory

func (s *memProfiles) Create(ctx context.Context, p *model.PatientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newMemoryID()
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *memProfiles) ByID(ctx context.Context, id string) (*model.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNoDocument
	}
	return &p, nil
}

func (s *memProfiles) ByUserID(ctx context.Context, userID string) (*model.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, ErrNoDocument
}

func (s *memProfiles) All(ctx context.Context) ([]model.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := make([]model.PatientProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

func (s *memProfiles) SearchByName(ctx context.Context, query string) ([]model.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	var profiles []model.PatientProfile
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.FirstName), q) ||
			strings.Contains(strings.ToLower(p.LastName), q) {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

func (s *memProfiles) Save(ctx context.Context, p *model.PatientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = *p
	return nil
}

func (s *memProfiles) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
	return nil
}

type memRecords memory

func (s *memRecords) Create(ctx context.Context, r *model.DentalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = newMemoryID()
	}
	s.records[r.ID] = cloneRecord(*r)
	return nil
}

func (s *memRecords) ByPatient(ctx context.Context, patientID string) (*model.DentalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.PatientID == patientID {
			out := cloneRecord(r)
			return &out, nil
		}
	}
	return nil, ErrNoDocument
}

func (s *memRecords) Save(ctx context.Context, r *model.DentalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = cloneRecord(*r)
	return nil
}

func cloneRecord(r model.DentalRecord) model.DentalRecord {
	if r.DentalChart != nil {
		chart := make(model.DentalChart, len(r.DentalChart))
		for tooth, surfaces := range r.DentalChart {
			inner := make(map[string]string, len(surfaces))
			for k, v := range surfaces {
				inner[k] = v
			}
			chart[tooth] = inner
		}
		r.DentalChart = chart
	}
	r.Attachments = append([]model.Attachment(nil), r.Attachments...)
	r.GeneralNotes = append([]model.ClinicalNote(nil), r.GeneralNotes...)
	return r
}

type memPlans memory

func (s *memPlans) Create(ctx context.Context, p *model.TreatmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newMemoryID()
	}
	s.plans[p.ID] = clonePlan(*p)
	s.reindexPlan(*p)
	return nil
}

func (s *memPlans) ByID(ctx context.Context, id string) (*model.TreatmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrNoDocument
	}
	out := clonePlan(p)
	return &out, nil
}

func (s *memPlans) ByPatient(ctx context.Context, patientID string) ([]model.TreatmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []model.TreatmentPlan
	for _, p := range s.plans {
		if p.PatientID == patientID {
			plans = append(plans, clonePlan(p))
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans, nil
}

func (s *memPlans) ByProcedureID(ctx context.Context, procedureID string) (*model.TreatmentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	planID, ok := s.procedures[procedureID]
	if !ok {
		return nil, ErrNoDocument
	}
	p, ok := s.plans[planID]
	if !ok {
		return nil, ErrNoDocument
	}
	out := clonePlan(p)
	return &out, nil
}

func (s *memPlans) Save(ctx context.Context, p *model.TreatmentPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = clonePlan(*p)
	s.reindexPlan(*p)
	return nil
}

func (s *memPlans) reindexPlan(p model.TreatmentPlan) {
	for procID, planID := range s.procedures {
		if planID == p.ID {
			delete(s.procedures, procID)
		}
	}
	for _, proc := range p.Procedures {
		s.procedures[proc.ID] = p.ID
	}
}

func clonePlan(p model.TreatmentPlan) model.TreatmentPlan {
	p.Procedures = append([]model.PlannedProcedure(nil), p.Procedures...)
	for i := range p.Procedures {
		p.Procedures[i].ToothNumbers = append([]string(nil), p.Procedures[i].ToothNumbers...)
	}
	return p
}

type memAppointments memory

func (s *memAppointments) Create(ctx context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newMemoryID()
	}
	s.appointments[a.ID] = *a
	return nil
}

func (s *memAppointments) ByID(ctx context.Context, id string) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, ErrNoDocument
	}
	return &a, nil
}

func (s *memAppointments) ByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.filter(func(a model.Appointment) bool { return a.PatientID == patientID })
}

func (s *memAppointments) ByDentist(ctx context.Context, dentistID string) ([]model.Appointment, error) {
	return s.filter(func(a model.Appointment) bool { return a.DentistID == dentistID })
}

func (s *memAppointments) ByDateRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return s.filter(func(a model.Appointment) bool {
		return !a.AppointmentDate.Before(from) && a.AppointmentDate.Before(to)
	})
}

func (s *memAppointments) filter(keep func(model.Appointment) bool) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var appointments []model.Appointment
	for _, a := range s.appointments {
		if keep(a) {
			appointments = append(appointments, a)
		}
	}
	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].AppointmentDate.Before(appointments[j].AppointmentDate)
	})
	return appointments, nil
}

func (s *memAppointments) Save(ctx context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = *a
	return nil
}

type memInvoices memory

func (s *memInvoices) Create(ctx context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = newMemoryID()
	}
	s.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (s *memInvoices) ByID(ctx context.Context, id string) (*model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrNoDocument
	}
	out := cloneInvoice(inv)
	return &out, nil
}

func (s *memInvoices) ByPatient(ctx context.Context, patientID string) ([]model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var invoices []model.Invoice
	for _, inv := range s.invoices {
		if inv.PatientID == patientID {
			invoices = append(invoices, cloneInvoice(inv))
		}
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID < invoices[j].ID })
	return invoices, nil
}

func (s *memInvoices) Save(ctx context.Context, inv *model.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	inv.LineItems = append([]model.LineItem(nil), inv.LineItems...)
	return inv
}
