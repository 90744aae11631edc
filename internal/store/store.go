// Package store is the persistence boundary of the backend: one interface per
// entity type over a document database, plus a Mongo implementation and an
// in-memory implementation used by tests and the seeder.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dentistplus/clinic-api/internal/model"
)

// ErrNoDocument is returned by lookups that match nothing. Services translate
// it into their own error kinds.
var ErrNoDocument = errors.New("store: no matching document")

type Users interface {
	Create(ctx context.Context, u *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
	ByRole(ctx context.Context, role model.Role) ([]model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
}

type Profiles interface {
	Create(ctx context.Context, p *model.PatientProfile) error
	ByID(ctx context.Context, id string) (*model.PatientProfile, error)
	ByUserID(ctx context.Context, userID string) (*model.PatientProfile, error)
	All(ctx context.Context) ([]model.PatientProfile, error)
	// SearchByName matches query case-insensitively against first-name OR
	// last-name substrings.
	SearchByName(ctx context.Context, query string) ([]model.PatientProfile, error)
	Save(ctx context.Context, p *model.PatientProfile) error
	Delete(ctx context.Context, id string) error
}

type Records interface {
	Create(ctx context.Context, r *model.DentalRecord) error
	ByPatient(ctx context.Context, patientID string) (*model.DentalRecord, error)
	Save(ctx context.Context, r *model.DentalRecord) error
}

type Plans interface {
	Create(ctx context.Context, p *model.TreatmentPlan) error
	ByID(ctx context.Context, id string) (*model.TreatmentPlan, error)
	ByPatient(ctx context.Context, patientID string) ([]model.TreatmentPlan, error)
	// ByProcedureID returns the plan embedding the given procedure id. This is
	// the indexed replacement for scanning every plan's procedure list.
	ByProcedureID(ctx context.Context, procedureID string) (*model.TreatmentPlan, error)
	Save(ctx context.Context, p *model.TreatmentPlan) error
}

type Appointments interface {
	Create(ctx context.Context, a *model.Appointment) error
	ByID(ctx context.Context, id string) (*model.Appointment, error)
	ByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	ByDentist(ctx context.Context, dentistID string) ([]model.Appointment, error)
	// ByDateRange returns appointments with date-time in [from, to).
	ByDateRange(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	Save(ctx context.Context, a *model.Appointment) error
}

type Invoices interface {
	Create(ctx context.Context, inv *model.Invoice) error
	ByID(ctx context.Context, id string) (*model.Invoice, error)
	ByPatient(ctx context.Context, patientID string) ([]model.Invoice, error)
	Save(ctx context.Context, inv *model.Invoice) error
}

// Store bundles the per-entity stores a service constructor needs.
type Store struct {
	Users        Users
	Profiles     Profiles
	Records      Records
	Plans        Plans
	Appointments Appointments
	Invoices     Invoices
}
