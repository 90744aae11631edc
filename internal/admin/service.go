// Package admin is the privileged user-lifecycle service. Every operation is
// gated on the ADMIN role of the caller.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

// defaultDateOfBirth is the placeholder set on admin-created patient
// profiles. The admin corrects it through the patient update path.
var defaultDateOfBirth = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

type CreateUserParams struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// UpdateUserParams carries partial updates: nil fields keep their current
// value.
type UpdateUserParams struct {
	Email    *string
	Password *string
}

type Service interface {
	ListDentists(ctx context.Context, adminID string) ([]model.User, error)
	ListPatients(ctx context.Context, adminID string) ([]model.User, error)
	CreateDentist(ctx context.Context, adminID string, params CreateUserParams) (*model.User, error)
	CreatePatient(ctx context.Context, adminID string, params CreateUserParams) (*model.User, error)
	UpdateDentist(ctx context.Context, adminID, dentistID string, params UpdateUserParams) (*model.User, error)
	UpdatePatient(ctx context.Context, adminID, patientID string, params UpdateUserParams) (*model.User, error)
	DeleteDentist(ctx context.Context, adminID, dentistID string) error
	DeletePatient(ctx context.Context, adminID, patientID string) error
}

type service struct {
	users    store.Users
	profiles store.Profiles
	guard    auth.Service
	audit    audit.Service
}

func NewService(st *store.Store, guard auth.Service, auditSvc audit.Service) Service {
	return &service{
		users:    st.Users,
		profiles: st.Profiles,
		guard:    guard,
		audit:    auditSvc,
	}
}

func (s *service) ListDentists(ctx context.Context, adminID string) ([]model.User, error) {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.ByRole(ctx, model.RoleDentist)
}

func (s *service) ListPatients(ctx context.Context, adminID string) ([]model.User, error) {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.ByRole(ctx, model.RolePatient)
}

func (s *service) CreateDentist(ctx context.Context, adminID string, params CreateUserParams) (*model.User, error) {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, params, model.RoleDentist)
	if err != nil {
		return nil, err
	}

	s.auditCreate(ctx, adminID, user.ID)
	return user, nil
}

func (s *service) CreatePatient(ctx context.Context, adminID string, params CreateUserParams) (*model.User, error) {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, params, model.RolePatient)
	if err != nil {
		return nil, err
	}

	// Patient accounts carry a linked profile from the start. The date of
	// birth is a placeholder until the admin fills in the real one.
	profile := &model.PatientProfile{
		UserID:      user.ID,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		DateOfBirth: defaultDateOfBirth,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.CreatedAt,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.auditCreate(ctx, adminID, user.ID)
	return user, nil
}

func (s *service) createUser(ctx context.Context, params CreateUserParams, role model.Role) (*model.User, error) {
	taken, err := s.users.ExistsByUsername(ctx, params.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("username already exists")
	}
	taken, err = s.users.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("email already exists")
	}

	now := time.Now()
	user := &model.User{
		Username:  params.Username,
		Password:  params.Password,
		Email:     params.Email,
		Roles:     model.Roles{role},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) UpdateDentist(ctx context.Context, adminID, dentistID string, params UpdateUserParams) (*model.User, error) {
	return s.updateUser(ctx, adminID, dentistID, model.RoleDentist, "dentist", params)
}

func (s *service) UpdatePatient(ctx context.Context, adminID, patientID string, params UpdateUserParams) (*model.User, error) {
	return s.updateUser(ctx, adminID, patientID, model.RolePatient, "patient", params)
}

func (s *service) updateUser(ctx context.Context, adminID, targetID string, role model.Role, kind string, params UpdateUserParams) (*model.User, error) {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return nil, err
	}

	target, err := s.users.ByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("%s not found", kind)
		}
		return nil, err
	}
	if !target.Roles.Has(role) {
		return nil, apperr.InvalidState("user is not a %s", kind)
	}

	if params.Email != nil && *params.Email != target.Email {
		taken, err := s.users.ExistsByEmail(ctx, *params.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("email already exists")
		}
		target.Email = *params.Email
	}
	if params.Password != nil {
		target.Password = *params.Password
	}
	target.UpdatedAt = time.Now()

	if err := s.users.Save(ctx, target); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     adminID,
		Action:     "UPDATE",
		Resource:   "user",
		ResourceID: target.ID,
		Status:     "success",
	})
	return target, nil
}

func (s *service) DeleteDentist(ctx context.Context, adminID, dentistID string) error {
	if err := s.deleteUser(ctx, adminID, dentistID, model.RoleDentist, "dentist"); err != nil {
		return err
	}
	return nil
}

func (s *service) DeletePatient(ctx context.Context, adminID, patientID string) error {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return err
	}

	patient, err := s.users.ByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.NotFound("patient not found")
		}
		return err
	}
	if !patient.Roles.Has(model.RolePatient) {
		return apperr.InvalidState("user is not a patient")
	}

	// The linked profile goes first, best-effort: a patient user without a
	// profile is deleted anyway. Clinical and billing documents are left in
	// place (see the orphaned-data note in DESIGN.md).
	if profile, err := s.profiles.ByUserID(ctx, patientID); err == nil {
		if err := s.profiles.Delete(ctx, profile.ID); err != nil {
			return err
		}
	}

	if err := s.users.Delete(ctx, patientID); err != nil {
		return err
	}

	s.auditDelete(ctx, adminID, patientID)
	return nil
}

func (s *service) deleteUser(ctx context.Context, adminID, targetID string, role model.Role, kind string) error {
	if _, err := s.guard.RequireRole(ctx, adminID, model.RoleAdmin); err != nil {
		return err
	}

	target, err := s.users.ByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return apperr.NotFound("%s not found", kind)
		}
		return err
	}
	if !target.Roles.Has(role) {
		return apperr.InvalidState("user is not a %s", kind)
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	s.auditDelete(ctx, adminID, targetID)
	return nil
}

func (s *service) auditCreate(ctx context.Context, adminID, targetID string) {
	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     adminID,
		Action:     "CREATE",
		Resource:   "user",
		ResourceID: targetID,
		Status:     "success",
	})
}

func (s *service) auditDelete(ctx context.Context, adminID, targetID string) {
	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventDelete,
		UserID:     adminID,
		Action:     "DELETE",
		Resource:   "user",
		ResourceID: targetID,
		Status:     "success",
	})
}
