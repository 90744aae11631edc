// Package patient exposes the clinic's patient directory. Dentists can
// browse and edit any profile; a patient can only read their own through
// the self-service path.
package patient

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

// UpdateProfileParams replaces the mutable fields of a profile wholesale.
type UpdateProfileParams struct {
	FirstName             string
	LastName              string
	DateOfBirth           time.Time
	ContactPhone          string
	Address               string
	MedicalHistorySummary string
	InsuranceDetails      string
}

type Service interface {
	List(ctx context.Context, callerID string) ([]model.PatientProfile, error)
	Search(ctx context.Context, callerID, query string) ([]model.PatientProfile, error)
	Get(ctx context.Context, callerID, profileID string) (*model.PatientProfile, error)
	Update(ctx context.Context, callerID, profileID string, params UpdateProfileParams) (*model.PatientProfile, error)
	MyProfile(ctx context.Context, patientID string) (*model.PatientProfile, error)
}

type service struct {
	profiles store.Profiles
	guard    auth.Service
	audit    audit.Service
}

func NewService(st *store.Store, guard auth.Service, auditSvc audit.Service) Service {
	return &service{profiles: st.Profiles, guard: guard, audit: auditSvc}
}

func (s *service) List(ctx context.Context, callerID string) ([]model.PatientProfile, error) {
	if _, err := s.guard.RequireRole(ctx, callerID, model.RoleDentist); err != nil {
		return nil, err
	}
	return s.profiles.All(ctx)
}

func (s *service) Search(ctx context.Context, callerID, query string) ([]model.PatientProfile, error) {
	if _, err := s.guard.RequireRole(ctx, callerID, model.RoleDentist); err != nil {
		return nil, err
	}
	return s.profiles.SearchByName(ctx, query)
}

func (s *service) Get(ctx context.Context, callerID, profileID string) (*model.PatientProfile, error) {
	if _, err := s.guard.RequireRole(ctx, callerID, model.RoleDentist); err != nil {
		return nil, err
	}

	profile, err := s.profiles.ByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("patient profile not found")
		}
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventAccess,
		UserID:     callerID,
		Action:     "READ",
		Resource:   "patient_profile",
		ResourceID: profile.ID,
		Status:     "success",
	})
	return profile, nil
}

func (s *service) Update(ctx context.Context, callerID, profileID string, params UpdateProfileParams) (*model.PatientProfile, error) {
	if _, err := s.guard.RequireRole(ctx, callerID, model.RoleDentist); err != nil {
		return nil, err
	}

	profile, err := s.profiles.ByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("patient profile not found")
		}
		return nil, err
	}

	profile.FirstName = params.FirstName
	profile.LastName = params.LastName
	profile.DateOfBirth = params.DateOfBirth
	profile.ContactPhone = params.ContactPhone
	profile.Address = params.Address
	profile.MedicalHistorySummary = params.MedicalHistorySummary
	profile.InsuranceDetails = params.InsuranceDetails
	profile.UpdatedAt = time.Now()

	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     callerID,
		Action:     "UPDATE",
		Resource:   "patient_profile",
		ResourceID: profile.ID,
		Status:     "success",
	})
	return profile, nil
}

func (s *service) MyProfile(ctx context.Context, patientID string) (*model.PatientProfile, error) {
	if _, err := s.guard.RequireRole(ctx, patientID, model.RolePatient); err != nil {
		return nil, err
	}

	profile, err := s.profiles.ByUserID(ctx, patientID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("patient profile not found")
		}
		return nil, err
	}
	return profile, nil
}
