// Package treatment manages treatment plans and the procedures embedded in
// them.
package treatment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

type PlanParams struct {
	PlanName    string
	Description string
	Procedures  []ProcedureParams
}

type ProcedureParams struct {
	ProcedureName string
	ProcedureCode string
	ToothNumbers  []string
	CostEstimate  model.Money
	Status        string
	Notes         string
}

type Service interface {
	ListPlans(ctx context.Context, dentistID, patientID string) ([]model.TreatmentPlan, error)
	CreatePlan(ctx context.Context, dentistID, patientID string, params PlanParams) (*model.TreatmentPlan, error)
	AddProcedure(ctx context.Context, dentistID, planID string, params ProcedureParams) (*model.TreatmentPlan, error)
	UpdateProcedure(ctx context.Context, dentistID, procedureID string, params ProcedureParams) (*model.TreatmentPlan, error)
	MyPlans(ctx context.Context, patientUserID string) ([]model.TreatmentPlan, error)
}

type service struct {
	plans    store.Plans
	profiles store.Profiles
	guard    auth.Service
	audit    audit.Service
}

func NewService(st *store.Store, guard auth.Service, auditSvc audit.Service) Service {
	return &service{plans: st.Plans, profiles: st.Profiles, guard: guard, audit: auditSvc}
}

func (s *service) ListPlans(ctx context.Context, dentistID, patientID string) ([]model.TreatmentPlan, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}
	return s.plans.ByPatient(ctx, patientID)
}

func (s *service) CreatePlan(ctx context.Context, dentistID, patientID string, params PlanParams) (*model.TreatmentPlan, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	now := time.Now()
	plan := &model.TreatmentPlan{
		PatientID:   patientID,
		PlanName:    params.PlanName,
		Description: params.Description,
		Procedures:  make([]model.PlannedProcedure, 0, len(params.Procedures)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, p := range params.Procedures {
		plan.Procedures = append(plan.Procedures, newProcedure(p, now))
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.auditModify(ctx, dentistID, plan.ID, "CREATE")
	return plan, nil
}

func (s *service) AddProcedure(ctx context.Context, dentistID, planID string, params ProcedureParams) (*model.TreatmentPlan, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	plan, err := s.plans.ByID(ctx, planID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("treatment plan not found")
		}
		return nil, err
	}

	now := time.Now()
	plan.Procedures = append(plan.Procedures, newProcedure(params, now))
	plan.UpdatedAt = now

	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}

	s.auditModify(ctx, dentistID, plan.ID, "ADD_PROCEDURE")
	return plan, nil
}

// UpdateProcedure addresses a procedure by its own id, independent of which
// plan holds it. The procedure's content is replaced wholesale; only the id
// survives. Status is set as supplied with no transition guard, unlike
// appointments.
func (s *service) UpdateProcedure(ctx context.Context, dentistID, procedureID string, params ProcedureParams) (*model.TreatmentPlan, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	plan, err := s.plans.ByProcedureID(ctx, procedureID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("procedure not found")
		}
		return nil, err
	}

	now := time.Now()
	for i := range plan.Procedures {
		if plan.Procedures[i].ID != procedureID {
			continue
		}
		created := plan.Procedures[i].CreatedAt
		plan.Procedures[i] = newProcedure(params, now)
		plan.Procedures[i].ID = procedureID
		plan.Procedures[i].CreatedAt = created
		break
	}
	plan.UpdatedAt = now

	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}

	s.auditModify(ctx, dentistID, plan.ID, "UPDATE_PROCEDURE")
	return plan, nil
}

func (s *service) MyPlans(ctx context.Context, patientUserID string) ([]model.TreatmentPlan, error) {
	if _, err := s.guard.RequireRole(ctx, patientUserID, model.RolePatient); err != nil {
		return nil, err
	}

	profile, err := s.profiles.ByUserID(ctx, patientUserID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("patient profile not found")
		}
		return nil, err
	}
	return s.plans.ByPatient(ctx, profile.ID)
}

func newProcedure(params ProcedureParams, now time.Time) model.PlannedProcedure {
	status := params.Status
	if status == "" {
		status = model.ProcedurePlanned
	}
	return model.PlannedProcedure{
		ID:            uuid.NewString(),
		ProcedureName: params.ProcedureName,
		ProcedureCode: params.ProcedureCode,
		ToothNumbers:  params.ToothNumbers,
		CostEstimate:  params.CostEstimate,
		Status:        status,
		Notes:         params.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *service) auditModify(ctx context.Context, dentistID, planID, action string) {
	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     dentistID,
		Action:     action,
		Resource:   "treatment_plan",
		ResourceID: planID,
		Status:     "success",
	})
}
