package treatment

import (
	"context"
	"testing"
	"time"

	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

type fixture struct {
	svc       Service
	st        *store.Store
	dentistID string
	patient   *model.PatientProfile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	guard := auth.NewService(st, audit.NewNop(), auth.Config{JWTSecret: "test-secret", TokenExpiry: time.Hour})
	svc := NewService(st, guard, audit.NewNop())
	ctx := context.Background()

	dentist := &model.User{
		Username: "dr.smith", Password: "pw", Email: "smith@clinic.test",
		Roles: model.Roles{model.RoleDentist},
	}
	if err := st.Users.Create(ctx, dentist); err != nil {
		t.Fatalf("seed dentist: %v", err)
	}
	patientUser := &model.User{
		Username: "john.doe", Password: "pw", Email: "john@clinic.test",
		Roles: model.Roles{model.RolePatient},
	}
	if err := st.Users.Create(ctx, patientUser); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	profile := &model.PatientProfile{UserID: patientUser.ID, FirstName: "John", LastName: "Doe"}
	if err := st.Profiles.Create(ctx, profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return &fixture{svc: svc, st: st, dentistID: dentist.ID, patient: profile}
}

func TestCreatePlanDefaultsProcedures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan, err := f.svc.CreatePlan(ctx, f.dentistID, f.patient.ID, PlanParams{
		PlanName:    "Restoration phase 1",
		Description: "Fillings on upper right quadrant",
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.Procedures == nil || len(plan.Procedures) != 0 {
		t.Fatalf("procedures = %v, want empty list", plan.Procedures)
	}
}

func TestAddProcedure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan, err := f.svc.CreatePlan(ctx, f.dentistID, f.patient.ID, PlanParams{PlanName: "Plan"})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	updated, err := f.svc.AddProcedure(ctx, f.dentistID, plan.ID, ProcedureParams{
		ProcedureName: "Composite filling",
		ProcedureCode: "D2391",
		ToothNumbers:  []string{"18"},
		CostEstimate:  model.MustMoney("150.00"),
	})
	if err != nil {
		t.Fatalf("AddProcedure: %v", err)
	}
	if len(updated.Procedures) != 1 {
		t.Fatalf("got %d procedures", len(updated.Procedures))
	}
	proc := updated.Procedures[0]
	if proc.ID == "" {
		t.Fatal("procedure must get a generated id")
	}
	if proc.Status != model.ProcedurePlanned {
		t.Fatalf("default status = %s", proc.Status)
	}

	t.Run("unknown plan", func(t *testing.T) {
		_, err := f.svc.AddProcedure(ctx, f.dentistID, "no-such-plan", ProcedureParams{})
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("want NotFound, got %v", err)
		}
	})
}

func TestUpdateProcedureByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two plans; the procedure lookup must find the right one without being
	// told which plan holds it.
	if _, err := f.svc.CreatePlan(ctx, f.dentistID, f.patient.ID, PlanParams{PlanName: "Other"}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	plan, err := f.svc.CreatePlan(ctx, f.dentistID, f.patient.ID, PlanParams{PlanName: "Target"})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	plan, err = f.svc.AddProcedure(ctx, f.dentistID, plan.ID, ProcedureParams{
		ProcedureName: "Composite filling",
		CostEstimate:  model.MustMoney("150.00"),
	})
	if err != nil {
		t.Fatalf("AddProcedure: %v", err)
	}
	procID := plan.Procedures[0].ID

	got, err := f.svc.UpdateProcedure(ctx, f.dentistID, procID, ProcedureParams{
		ProcedureName: "Composite filling, two surfaces",
		CostEstimate:  model.MustMoney("180.00"),
		Status:        model.ProcedureCompleted,
	})
	if err != nil {
		t.Fatalf("UpdateProcedure: %v", err)
	}
	if got.ID != plan.ID {
		t.Fatalf("updated plan %s, want %s", got.ID, plan.ID)
	}
	proc := got.Procedures[0]
	if proc.ID != procID {
		t.Fatal("procedure id must survive the update")
	}
	if proc.ProcedureName != "Composite filling, two surfaces" {
		t.Fatalf("name = %s", proc.ProcedureName)
	}
	if !proc.CostEstimate.Equal(model.MustMoney("180.00")) {
		t.Fatalf("cost = %s", proc.CostEstimate)
	}

	t.Run("status transitions are not guarded", func(t *testing.T) {
		// COMPLETED back to PLANNED is accepted; there is no state machine
		// on procedures, unlike appointments.
		got, err := f.svc.UpdateProcedure(ctx, f.dentistID, procID, ProcedureParams{
			ProcedureName: "Composite filling, two surfaces",
			Status:        model.ProcedurePlanned,
		})
		if err != nil {
			t.Fatalf("UpdateProcedure: %v", err)
		}
		if got.Procedures[0].Status != model.ProcedurePlanned {
			t.Fatalf("status = %s", got.Procedures[0].Status)
		}
	})

	t.Run("unknown procedure", func(t *testing.T) {
		_, err := f.svc.UpdateProcedure(ctx, f.dentistID, "no-such-proc", ProcedureParams{})
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("want NotFound, got %v", err)
		}
	})
}

func TestMyPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreatePlan(ctx, f.dentistID, f.patient.ID, PlanParams{PlanName: "Plan"}); err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	plans, err := f.svc.MyPlans(ctx, f.patient.UserID)
	if err != nil {
		t.Fatalf("MyPlans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans", len(plans))
	}

	if _, err := f.svc.MyPlans(ctx, f.dentistID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("want Unauthorized, got %v", err)
	}
}
