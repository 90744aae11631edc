package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dentistplus/clinic-api/internal/model"
)

func TestPlansByProcedureID(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	plan := &model.TreatmentPlan{
		PatientID: "patient-1",
		PlanName:  "Plan",
		Procedures: []model.PlannedProcedure{
			{ID: "proc-1", ProcedureName: "Filling"},
		},
	}
	if err := st.Plans.Create(ctx, plan); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := st.Plans.ByProcedureID(ctx, "proc-1")
	if err != nil {
		t.Fatalf("ByProcedureID: %v", err)
	}
	if got.ID != plan.ID {
		t.Fatalf("got plan %s, want %s", got.ID, plan.ID)
	}

	if _, err := st.Plans.ByProcedureID(ctx, "proc-2"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("want ErrNoDocument, got %v", err)
	}

	t.Run("index follows saves", func(t *testing.T) {
		got.Procedures = append(got.Procedures, model.PlannedProcedure{ID: "proc-2", ProcedureName: "Crown"})
		if err := st.Plans.Save(ctx, got); err != nil {
			t.Fatalf("Save: %v", err)
		}
		found, err := st.Plans.ByProcedureID(ctx, "proc-2")
		if err != nil {
			t.Fatalf("ByProcedureID after save: %v", err)
		}
		if found.ID != plan.ID {
			t.Fatalf("got plan %s", found.ID)
		}
	})
}

func TestAppointmentsByDateRange(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	day := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	for _, when := range []time.Time{
		day.Add(-time.Minute), // day before
		day,                   // inclusive lower bound
		day.Add(10 * time.Hour),
		next, // exclusive upper bound
	} {
		appt := &model.Appointment{
			PatientID:       "patient-1",
			DentistID:       "dentist-1",
			AppointmentDate: when,
			Status:          model.AppointmentScheduled,
		}
		if err := st.Appointments.Create(ctx, appt); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := st.Appointments.ByDateRange(ctx, day, next)
	if err != nil {
		t.Fatalf("ByDateRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d appointments, want the two inside [start, next)", len(got))
	}
	for _, a := range got {
		if a.AppointmentDate.Before(day) || !a.AppointmentDate.Before(next) {
			t.Fatalf("appointment at %v outside the half-open range", a.AppointmentDate)
		}
	}
}

func TestSearchByNameOrSemantics(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	for _, p := range []struct{ first, last string }{
		{"John", "Doe"},
		{"Jane", "Smith"},
		{"Bob", "Johnson"},
	} {
		profile := &model.PatientProfile{UserID: p.first, FirstName: p.first, LastName: p.last}
		if err := st.Profiles.Create(ctx, profile); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := st.Profiles.SearchByName(ctx, "JOHN")
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	// Case-insensitive, matching first OR last name.
	if len(got) != 2 {
		t.Fatalf("got %d profiles, want John Doe and Bob Johnson", len(got))
	}
}
