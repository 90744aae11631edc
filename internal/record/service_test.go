package record

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

func TestGetCreatesLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Get(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("lazily created record must be persisted with an id")
	}
	if rec.Attachments == nil || len(rec.Attachments) != 0 {
		t.Fatalf("attachments = %v, want empty list", rec.Attachments)
	}
	if rec.GeneralNotes == nil || len(rec.GeneralNotes) != 0 {
		t.Fatalf("notes = %v, want empty list", rec.GeneralNotes)
	}

	// A second read returns the same persisted record, not another one.
	again, err := f.svc.Get(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if again.ID != rec.ID {
		t.Fatalf("second read created a new record: %s vs %s", again.ID, rec.ID)
	}
}

func TestUpdateChartReplacesWholeMap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := model.DentalChart{
		"tooth_18": {"occlusal": "CARIES"},
		"tooth_21": {"buccal": "HEALTHY"},
	}
	if _, err := f.svc.UpdateChart(ctx, f.dentistID, f.patient.ID, first); err != nil {
		t.Fatalf("UpdateChart: %v", err)
	}

	second := model.DentalChart{"tooth_18": {"occlusal": "FILLED"}}
	rec, err := f.svc.UpdateChart(ctx, f.dentistID, f.patient.ID, second)
	if err != nil {
		t.Fatalf("UpdateChart: %v", err)
	}
	if len(rec.DentalChart) != 1 {
		t.Fatalf("chart = %v, want full replacement with one tooth", rec.DentalChart)
	}
	if rec.DentalChart["tooth_18"]["occlusal"] != "FILLED" {
		t.Fatalf("chart = %v", rec.DentalChart)
	}
}

func TestAddAttachmentPreservesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"xray-1.png", "xray-2.png"} {
		if _, err := f.svc.AddAttachment(ctx, f.dentistID, f.patient.ID, AttachmentParams{
			Filename:   name,
			FileType:   "image/png",
			StorageURL: "s3://records/" + name,
		}); err != nil {
			t.Fatalf("AddAttachment %s: %v", name, err)
		}
	}

	rec, err := f.st.Records.ByPatient(ctx, f.patient.ID)
	if err != nil {
		t.Fatalf("ByPatient: %v", err)
	}
	if len(rec.Attachments) != 2 {
		t.Fatalf("got %d attachments", len(rec.Attachments))
	}
	if rec.Attachments[0].Filename != "xray-1.png" || rec.Attachments[1].Filename != "xray-2.png" {
		t.Fatalf("append order lost: %v", rec.Attachments)
	}
}

func TestAddNoteAttributesDentist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := time.Now()
	rec, err := f.svc.AddNote(ctx, f.dentistID, f.patient.ID, "patient reports sensitivity on 18")
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if len(rec.GeneralNotes) != 1 {
		t.Fatalf("got %d notes", len(rec.GeneralNotes))
	}
	note := rec.GeneralNotes[0]
	if note.DentistName != "dr.smith" {
		t.Fatalf("dentistName = %q", note.DentistName)
	}
	if note.Timestamp.Before(before) {
		t.Fatalf("timestamp %v predates the append", note.Timestamp)
	}
}

func TestMyRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.MyRecord(ctx, f.patient.UserID)
	if err != nil {
		t.Fatalf("MyRecord: %v", err)
	}
	if rec.PatientID != f.patient.ID {
		t.Fatalf("record owner %s, want %s", rec.PatientID, f.patient.ID)
	}

	if _, err := f.svc.MyRecord(ctx, f.dentistID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("want Unauthorized, got %v", err)
	}
}
