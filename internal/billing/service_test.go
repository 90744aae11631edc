package billing

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

func (f *fixture) seedPlan(t *testing.T, procs ...model.PlannedProcedure) {
	t.Helper()
	plan := &model.TreatmentPlan{
		PatientID:  f.patient.ID,
		PlanName:   "Plan",
		Procedures: procs,
	}
	if err := f.st.Plans.Create(context.Background(), plan); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
}

func proc(id, name, code, cost, status string) model.PlannedProcedure {
	return model.PlannedProcedure{
		ID:            id,
		ProcedureName: name,
		ProcedureCode: code,
		CostEstimate:  model.MustMoney(cost),
		Status:        status,
	}
}

func TestGenerateInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPlan(t,
		proc("p1", "Composite filling", "D2391", "150.00", model.ProcedureCompleted),
		proc("p2", "Root canal", "D3310", "80.00", model.ProcedurePlanned),
		proc("p3", "Crown", "D2740", "300.00", model.ProcedureCompleted),
	)

	inv, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	if inv.Status != model.InvoiceUnpaid {
		t.Fatalf("status = %s", inv.Status)
	}
	if len(inv.LineItems) != 2 {
		t.Fatalf("got %d line items, want the two completed procedures", len(inv.LineItems))
	}
	for _, item := range inv.LineItems {
		if item.Quantity != 1 {
			t.Fatalf("quantity = %d", item.Quantity)
		}
		if item.Description == "Root canal" {
			t.Fatal("planned procedure must be excluded")
		}
	}
	if !inv.TotalAmount.Equal(model.MustMoney("450.00")) {
		t.Fatalf("total = %s, want 450.00", inv.TotalAmount)
	}
}

func TestGenerateInvoiceTwiceDoubleBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPlan(t, proc("p1", "Crown", "D2740", "300.00", model.ProcedureCompleted))

	first, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("first GenerateInvoice: %v", err)
	}
	second, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("second GenerateInvoice: %v", err)
	}

	// Nothing marks a procedure as billed, so the same completed work lands
	// on both invoices with identical totals.
	if first.ID == second.ID {
		t.Fatal("expected two separate invoices")
	}
	if !first.TotalAmount.Equal(second.TotalAmount) {
		t.Fatalf("totals differ: %s vs %s", first.TotalAmount, second.TotalAmount)
	}

	invoices, err := f.st.Invoices.ByPatient(ctx, f.patient.ID)
	if err != nil {
		t.Fatalf("ByPatient: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("got %d invoices", len(invoices))
	}
}

func TestProcessPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPlan(t, proc("p1", "Crown", "D2740", "300.00", model.ProcedureCompleted))
	inv, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	paid, err := f.svc.ProcessPayment(ctx, f.patient.UserID, PaymentParams{
		InvoiceIDs:    []string{inv.ID},
		PaymentMethod: "CARD",
	})
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if len(paid) != 1 || paid[0].Status != model.InvoicePaid {
		t.Fatalf("paid = %v", paid)
	}

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := f.svc.ProcessPayment(ctx, f.patient.UserID, PaymentParams{
			InvoiceIDs: []string{"no-such-id"},
		})
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("want NotFound, got %v", err)
		}
	})
}

func TestProcessPaymentNotOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPlan(t, proc("p1", "Crown", "D2740", "300.00", model.ProcedureCompleted))
	inv, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	otherUser := &model.User{
		Username: "jane.smith", Password: "pw", Email: "jane@clinic.test",
		Roles: model.Roles{model.RolePatient},
	}
	if err := f.st.Users.Create(ctx, otherUser); err != nil {
		t.Fatalf("seed: %v", err)
	}
	otherProfile := &model.PatientProfile{UserID: otherUser.ID, FirstName: "Jane", LastName: "Smith"}
	if err := f.st.Profiles.Create(ctx, otherProfile); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = f.svc.ProcessPayment(ctx, otherUser.ID, PaymentParams{InvoiceIDs: []string{inv.ID}})
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("want Unauthorized, got %v", err)
	}

	// The rejected payment must not touch the invoice.
	got, err := f.st.Invoices.ByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got.Status != model.InvoiceUnpaid {
		t.Fatalf("status = %s, want unchanged UNPAID", got.Status)
	}
}

func TestPaymentBatchFirstFailureWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPlan(t, proc("p1", "Crown", "D2740", "300.00", model.ProcedureCompleted))
	first, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	second, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	_, err = f.svc.ProcessPayment(ctx, f.patient.UserID, PaymentParams{
		InvoiceIDs: []string{first.ID, "no-such-id", second.ID},
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("want NotFound, got %v", err)
	}

	// The failure aborts the batch but does not roll back the invoice paid
	// before it, and never reaches the one after it.
	got, err := f.st.Invoices.ByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got.Status != model.InvoicePaid {
		t.Fatalf("first invoice status = %s, want PAID", got.Status)
	}
	got, err = f.st.Invoices.ByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got.Status != model.InvoiceUnpaid {
		t.Fatalf("second invoice status = %s, want UNPAID", got.Status)
	}
}

func TestMyInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPlan(t, proc("p1", "Crown", "D2740", "300.00", model.ProcedureCompleted))
	if _, err := f.svc.GenerateInvoice(ctx, f.dentistID, f.patient.ID); err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	invoices, err := f.svc.MyInvoices(ctx, f.patient.UserID)
	if err != nil {
		t.Fatalf("MyInvoices: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("got %d invoices", len(invoices))
	}

	if _, err := f.svc.MyInvoices(ctx, f.dentistID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("want Unauthorized, got %v", err)
	}
}
