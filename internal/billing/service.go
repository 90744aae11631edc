// Package billing turns completed procedures into invoices and records
// payments against them.
package billing

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

// PaymentParams carries the card or method details supplied with a payment.
// They are recorded in the audit trail but never validated or charged; there
// is no gateway integration.
type PaymentParams struct {
	InvoiceIDs    []string
	PaymentMethod string
}

type Service interface {
	GenerateInvoice(ctx context.Context, dentistID, patientID string) (*model.Invoice, error)
	PatientInvoices(ctx context.Context, dentistID, patientID string) ([]model.Invoice, error)
	MyInvoices(ctx context.Context, patientUserID string) ([]model.Invoice, error)
	ProcessPayment(ctx context.Context, patientUserID string, params PaymentParams) ([]model.Invoice, error)
}

type service struct {
	invoices store.Invoices
	plans    store.Plans
	profiles store.Profiles
	guard    auth.Service
	audit    audit.Service
}

func NewService(st *store.Store, guard auth.Service, auditSvc audit.Service) Service {
	return &service{
		invoices: st.Invoices,
		plans:    st.Plans,
		profiles: st.Profiles,
		guard:    guard,
		audit:    auditSvc,
	}
}

// GenerateInvoice collects every COMPLETED procedure across the patient's
// treatment plans into a new UNPAID invoice dated today. Nothing marks a
// procedure as already billed, so calling this twice double-invoices; see
// DESIGN.md.
func (s *service) GenerateInvoice(ctx context.Context, dentistID, patientID string) (*model.Invoice, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	plans, err := s.plans.ByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	var items []model.LineItem
	var total model.Money
	for _, plan := range plans {
		for _, proc := range plan.Procedures {
			if proc.Status != model.ProcedureCompleted {
				continue
			}
			items = append(items, model.LineItem{
				Description:   proc.ProcedureName,
				Cost:          proc.CostEstimate,
				Quantity:      1,
				ProcedureCode: proc.ProcedureCode,
			})
			total = total.Add(proc.CostEstimate)
		}
	}
	if items == nil {
		items = []model.LineItem{}
	}

	now := time.Now()
	inv := &model.Invoice{
		PatientID:   patientID,
		IssueDate:   now,
		LineItems:   items,
		TotalAmount: total,
		Status:      model.InvoiceUnpaid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     dentistID,
		Action:     "GENERATE",
		Resource:   "invoice",
		ResourceID: inv.ID,
		Status:     "success",
	})
	return inv, nil
}

func (s *service) PatientInvoices(ctx context.Context, dentistID, patientID string) ([]model.Invoice, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}
	return s.invoices.ByPatient(ctx, patientID)
}

func (s *service) MyInvoices(ctx context.Context, patientUserID string) ([]model.Invoice, error) {
	profile, err := s.requirePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	return s.invoices.ByPatient(ctx, profile.ID)
}

// ProcessPayment marks each invoice in the batch PAID, in order. Each
// invoice is validated and saved independently; the first failure aborts the
// rest of the batch but does not roll back invoices already paid.
func (s *service) ProcessPayment(ctx context.Context, patientUserID string, params PaymentParams) ([]model.Invoice, error) {
	profile, err := s.requirePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	paid := make([]model.Invoice, 0, len(params.InvoiceIDs))
	for _, id := range params.InvoiceIDs {
		inv, err := s.invoices.ByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNoDocument) {
				return nil, apperr.NotFound("invoice not found: %s", id)
			}
			return nil, err
		}
		if inv.PatientID != profile.ID {
			return nil, apperr.Unauthorized("invoice does not belong to the caller")
		}

		inv.Status = model.InvoicePaid
		inv.UpdatedAt = time.Now()
		if err := s.invoices.Save(ctx, inv); err != nil {
			return nil, err
		}

		s.audit.LogEvent(ctx, &audit.Event{
			EventType:  audit.EventPayment,
			UserID:     patientUserID,
			Action:     "PAY",
			Resource:   "invoice",
			ResourceID: inv.ID,
			Status:     "success",
		})
		paid = append(paid, *inv)
	}
	return paid, nil
}

func (s *service) requirePatientProfile(ctx context.Context, patientUserID string) (*model.PatientProfile, error) {
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
	return profile, nil
}
