// Package scheduling books and manages appointments. Patients book against
// dentists; terminal appointment statuses (COMPLETED, CANCELLED) reject any
// further transition.
package scheduling

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

// defaultDurationMinutes applies when a booking does not specify a slot
// length.
const defaultDurationMinutes = 30

type BookParams struct {
	DentistID       string
	AppointmentDate string
	AppointmentType string
	Notes           string
	DurationMinutes int
}

type Service interface {
	MyAppointments(ctx context.Context, patientUserID string) ([]model.Appointment, error)
	Book(ctx context.Context, patientUserID string, params BookParams) (*model.Appointment, error)
	Reschedule(ctx context.Context, patientUserID, appointmentID, newDate string) (*model.Appointment, error)
	Cancel(ctx context.Context, patientUserID, appointmentID string) (*model.Appointment, error)
	DentistAppointments(ctx context.Context, dentistID string) ([]model.Appointment, error)
	DentistToday(ctx context.Context, dentistID string) ([]model.Appointment, error)
	AvailableDentists(ctx context.Context, patientUserID string) ([]model.User, error)
}

type service struct {
	appointments store.Appointments
	users        store.Users
	profiles     store.Profiles
	guard        auth.Service
	audit        audit.Service
}

func NewService(st *store.Store, guard auth.Service, auditSvc audit.Service) Service {
	return &service{
		appointments: st.Appointments,
		users:        st.Users,
		profiles:     st.Profiles,
		guard:        guard,
		audit:        auditSvc,
	}
}

func (s *service) MyAppointments(ctx context.Context, patientUserID string) ([]model.Appointment, error) {
	profile, err := s.requirePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}
	return s.appointments.ByPatient(ctx, profile.ID)
}

func (s *service) Book(ctx context.Context, patientUserID string, params BookParams) (*model.Appointment, error) {
	profile, err := s.requirePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	dentist, err := s.users.ByID(ctx, params.DentistID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("dentist not found")
		}
		return nil, err
	}
	if !dentist.Roles.Has(model.RoleDentist) {
		return nil, apperr.InvalidState("user is not a dentist")
	}

	when, err := parseAppointmentDate(params.AppointmentDate)
	if err != nil {
		return nil, err
	}

	duration := params.DurationMinutes
	if duration <= 0 {
		duration = defaultDurationMinutes
	}

	now := time.Now()
	appt := &model.Appointment{
		PatientID:       profile.ID,
		DentistID:       dentist.ID,
		AppointmentDate: when,
		AppointmentType: params.AppointmentType,
		Status:          model.AppointmentScheduled,
		Notes:           params.Notes,
		DurationMinutes: duration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}

	s.auditModify(ctx, patientUserID, appt.ID, "BOOK")
	return appt, nil
}

// Reschedule moves an appointment to a new date-time and resets its status
// to SCHEDULED. A CONFIRMED appointment that is rescheduled needs confirming
// again.
func (s *service) Reschedule(ctx context.Context, patientUserID, appointmentID, newDate string) (*model.Appointment, error) {
	profile, err := s.requirePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	appt, err := s.ownedAppointment(ctx, profile.ID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentCompleted || appt.Status == model.AppointmentCancelled {
		return nil, apperr.InvalidState("cannot reschedule a %s appointment", appt.Status)
	}

	when, err := parseAppointmentDate(newDate)
	if err != nil {
		return nil, err
	}

	appt.AppointmentDate = when
	appt.Status = model.AppointmentScheduled
	appt.UpdatedAt = time.Now()
	if err := s.appointments.Save(ctx, appt); err != nil {
		return nil, err
	}

	s.auditModify(ctx, patientUserID, appt.ID, "RESCHEDULE")
	return appt, nil
}

func (s *service) Cancel(ctx context.Context, patientUserID, appointmentID string) (*model.Appointment, error) {
	profile, err := s.requirePatientProfile(ctx, patientUserID)
	if err != nil {
		return nil, err
	}

	appt, err := s.ownedAppointment(ctx, profile.ID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentCompleted {
		return nil, apperr.InvalidState("cannot cancel a completed appointment")
	}
	if appt.Status == model.AppointmentCancelled {
		return nil, apperr.InvalidState("appointment is already cancelled")
	}

	appt.Status = model.AppointmentCancelled
	appt.UpdatedAt = time.Now()
	if err := s.appointments.Save(ctx, appt); err != nil {
		return nil, err
	}

	s.auditModify(ctx, patientUserID, appt.ID, "CANCEL")
	return appt, nil
}

func (s *service) DentistAppointments(ctx context.Context, dentistID string) ([]model.Appointment, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}
	return s.appointments.ByDentist(ctx, dentistID)
}

// DentistToday returns the caller's appointments within the local calendar
// day [start of day, start of next day). The date range comes from the
// store; the dentist filter is applied here.
func (s *service) DentistToday(ctx context.Context, dentistID string) ([]model.Appointment, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	all, err := s.appointments.ByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	today := make([]model.Appointment, 0, len(all))
	for _, appt := range all {
		if appt.DentistID == dentistID {
			today = append(today, appt)
		}
	}
	return today, nil
}

func (s *service) AvailableDentists(ctx context.Context, patientUserID string) ([]model.User, error) {
	if _, err := s.guard.RequireRole(ctx, patientUserID, model.RolePatient); err != nil {
		return nil, err
	}
	return s.users.ByRole(ctx, model.RoleDentist)
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

func (s *service) ownedAppointment(ctx context.Context, profileID, appointmentID string) (*model.Appointment, error) {
	appt, err := s.appointments.ByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, err
	}
	if appt.PatientID != profileID {
		return nil, apperr.Unauthorized("appointment does not belong to the caller")
	}
	return appt, nil
}

func parseAppointmentDate(raw string) (time.Time, error) {
	when, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.InvalidState("invalid appointment date: %s", raw)
	}
	return when, nil
}

func (s *service) auditModify(ctx context.Context, userID, appointmentID, action string) {
	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     userID,
		Action:     action,
		Resource:   "appointment",
		ResourceID: appointmentID,
		Status:     "success",
	})
}
