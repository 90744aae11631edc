// Package record manages the single dental record each patient has: the
// tooth chart, file attachments and clinical notes. Records are created
// lazily on first access.
package record

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

type AttachmentParams struct {
	Filename   string
	FileType   string
	StorageURL string
}

type Service interface {
	Get(ctx context.Context, dentistID, patientID string) (*model.DentalRecord, error)
	UpdateChart(ctx context.Context, dentistID, patientID string, chart model.DentalChart) (*model.DentalRecord, error)
	AddAttachment(ctx context.Context, dentistID, patientID string, params AttachmentParams) (*model.DentalRecord, error)
	AddNote(ctx context.Context, dentistID, patientID, text string) (*model.DentalRecord, error)
	MyRecord(ctx context.Context, patientUserID string) (*model.DentalRecord, error)
}

type service struct {
	records  store.Records
	profiles store.Profiles
	guard    auth.Service
	audit    audit.Service
}

func NewService(st *store.Store, guard auth.Service, auditSvc audit.Service) Service {
	return &service{records: st.Records, profiles: st.Profiles, guard: guard, audit: auditSvc}
}

func (s *service) Get(ctx context.Context, dentistID, patientID string) (*model.DentalRecord, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	rec, err := s.recordFor(ctx, patientID)
	if err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventAccess,
		UserID:     dentistID,
		Action:     "READ",
		Resource:   "dental_record",
		ResourceID: rec.ID,
		Status:     "success",
	})
	return rec, nil
}

// UpdateChart replaces the whole chart map. Callers send the full chart;
// there is no per-tooth merge.
func (s *service) UpdateChart(ctx context.Context, dentistID, patientID string, chart model.DentalChart) (*model.DentalRecord, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	rec, err := s.recordFor(ctx, patientID)
	if err != nil {
		return nil, err
	}

	rec.DentalChart = chart
	rec.UpdatedAt = time.Now()
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.auditModify(ctx, dentistID, rec.ID, "UPDATE_CHART")
	return rec, nil
}

func (s *service) AddAttachment(ctx context.Context, dentistID, patientID string, params AttachmentParams) (*model.DentalRecord, error) {
	if _, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist); err != nil {
		return nil, err
	}

	rec, err := s.recordFor(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec.Attachments = append(rec.Attachments, model.Attachment{
		Filename:   params.Filename,
		FileType:   params.FileType,
		UploadDate: now,
		StorageURL: params.StorageURL,
	})
	rec.UpdatedAt = now
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.auditModify(ctx, dentistID, rec.ID, "ADD_ATTACHMENT")
	return rec, nil
}

// AddNote appends a clinical note attributed to the calling dentist's
// username and stamped at append time.
func (s *service) AddNote(ctx context.Context, dentistID, patientID, text string) (*model.DentalRecord, error) {
	dentist, err := s.guard.RequireRole(ctx, dentistID, model.RoleDentist)
	if err != nil {
		return nil, err
	}

	rec, err := s.recordFor(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec.GeneralNotes = append(rec.GeneralNotes, model.ClinicalNote{
		Note:        text,
		Timestamp:   now,
		DentistName: dentist.Username,
	})
	rec.UpdatedAt = now
	if err := s.records.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.auditModify(ctx, dentistID, rec.ID, "ADD_NOTE")
	return rec, nil
}

func (s *service) MyRecord(ctx context.Context, patientUserID string) (*model.DentalRecord, error) {
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
	return s.recordFor(ctx, profile.ID)
}

// recordFor returns the patient's record, creating and persisting an empty
// one on first access. Reads therefore have a write side effect the first
// time around.
func (s *service) recordFor(ctx context.Context, patientID string) (*model.DentalRecord, error) {
	rec, err := s.records.ByPatient(ctx, patientID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNoDocument) {
		return nil, err
	}

	now := time.Now()
	rec = &model.DentalRecord{
		PatientID:    patientID,
		DentalChart:  model.DentalChart{},
		Attachments:  []model.Attachment{},
		GeneralNotes: []model.ClinicalNote{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) auditModify(ctx context.Context, dentistID, recordID, action string) {
	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     dentistID,
		Action:     action,
		Resource:   "dental_record",
		ResourceID: recordID,
		Status:     "success",
	})
}
