// Package model holds the documents the clinic backend persists. Field names
// on the chart, attachment, note, procedure and line-item structures must not
// change: existing documents written by the previous system use exactly these
// keys.
package model

import "time"

// Role is one of the three account roles. A user carries a set of roles and
// authorization is always a membership check, so adding a fourth role is a
// matter of adding a constant.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleDentist Role = "DENTIST"
	RolePatient Role = "PATIENT"
)

// Roles is the role set carried on a user.
type Roles []Role

func (rs Roles) Has(r Role) bool {
	for _, have := range rs {
		if have == r {
			return true
		}
	}
	return false
}

// Appointment statuses. SCHEDULED, CONFIRMED and COMPLETED form the normal
// flow; CANCELLED and NO_SHOW are reachable from any non-terminal state.
const (
	AppointmentScheduled = "SCHEDULED"
	AppointmentConfirmed = "CONFIRMED"
	AppointmentCompleted = "COMPLETED"
	AppointmentCancelled = "CANCELLED"
	AppointmentNoShow    = "NO_SHOW"
)

// Procedure statuses. Transitions between these are not guarded; see the
// treatment service.
const (
	ProcedurePlanned    = "PLANNED"
	ProcedureInProgress = "IN_PROGRESS"
	ProcedureCompleted  = "COMPLETED"
	ProcedureCancelled  = "CANCELLED"
)

// Invoice statuses.
const (
	InvoiceUnpaid  = "UNPAID"
	InvoicePaid    = "PAID"
	InvoicePartial = "PARTIAL"
)

// User is a login account. The password is stored as supplied; see DESIGN.md
// for why this defect is preserved rather than fixed.
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Password  string    `bson:"password" json:"-"`
	Email     string    `bson:"email" json:"email"`
	Roles     Roles     `bson:"roles" json:"roles"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PatientProfile is the clinical/demographic record for a patient, distinct
// from the login-owning User. Exactly one profile per PATIENT user.
type PatientProfile struct {
	ID                    string    `bson:"_id,omitempty" json:"id"`
	UserID                string    `bson:"userId" json:"userId"`
	FirstName             string    `bson:"firstName" json:"firstName"`
	LastName              string    `bson:"lastName" json:"lastName"`
	DateOfBirth           time.Time `bson:"dateOfBirth" json:"dateOfBirth"`
	ContactPhone          string    `bson:"contactPhone" json:"contactPhone"`
	Address               string    `bson:"address" json:"address"`
	MedicalHistorySummary string    `bson:"medicalHistorySummary" json:"medicalHistorySummary"`
	InsuranceDetails      string    `bson:"insuranceDetails" json:"insuranceDetails"`
	CreatedAt             time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DentalChart maps tooth identifier -> surface identifier -> condition label.
// All three are free-form strings, e.g. {"tooth_18": {"occlusal": "HEALTHY"}}.
type DentalChart map[string]map[string]string

type Attachment struct {
	Filename   string    `bson:"filename" json:"filename"`
	FileType   string    `bson:"fileType" json:"fileType"`
	UploadDate time.Time `bson:"uploadDate" json:"uploadDate"`
	StorageURL string    `bson:"storageUrl" json:"storageUrl"`
}

type ClinicalNote struct {
	Note        string    `bson:"note" json:"note"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
	DentistName string    `bson:"dentistName" json:"dentistName"`
}

// DentalRecord is the single chart document per patient, created lazily on
// first access.
type DentalRecord struct {
	ID           string         `bson:"_id,omitempty" json:"id"`
	PatientID    string         `bson:"patientId" json:"patientId"`
	DentalChart  DentalChart    `bson:"dentalChart" json:"dentalChart"`
	Attachments  []Attachment   `bson:"attachments" json:"attachments"`
	GeneralNotes []ClinicalNote `bson:"generalNotes" json:"generalNotes"`
	CreatedAt    time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// PlannedProcedure is embedded in a TreatmentPlan. Its id is unique across
// all procedures in all plans and is used for direct lookup.
type PlannedProcedure struct {
	ID            string    `bson:"id" json:"id"`
	ProcedureName string    `bson:"procedureName" json:"procedureName"`
	ProcedureCode string    `bson:"procedureCode" json:"procedureCode"`
	ToothNumbers  []string  `bson:"toothNumbers" json:"toothNumbers"`
	CostEstimate  Money     `bson:"costEstimate" json:"costEstimate"`
	Status        string    `bson:"status" json:"status"`
	Notes         string    `bson:"notes" json:"notes"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TreatmentPlan is a named, ordered collection of procedures for a patient.
// A patient may have any number of plans.
type TreatmentPlan struct {
	ID          string             `bson:"_id,omitempty" json:"id"`
	PatientID   string             `bson:"patientId" json:"patientId"`
	PlanName    string             `bson:"planName" json:"planName"`
	Description string             `bson:"description" json:"description"`
	Procedures  []PlannedProcedure `bson:"procedures" json:"procedures"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Appointment struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	PatientID       string    `bson:"patientId" json:"patientId"`
	DentistID       string    `bson:"dentistId" json:"dentistId"`
	AppointmentDate time.Time `bson:"appointmentDate" json:"appointmentDate"`
	AppointmentType string    `bson:"appointmentType" json:"appointmentType"`
	Status          string    `bson:"status" json:"status"`
	Notes           string    `bson:"notes" json:"notes"`
	DurationMinutes int       `bson:"durationMinutes" json:"durationMinutes"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

// LineItem is one billed component of an invoice, derived from a completed
// procedure.
type LineItem struct {
	Description   string `bson:"description" json:"description"`
	Cost          Money  `bson:"cost" json:"cost"`
	Quantity      int    `bson:"quantity" json:"quantity"`
	ProcedureCode string `bson:"procedureCode" json:"procedureCode"`
}

type Invoice struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	PatientID   string     `bson:"patientId" json:"patientId"`
	IssueDate   time.Time  `bson:"issueDate" json:"issueDate"`
	LineItems   []LineItem `bson:"lineItems" json:"lineItems"`
	TotalAmount Money      `bson:"totalAmount" json:"totalAmount"`
	Status      string     `bson:"status" json:"status"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
}
