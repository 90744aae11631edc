package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dentistplus/clinic-api/internal/admin"
	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/billing"
	"github.com/dentistplus/clinic-api/internal/middleware"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/patient"
	"github.com/dentistplus/clinic-api/internal/record"
	"github.com/dentistplus/clinic-api/internal/scheduling"
	"github.com/dentistplus/clinic-api/internal/treatment"
)

// dateOfBirthLayout is the wire format for dates without a time component.
const dateOfBirthLayout = "2006-01-02"

type Handler struct {
	authService       auth.Service
	adminService      admin.Service
	patientService    patient.Service
	recordService     record.Service
	treatmentService  treatment.Service
	schedulingService scheduling.Service
	billingService    billing.Service
}

func NewHandler(
	authService auth.Service,
	adminService admin.Service,
	patientService patient.Service,
	recordService record.Service,
	treatmentService treatment.Service,
	schedulingService scheduling.Service,
	billingService billing.Service,
) *Handler {
	return &Handler{
		authService:       authService,
		adminService:      adminService,
		patientService:    patientService,
		recordService:     recordService,
		treatmentService:  treatmentService,
		schedulingService: schedulingService,
		billingService:    billingService,
	}
}

// writeError maps the service error kinds onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindInvalidState:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func callerID(c *gin.Context) string {
	return c.GetString(middleware.CallerIDKey)
}

// Authentication

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type RegisterPatientRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	FirstName    string `json:"firstName" binding:"required"`
	LastName     string `json:"lastName" binding:"required"`
	DateOfBirth  string `json:"dateOfBirth"`
	ContactPhone string `json:"contactPhone"`
	Address      string `json:"address"`
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var dob time.Time
	if req.DateOfBirth != "" {
		parsed, err := time.Parse(dateOfBirthLayout, req.DateOfBirth)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dateOfBirth, want YYYY-MM-DD"})
			return
		}
		dob = parsed
	}

	user, err := h.authService.RegisterPatient(c.Request.Context(), auth.RegisterPatientParams{
		Username:     req.Username,
		Password:     req.Password,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  dob,
		ContactPhone: req.ContactPhone,
		Address:      req.Address,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) CurrentUser(c *gin.Context) {
	user, err := h.authService.CurrentUser(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Admin management

type CreateUserRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r CreateUserRequest) params() admin.CreateUserParams {
	return admin.CreateUserParams{
		Username:  r.Username,
		Password:  r.Password,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// UpdateUserRequest uses pointers so an absent field is distinguishable from
// an empty one; only present fields overwrite.
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (r UpdateUserRequest) params() admin.UpdateUserParams {
	return admin.UpdateUserParams{Email: r.Email, Password: r.Password}
}

func (h *Handler) ListDentists(c *gin.Context) {
	dentists, err := h.adminService.ListDentists(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dentists)
}

func (h *Handler) ListPatientUsers(c *gin.Context) {
	patients, err := h.adminService.ListPatients(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, patients)
}

func (h *Handler) CreateDentist(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.adminService.CreateDentist(c.Request.Context(), callerID(c), req.params())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) CreatePatientUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.adminService.CreatePatient(c.Request.Context(), callerID(c), req.params())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) UpdateDentist(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.adminService.UpdateDentist(c.Request.Context(), callerID(c), c.Param("id"), req.params())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdatePatientUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.adminService.UpdatePatient(c.Request.Context(), callerID(c), c.Param("id"), req.params())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) DeleteDentist(c *gin.Context) {
	if err := h.adminService.DeleteDentist(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DeletePatientUser(c *gin.Context) {
	if err := h.adminService.DeletePatient(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Patient directory

type UpdateProfileRequest struct {
	FirstName             string `json:"firstName" binding:"required"`
	LastName              string `json:"lastName" binding:"required"`
	DateOfBirth           string `json:"dateOfBirth" binding:"required"`
	ContactPhone          string `json:"contactPhone"`
	Address               string `json:"address"`
	MedicalHistorySummary string `json:"medicalHistorySummary"`
	InsuranceDetails      string `json:"insuranceDetails"`
}

func (h *Handler) ListPatients(c *gin.Context) {
	ctx := c.Request.Context()
	if query := c.Query("search"); query != "" {
		profiles, err := h.patientService.Search(ctx, callerID(c), query)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, profiles)
		return
	}

	profiles, err := h.patientService.List(ctx, callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *Handler) GetPatient(c *gin.Context) {
	profile, err := h.patientService.Get(c.Request.Context(), callerID(c), c.Param("patientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dob, err := time.Parse(dateOfBirthLayout, req.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dateOfBirth, want YYYY-MM-DD"})
		return
	}

	profile, err := h.patientService.Update(c.Request.Context(), callerID(c), c.Param("patientId"), patient.UpdateProfileParams{
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		DateOfBirth:           dob,
		ContactPhone:          req.ContactPhone,
		Address:               req.Address,
		MedicalHistorySummary: req.MedicalHistorySummary,
		InsuranceDetails:      req.InsuranceDetails,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) MyProfile(c *gin.Context) {
	profile, err := h.patientService.MyProfile(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Clinical records

type AttachmentRequest struct {
	Filename   string `json:"filename" binding:"required"`
	FileType   string `json:"fileType"`
	StorageURL string `json:"storageUrl" binding:"required"`
}

type NoteRequest struct {
	Note string `json:"note" binding:"required"`
}

func (h *Handler) GetRecord(c *gin.Context) {
	rec, err := h.recordService.Get(c.Request.Context(), callerID(c), c.Param("patientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) UpdateChart(c *gin.Context) {
	var chart model.DentalChart
	if err := c.ShouldBindJSON(&chart); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.recordService.UpdateChart(c.Request.Context(), callerID(c), c.Param("patientId"), chart)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) AddAttachment(c *gin.Context) {
	var req AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.recordService.AddAttachment(c.Request.Context(), callerID(c), c.Param("patientId"), record.AttachmentParams{
		Filename:   req.Filename,
		FileType:   req.FileType,
		StorageURL: req.StorageURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) AddNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := h.recordService.AddNote(c.Request.Context(), callerID(c), c.Param("patientId"), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) MyRecord(c *gin.Context) {
	rec, err := h.recordService.MyRecord(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Treatment plans

type ProcedureRequest struct {
	ProcedureName string      `json:"procedureName" binding:"required"`
	ProcedureCode string      `json:"procedureCode"`
	ToothNumbers  []string    `json:"toothNumbers"`
	CostEstimate  model.Money `json:"costEstimate"`
	Status        string      `json:"status"`
	Notes         string      `json:"notes"`
}

func (r ProcedureRequest) params() treatment.ProcedureParams {
	return treatment.ProcedureParams{
		ProcedureName: r.ProcedureName,
		ProcedureCode: r.ProcedureCode,
		ToothNumbers:  r.ToothNumbers,
		CostEstimate:  r.CostEstimate,
		Status:        r.Status,
		Notes:         r.Notes,
	}
}

type PlanRequest struct {
	PlanName    string             `json:"planName" binding:"required"`
	Description string             `json:"description"`
	Procedures  []ProcedureRequest `json:"procedures"`
}

func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.treatmentService.ListPlans(c.Request.Context(), callerID(c), c.Param("patientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *Handler) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := treatment.PlanParams{
		PlanName:    req.PlanName,
		Description: req.Description,
	}
	for _, p := range req.Procedures {
		params.Procedures = append(params.Procedures, p.params())
	}

	plan, err := h.treatmentService.CreatePlan(c.Request.Context(), callerID(c), c.Param("patientId"), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *Handler) AddProcedure(c *gin.Context) {
	var req ProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.treatmentService.AddProcedure(c.Request.Context(), callerID(c), c.Param("planId"), req.params())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) UpdateProcedure(c *gin.Context) {
	var req ProcedureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.treatmentService.UpdateProcedure(c.Request.Context(), callerID(c), c.Param("procedureId"), req.params())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *Handler) MyPlans(c *gin.Context) {
	plans, err := h.treatmentService.MyPlans(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// Scheduling

type BookRequest struct {
	DentistID       string `json:"dentistId" binding:"required"`
	AppointmentDate string `json:"appointmentDate" binding:"required"`
	AppointmentType string `json:"appointmentType"`
	Notes           string `json:"notes"`
	DurationMinutes int    `json:"durationMinutes"`
}

type RescheduleRequest struct {
	AppointmentDate string `json:"appointmentDate" binding:"required"`
}

func (h *Handler) MyAppointments(c *gin.Context) {
	appts, err := h.schedulingService.MyAppointments(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	appt, err := h.schedulingService.Book(c.Request.Context(), callerID(c), scheduling.BookParams{
		DentistID:       req.DentistID,
		AppointmentDate: req.AppointmentDate,
		AppointmentType: req.AppointmentType,
		Notes:           req.Notes,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	appt, err := h.schedulingService.Reschedule(c.Request.Context(), callerID(c), c.Param("id"), req.AppointmentDate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	appt, err := h.schedulingService.Cancel(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) DentistAppointments(c *gin.Context) {
	appts, err := h.schedulingService.DentistAppointments(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

func (h *Handler) DentistToday(c *gin.Context) {
	appts, err := h.schedulingService.DentistToday(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

func (h *Handler) AvailableDentists(c *gin.Context) {
	dentists, err := h.schedulingService.AvailableDentists(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dentists)
}

// Billing

type PaymentMethod struct {
	Type        string            `json:"type"`
	CardDetails map[string]string `json:"cardDetails"`
}

type PaymentRequest struct {
	InvoiceIDs    []string      `json:"invoiceIds" binding:"required"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

func (h *Handler) GenerateInvoice(c *gin.Context) {
	inv, err := h.billingService.GenerateInvoice(c.Request.Context(), callerID(c), c.Param("patientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) PatientInvoices(c *gin.Context) {
	invoices, err := h.billingService.PatientInvoices(c.Request.Context(), callerID(c), c.Param("patientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *Handler) MyInvoices(c *gin.Context) {
	invoices, err := h.billingService.MyInvoices(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *Handler) ProcessPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Card details are accepted for interface compatibility; no gateway is
	// called and nothing is charged.
	paid, err := h.billingService.ProcessPayment(c.Request.Context(), callerID(c), billing.PaymentParams{
		InvoiceIDs:    req.InvoiceIDs,
		PaymentMethod: req.PaymentMethod.Type,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paid)
}
