package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/middleware"
)

type Router struct {
	handler      *Handler
	authService  auth.Service
	allowOrigins []string
}

func NewRouter(handler *Handler, authService auth.Service, allowOrigins []string) *Router {
	return &Router{handler: handler, authService: authService, allowOrigins: allowOrigins}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.RateLimit(rate.Every(time.Second), 30),
		middleware.CORS(r.allowOrigins),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Auth routes (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", r.handler.Login)
		authGroup.POST("/register/patient", r.handler.RegisterPatient)
	}

	// Protected routes: the identity middleware establishes who is calling,
	// the services re-check roles against the store on every operation.
	api := router.Group("/api")
	api.Use(middleware.Identity(r.authService))
	{
		api.GET("/me", r.handler.CurrentUser)

		admin := api.Group("/admin")
		{
			admin.GET("/dentists", r.handler.ListDentists)
			admin.POST("/dentists", r.handler.CreateDentist)
			admin.PUT("/dentists/:id", r.handler.UpdateDentist)
			admin.DELETE("/dentists/:id", r.handler.DeleteDentist)

			admin.GET("/patients", r.handler.ListPatientUsers)
			admin.POST("/patients", r.handler.CreatePatientUser)
			admin.PUT("/patients/:id", r.handler.UpdatePatientUser)
			admin.DELETE("/patients/:id", r.handler.DeletePatientUser)
		}

		patients := api.Group("/patients")
		{
			patients.GET("", r.handler.ListPatients)
			patients.GET("/:patientId", r.handler.GetPatient)
			patients.PUT("/:patientId", r.handler.UpdatePatient)

			patients.GET("/:patientId/record", r.handler.GetRecord)
			patients.PUT("/:patientId/record/chart", r.handler.UpdateChart)
			patients.POST("/:patientId/record/attachments", r.handler.AddAttachment)
			patients.POST("/:patientId/record/notes", r.handler.AddNote)

			patients.GET("/:patientId/plans", r.handler.ListPlans)
			patients.POST("/:patientId/plans", r.handler.CreatePlan)

			patients.POST("/:patientId/invoices", r.handler.GenerateInvoice)
			patients.GET("/:patientId/invoices", r.handler.PatientInvoices)
		}

		api.POST("/plans/:planId/procedures", r.handler.AddProcedure)
		api.PUT("/procedures/:procedureId", r.handler.UpdateProcedure)

		dentist := api.Group("/dentist")
		{
			dentist.GET("/appointments", r.handler.DentistAppointments)
			dentist.GET("/appointments/today", r.handler.DentistToday)
		}

		my := api.Group("/my")
		{
			my.GET("/profile", r.handler.MyProfile)
			my.GET("/record", r.handler.MyRecord)
			my.GET("/plans", r.handler.MyPlans)
			my.GET("/dentists", r.handler.AvailableDentists)

			my.GET("/appointments", r.handler.MyAppointments)
			my.POST("/appointments", r.handler.BookAppointment)
			my.PUT("/appointments/:id/reschedule", r.handler.RescheduleAppointment)
			my.PUT("/appointments/:id/cancel", r.handler.CancelAppointment)

			my.GET("/invoices", r.handler.MyInvoices)
			my.POST("/invoices/pay", r.handler.ProcessPayment)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	return router
}
