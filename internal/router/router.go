package router

import (
	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/handler"
	"github.com/shuletrack/academic-api/internal/middleware"
	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/service"
)

// Handlers bundles the HTTP handlers mounted by the router.
type Handlers struct {
	Auth              *handler.AuthHandler
	Calendar          *handler.CalendarHandler
	ClassStream       *handler.ClassStreamHandler
	Progression       *handler.ProgressionHandler
	Promotion         *handler.PromotionHandler
	SubjectEnrollment *handler.SubjectEnrollmentHandler
	Student           *handler.StudentHandler
	Subject           *handler.SubjectHandler
	Metrics           *handler.MetricsHandler
}

// Register mounts all API routes on the engine. Calendar and ledger writes are
// restricted to administrative roles; reads are open to any authenticated user.
func Register(r *gin.Engine, h Handlers, auth *service.AuthService, audit *service.AuditService) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group("/api/v1")
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))
	protected.GET("/auth/me", h.Auth.Me)

	admin := middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal, models.RoleAcademicOfficer)

	years := protected.Group("/academic-years")
	{
		years.GET("", h.Calendar.ListYears)
		years.GET("/active", h.Calendar.ActiveYear)
		years.GET("/:id", h.Calendar.GetYear)
		years.GET("/:id/terms", h.Calendar.ListTerms)
		years.GET("/:id/terms/active", h.Calendar.ActiveTerm)
		years.POST("", admin, middleware.Audit(audit, "academic_year.create", "academic_year"), h.Calendar.CreateYear)
		years.PUT("/:id", admin, middleware.Audit(audit, "academic_year.update", "academic_year"), h.Calendar.UpdateYear)
		years.POST("/:id/activate", admin, middleware.Audit(audit, "academic_year.activate", "academic_year"), h.Calendar.ActivateYear)
		years.POST("/:id/lock", admin, middleware.Audit(audit, "academic_year.lock", "academic_year"), h.Calendar.LockYear)
	}

	terms := protected.Group("/terms")
	{
		terms.POST("", admin, middleware.Audit(audit, "term.create", "term"), h.Calendar.CreateTerm)
		terms.PUT("/:id", admin, middleware.Audit(audit, "term.update", "term"), h.Calendar.UpdateTerm)
		terms.POST("/:id/activate", admin, middleware.Audit(audit, "term.activate", "term"), h.Calendar.ActivateTerm)
	}

	streams := protected.Group("/class-streams")
	{
		streams.GET("", h.ClassStream.List)
		streams.GET("/:id", h.ClassStream.Get)
		streams.GET("/:id/roster", h.SubjectEnrollment.Roster)
		streams.GET("/:id/roster.csv", h.SubjectEnrollment.RosterCSV)
		streams.POST("", admin, middleware.Audit(audit, "class_stream.create", "class_stream"), h.ClassStream.Create)
		streams.PUT("/:id", admin, middleware.Audit(audit, "class_stream.update", "class_stream"), h.ClassStream.Update)
	}

	students := protected.Group("/students")
	{
		students.GET("", h.Student.List)
		students.GET("/alumni", h.Student.Alumni)
		students.GET("/:id", h.Student.Get)
		students.GET("/:id/progressions", h.Progression.History)
		students.GET("/:id/subject-enrollments", h.SubjectEnrollment.ListByStudent)
		students.POST("/:id/promote", admin, middleware.Audit(audit, "student.promote", "student"), h.Promotion.Promote)
		students.POST("/:id/repeat", admin, middleware.Audit(audit, "student.repeat", "student"), h.Promotion.Repeat)
		students.POST("/:id/suspend", admin, middleware.Audit(audit, "student.suspend", "student"), h.Promotion.Suspend)
		students.POST("/:id/resume", admin, middleware.Audit(audit, "student.resume", "student"), h.Promotion.Resume)
		students.POST("/:id/graduate", admin, middleware.Audit(audit, "student.graduate", "student"), h.Promotion.Graduate)
		students.POST("/:id/dropout", admin, middleware.Audit(audit, "student.dropout", "student"), h.Promotion.Dropout)
	}

	progressions := protected.Group("/progressions")
	{
		progressions.GET("/repeaters", h.Progression.Repeaters)
		progressions.GET("/analytics", h.Promotion.Analytics)
		progressions.POST("", admin, middleware.Audit(audit, "progression.create", "progression"), h.Progression.Create)
		progressions.POST("/:id/close", admin, middleware.Audit(audit, "progression.close", "progression"), h.Progression.Close)
	}

	enrollments := protected.Group("/subject-enrollments")
	{
		enrollments.GET("/report", h.SubjectEnrollment.Report)
		enrollments.POST("", admin, middleware.Audit(audit, "subject_enrollment.create", "subject_enrollment"), h.SubjectEnrollment.Enroll)
		enrollments.POST("/:id/drop", admin, middleware.Audit(audit, "subject_enrollment.drop", "subject_enrollment"), h.SubjectEnrollment.Drop)
		enrollments.POST("/:id/substitute", admin, middleware.Audit(audit, "subject_enrollment.substitute", "subject_enrollment"), h.SubjectEnrollment.Substitute)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", h.Subject.List)
		subjects.GET("/optional", h.Subject.Optional)
		subjects.GET("/:id", h.Subject.Get)
	}
}
