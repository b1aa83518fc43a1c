package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

const serviceName = "exam-attempt-service"

type HandlerManager struct {
	serviceManager services.ServiceManager
	attemptHandler *AttemptHandler
	examHandler    *ExamHandler
	authenticate   gin.HandlerFunc
	rateLimiter    *RateLimiter
	metrics        *metrics.Metrics
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
	rateLimit config.RateLimitConfig,
	m *metrics.Metrics,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo, logger)
	return newHandlerManager(serviceManager, logger, authMiddleware.AuthMiddleware(), NewRateLimiter(rateLimit), m)
}

func newHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	authenticate gin.HandlerFunc,
	rateLimiter *RateLimiter,
	m *metrics.Metrics,
) *HandlerManager {
	return &HandlerManager{
		serviceManager: serviceManager,
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), serviceManager.Grading(), logger),
		examHandler:    NewExamHandler(serviceManager.Exam(), serviceManager.ResultExport(), logger),
		authenticate:   authenticate,
		rateLimiter:    rateLimiter,
		metrics:        m,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := RequireRole(models.RoleTeacher, models.RoleAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authenticate)
	{
		exams := v1.Group("/exams")
		{
			exams.POST("", staff, hm.examHandler.CreateExam)
			exams.PUT("/:id", staff, hm.examHandler.UpdateExam)
			exams.POST("/:id/attempts", hm.attemptHandler.CreateAttempt)
			exams.GET("/:id/results/export", staff, hm.examHandler.ExportResults)
			exams.POST("/:id/results/release", staff, hm.examHandler.ReleaseResults)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", RateLimitMiddleware(hm.rateLimiter), hm.attemptHandler.SaveAnswer)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.POST("/:id/grade", staff, hm.attemptHandler.GradeAttempt)
		}
	}

	router.GET("/health", hm.health)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.Handler())
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	resp := models.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: nowUTC(),
		Checks:    map[string]string{"services": "ok"},
	}

	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Checks["services"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
