package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	gradingService services.GradingService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	gradingService services.GradingService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		gradingService: gradingService,
	}
}

// CreateAttempt starts a new attempt on an exam for the calling student
// @Summary Start exam attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 201 {object} services.AttemptView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams/{id}/attempts [post]
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Creating attempt", "exam_id", examID, "student_id", viewer.UserID)

	view, err := h.attemptService.Create(c.Request.Context(), examID, viewer.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// SaveAnswer records the answer for one item of an in-progress attempt
// @Summary Save answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body services.SaveAnswerRequest true "Item address and answer"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	var req services.SaveAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, viewer.UserID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Answer saved",
		Timestamp: nowUTC(),
	})
}

// SubmitAttempt closes the attempt and scores every auto-gradable item
// @Summary Submit attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.SubmitResult
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, viewer.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GradeAttempt applies manual scores to items that need review
// @Summary Grade attempt
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param grades body services.GradeAttemptRequest true "Manual scores"
// @Success 200 {object} services.GradeResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/grade [post]
func (h *AttemptHandler) GradeAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	var req services.GradeAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Grading attempt", "attempt_id", attemptID, "items", len(req.Items))

	result, err := h.gradingService.Grade(c.Request.Context(), attemptID, viewer, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt returns the attempt as the caller is allowed to see it
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	view, err := h.attemptService.Get(c.Request.Context(), attemptID, viewer)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
