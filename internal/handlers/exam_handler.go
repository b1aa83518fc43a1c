package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExamHandler struct {
	BaseHandler
	examService   services.ExamService
	exportService services.ResultExportService
}

func NewExamHandler(
	examService services.ExamService,
	exportService services.ResultExportService,
	logger utils.Logger,
) *ExamHandler {
	return &ExamHandler{
		BaseHandler:   NewBaseHandler(logger),
		examService:   examService,
		exportService: exportService,
	}
}

// CreateExam stores a new exam owned by the caller
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.ExamRequest true "Exam definition"
// @Success 201 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	var req services.ExamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating exam", "title", req.Title)

	exam, err := h.examService.Create(c.Request.Context(), &req, viewer)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// UpdateExam replaces an exam definition. Existing attempts keep their snapshot.
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body services.ExamRequest true "Exam definition"
// @Success 200 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	var req services.ExamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating exam", "exam_id", examID)

	exam, err := h.examService.Update(c.Request.Context(), examID, &req, viewer)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ExportResults streams an xlsx workbook with one row per attempt
// @Summary Export exam results
// @Tags exams
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/results/export [get]
func (h *ExamHandler) ExportResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting exam results", "exam_id", examID)

	data, err := h.exportService.ExportExamResults(c.Request.Context(), examID, viewer)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, examID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ReleaseResults makes delayed results visible to students
// @Summary Release exam results
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams/{id}/results/release [post]
func (h *ExamHandler) ReleaseResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	viewer, ok := h.viewer(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Releasing exam results", "exam_id", examID)

	if err := h.examService.ReleaseResults(c.Request.Context(), examID, viewer); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message:   "Results released",
		Data:      gin.H{"exam_id": examID},
		Timestamp: nowUTC(),
	})
}
