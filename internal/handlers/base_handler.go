package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type ErrorResponse = models.ErrorResponse
type SuccessResponse = models.SuccessResponse

// BaseHandler carries the helpers every handler shares
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	return utils.FromContext(c.Request.Context(), h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, message string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	h.requestLogger(c).Info(message, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, message string, args ...any) {
	args = append(args, "error", err, "method", c.Request.Method, "path", c.FullPath())
	h.requestLogger(c).Error(message, args...)
}

// viewer builds the caller identity set by the auth middleware. It writes a
// 401 and returns false when none is present.
func (h *BaseHandler) viewer(c *gin.Context) (services.Viewer, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		h.respondError(c, http.StatusUnauthorized, services.CodeUnauthorized, "User not authenticated", nil)
		return services.Viewer{}, false
	}
	role, err := GetUserRoleFromContext(c)
	if err != nil {
		role = models.RoleStudent
	}
	return services.Viewer{UserID: userID, Role: role}, true
}

// parseIDParam reads a positive numeric path parameter. It writes a 400 and
// returns 0 on failure.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, services.CodeValidationFailed,
			fmt.Sprintf("Invalid %s parameter", param), nil)
		return 0
	}
	return uint(id)
}

// bindJSON decodes the body into dest, writing a 400 on malformed input
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.respondError(c, http.StatusBadRequest, services.CodeValidationFailed, "Invalid request payload", err.Error())
		return false
	}
	return true
}

func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: nowUTC(),
		Path:      c.Request.URL.Path,
	})
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func statusForCode(code string) int {
	switch code {
	case services.CodeExamNotFound, services.CodeNotFound:
		return http.StatusNotFound
	case services.CodeExamNotPublished, services.CodeForbidden:
		return http.StatusForbidden
	case services.CodeActiveAttemptExists, services.CodeAlreadySubmitted, services.CodeNotInProgress,
		services.CodeNotSubmitted, services.CodeConflict:
		return http.StatusConflict
	case services.CodeTimeExpired:
		return http.StatusGone
	case services.CodeInvalidAnswer, services.CodeValidationFailed:
		return http.StatusBadRequest
	case services.CodeAttemptLimitReached, services.CodeBusinessRule,
		services.CodeNoQuestionsForSection, services.CodeNotEnoughQuestions, services.CodeNoQuestionsAvailable:
		return http.StatusUnprocessableEntity
	case services.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	code := services.ErrorCode(err)
	status := statusForCode(code)

	if status == http.StatusInternalServerError {
		h.LogError(c, err, "Unexpected service error")
		h.respondError(c, status, code, "Internal server error", nil)
		return
	}

	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		resp := ErrorResponse{
			Error:     http.StatusText(status),
			Message:   "Validation failed",
			Code:      code,
			Timestamp: nowUTC(),
			Path:      c.Request.URL.Path,
		}
		for _, ve := range validationErrors {
			value := ""
			if ve.Value != nil {
				value = fmt.Sprint(ve.Value)
			}
			resp.ValidationErrors = append(resp.ValidationErrors, models.ValidationErrorResponse{
				Field:   ve.Field,
				Message: ve.Message,
				Value:   value,
				Code:    ve.Rule,
			})
		}
		c.AbortWithStatusJSON(status, resp)
		return
	}

	var details interface{}
	message := err.Error()

	var selErr *services.SelectionError
	var ruleErr *services.BusinessRuleError
	var permErr *services.PermissionError
	switch {
	case errors.As(err, &selErr):
		message = "Questions for this exam could not be selected"
		details = selErr
	case errors.As(err, &ruleErr):
		message = ruleErr.Message
		details = map[string]interface{}{
			"rule":    ruleErr.Rule,
			"context": ruleErr.Context,
		}
	case errors.As(err, &permErr):
		message = "Access denied"
		details = map[string]interface{}{
			"resource": permErr.Resource,
			"action":   permErr.Action,
			"reason":   permErr.Reason,
		}
	}

	h.requestLogger(c).Warn("Request rejected", "code", code, "error", err)
	h.respondError(c, status, code, message, details)
}
