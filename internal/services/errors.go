package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	// Exam errors
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotPublished = errors.New("exam is not published")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAccessDenied     = errors.New("access denied to attempt")
	ErrAttemptLimitReached     = errors.New("attempt limit reached")
	ErrActiveAttemptExists     = errors.New("an attempt for this exam is already in progress")
	ErrAttemptNotInProgress    = errors.New("attempt is not in progress")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptNotSubmitted     = errors.New("attempt has not been submitted")
	ErrAttemptConflict         = errors.New("attempt was created concurrently")
	ErrItemNotFound            = errors.New("attempt item not found")
	ErrInvalidAnswer           = errors.New("invalid answer payload")

	// Grading errors
	ErrItemNotManual       = errors.New("item does not require manual grading")
	ErrScoreOutOfRange     = errors.New("score is outside the item's point range")
	ErrNoItemsToGrade      = errors.New("no items to grade")
	ErrResultsNotReleasing = errors.New("exam does not use delayed results")

	// Generic errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUserNotFound = errors.New("user not found")
)

// Error codes exposed to API clients
const (
	CodeExamNotFound          = "EXAM_NOT_FOUND"
	CodeExamNotPublished      = "EXAM_NOT_PUBLISHED"
	CodeAttemptLimitReached   = "ATTEMPT_LIMIT_REACHED"
	CodeActiveAttemptExists   = "ACTIVE_ATTEMPT_EXISTS"
	CodeNotFound              = "NOT_FOUND"
	CodeForbidden             = "FORBIDDEN"
	CodeNotInProgress         = "NOT_IN_PROGRESS"
	CodeTimeExpired           = "TIME_EXPIRED"
	CodeAlreadySubmitted      = "ALREADY_SUBMITTED"
	CodeNotSubmitted          = "NOT_SUBMITTED"
	CodeConflict              = "CONFLICT"
	CodeInvalidAnswer         = "INVALID_ANSWER"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeBusinessRule          = "BUSINESS_RULE_VIOLATION"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInternal              = "INTERNAL_ERROR"
	CodeNoQuestionsForSection = "NO_QUESTIONS_FOR_SECTION"
	CodeNotEnoughQuestions    = "NOT_ENOUGH_QUESTIONS_FOR_SECTION"
	CodeNoQuestionsAvailable  = "NO_QUESTIONS_AVAILABLE"
)

var sentinelCodes = []struct {
	err  error
	code string
}{
	{ErrExamNotFound, CodeExamNotFound},
	{ErrExamNotPublished, CodeExamNotPublished},
	{ErrAttemptLimitReached, CodeAttemptLimitReached},
	{ErrActiveAttemptExists, CodeActiveAttemptExists},
	{ErrAttemptNotFound, CodeNotFound},
	{ErrItemNotFound, CodeNotFound},
	{ErrUserNotFound, CodeNotFound},
	{ErrAttemptAccessDenied, CodeForbidden},
	{ErrForbidden, CodeForbidden},
	{ErrAttemptNotInProgress, CodeNotInProgress},
	{ErrAttemptTimeExpired, CodeTimeExpired},
	{ErrAttemptAlreadySubmitted, CodeAlreadySubmitted},
	{ErrAttemptNotSubmitted, CodeNotSubmitted},
	{ErrAttemptConflict, CodeConflict},
	{ErrInvalidAnswer, CodeInvalidAnswer},
	{ErrItemNotManual, CodeBusinessRule},
	{ErrScoreOutOfRange, CodeBusinessRule},
	{ErrNoItemsToGrade, CodeBusinessRule},
	{ErrResultsNotReleasing, CodeBusinessRule},
	{ErrUnauthorized, CodeUnauthorized},
}

// ErrorCode returns the client-facing code for err. Sentinels win over the
// typed wrappers that carry them.
func ErrorCode(err error) string {
	var selErr *SelectionError
	if errors.As(err, &selErr) {
		return string(selErr.Kind)
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	var valErrs ValidationErrors
	if errors.As(err, &valErrs) {
		return CodeValidationFailed
	}
	var ruleErr *BusinessRuleError
	if errors.As(err, &ruleErr) {
		return CodeBusinessRule
	}
	return CodeInternal
}

// ===== TYPED ERRORS =====

type ValidationErrors = validator.ValidationErrors

// PermissionError describes a denied action without leaking resource detail
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: cannot %s %s %d: %s", e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError reports a rejected request that was well-formed
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	err     error
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.err
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// wrapRule attaches context to a sentinel while keeping errors.Is working
func wrapRule(sentinel error, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: ErrorCode(sentinel), Message: message, Context: context, err: sentinel}
}

// ===== SELECTION ERRORS =====

type SelectionErrorKind string

const (
	SelectionNoQuestionsForSection SelectionErrorKind = CodeNoQuestionsForSection
	SelectionNotEnoughQuestions    SelectionErrorKind = CodeNotEnoughQuestions
	SelectionNoQuestionsAvailable  SelectionErrorKind = CodeNoQuestionsAvailable
)

// SelectionStep records how many candidates survived one filtering stage
type SelectionStep struct {
	Stage string `json:"stage"`
	Found int    `json:"found"`
}

// SelectionError explains why an exam could not be turned into an attempt
type SelectionError struct {
	Kind         SelectionErrorKind     `json:"kind"`
	Section      string                 `json:"section,omitempty"`
	SectionIndex int                    `json:"section_index"`
	Required     int                    `json:"required"`
	Available    int                    `json:"available"`
	Filter       map[string]interface{} `json:"filter,omitempty"`
	Steps        []SelectionStep        `json:"steps,omitempty"`
	Missing      []uint                 `json:"missing_question_ids,omitempty"`
	Duplicate    []uint                 `json:"duplicate_question_ids,omitempty"`
}

func (e *SelectionError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("%s: required %d, available %d", e.Kind, e.Required, e.Available)
	}
	return fmt.Sprintf("%s: section %q required %d, available %d", e.Kind, e.Section, e.Required, e.Available)
}
