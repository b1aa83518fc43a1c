package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use validator request types
type ExamRequest = validator.ExamRequest
type SaveAnswerRequest = validator.SaveAnswerRequest
type GradeAttemptRequest = validator.GradeAttemptRequest
type GradeItemRequest = validator.GradeItemRequest

// Viewer identifies the caller of a read or write
type Viewer struct {
	UserID string
	Role   models.UserRole
}

type SubmitResult struct {
	AttemptID      uint                 `json:"attempt_id"`
	Status         models.AttemptStatus `json:"status"`
	TotalAutoScore float64              `json:"total_auto_score"`
	TotalMaxScore  float64              `json:"total_max_score"`
	FinalScore     float64              `json:"final_score"`
	PendingManual  int                  `json:"pending_manual"`
	Trigger        models.SubmitTrigger `json:"trigger"`
}

type GradeResult struct {
	AttemptID     uint                 `json:"attempt_id"`
	Status        models.AttemptStatus `json:"status"`
	ManualScore   float64              `json:"manual_score"`
	FinalScore    float64              `json:"final_score"`
	PendingManual int                  `json:"pending_manual"`
}

// ===== ATTEMPT VIEW =====

// Disclosure names the projection a viewer received
type Disclosure string

const (
	DisclosureFull           Disclosure = "full"
	DisclosureInProgress     Disclosure = "in_progress"
	DisclosureScoresOnly     Disclosure = "scores_only"
	DisclosureCorrectAnswers Disclosure = "correct_answers"
	DisclosureExplanations   Disclosure = "explanations"
	DisclosurePendingRelease Disclosure = "pending_release"
)

type AttemptView struct {
	ID          uint                 `json:"id"`
	ExamID      uint                 `json:"exam_id"`
	StudentID   string               `json:"student_id"`
	Ordinal     int                  `json:"ordinal"`
	Status      models.AttemptStatus `json:"status"`
	StartedAt   time.Time            `json:"started_at"`
	ExpiresAt   *time.Time           `json:"expires_at,omitempty"`
	SubmittedAt *time.Time           `json:"submitted_at,omitempty"`
	GradedAt    *time.Time           `json:"graded_at,omitempty"`
	Disclosure  Disclosure           `json:"disclosure"`
	Message     string               `json:"message,omitempty"`
	Scores      *ScoreSummary        `json:"scores,omitempty"`
	Items       []ItemView           `json:"items,omitempty"`
}

type ScoreSummary struct {
	MaxScore      float64 `json:"max_score"`
	AutoScore     float64 `json:"auto_score"`
	ManualScore   float64 `json:"manual_score"`
	FinalScore    float64 `json:"final_score"`
	PendingManual int     `json:"pending_manual"`
}

// ItemView is one item as shown to a viewer. Key and score fields are only
// set when the disclosure allows them.
type ItemView struct {
	Position   int                 `json:"position"`
	QuestionID uint                `json:"question_id"`
	Type       models.QuestionType `json:"type"`
	Points     float64             `json:"points"`
	Prompt     string              `json:"prompt"`
	MediaURL   *string             `json:"media_url,omitempty"`
	Options    []string            `json:"options,omitempty"`
	// Match and reorder items are presented sorted so the order gives nothing away
	MatchLeft    []string `json:"match_left,omitempty"`
	MatchRight   []string `json:"match_right,omitempty"`
	ReorderItems []string `json:"reorder_items,omitempty"`

	Answer     json.RawMessage `json:"answer,omitempty"`
	AnsweredAt *time.Time      `json:"answered_at,omitempty"`

	CorrectIndices []int              `json:"correct_indices,omitempty"`
	BoolKey        *bool              `json:"bool_key,omitempty"`
	FillAnswers    []string           `json:"fill_answers,omitempty"`
	FillPatterns   []string           `json:"fill_patterns,omitempty"`
	MatchPairs     []models.MatchPair `json:"match_pairs,omitempty"`
	CorrectOrder   []string           `json:"correct_order,omitempty"`
	Explanation    *string            `json:"explanation,omitempty"`

	AutoScore   *float64 `json:"auto_score,omitempty"`
	ManualScore *float64 `json:"manual_score,omitempty"`
	NeedsManual *bool    `json:"needs_manual,omitempty"`
}

// ===== SERVICES =====

type AttemptService interface {
	// Create selects, snapshots and persists a new attempt for the student
	Create(ctx context.Context, examID uint, studentID string) (*AttemptView, error)
	SaveAnswer(ctx context.Context, attemptID uint, studentID string, req *SaveAnswerRequest) error
	Submit(ctx context.Context, attemptID uint, studentID string) (*SubmitResult, error)
	// AutoSubmit is the expiry path; it shares the submit transition with Submit
	AutoSubmit(ctx context.Context, attemptID uint) (*SubmitResult, error)
	Get(ctx context.Context, attemptID uint, viewer Viewer) (*AttemptView, error)
}

type GradingService interface {
	Grade(ctx context.Context, attemptID uint, grader Viewer, req *GradeAttemptRequest) (*GradeResult, error)
}

type ExamService interface {
	Create(ctx context.Context, req *ExamRequest, owner Viewer) (*models.Exam, error)
	Update(ctx context.Context, examID uint, req *ExamRequest, viewer Viewer) (*models.Exam, error)
	ReleaseResults(ctx context.Context, examID uint, viewer Viewer) error
}

type ResultExportService interface {
	ExportExamResults(ctx context.Context, examID uint, viewer Viewer) ([]byte, error)
}

// AttemptSubmitter is what the expiry sweeper needs from the attempt service
type AttemptSubmitter interface {
	AutoSubmit(ctx context.Context, attemptID uint) (*SubmitResult, error)
}
