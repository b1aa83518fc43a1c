package validator

import (
	"encoding/json"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// ExamRequest is the body for creating or replacing an exam
type ExamRequest struct {
	Title            string              `json:"title" validate:"required,exam_title"`
	Level            string              `json:"level" validate:"omitempty,max=50"`
	Provider         string              `json:"provider" validate:"omitempty,max=100"`
	Status           models.ExamStatus   `json:"status" validate:"omitempty,oneof=draft published archived"`
	Sections         []models.Section    `json:"sections" validate:"required,min=1"`
	TimeLimitMinutes *int                `json:"time_limit_minutes" validate:"omitempty,min=0,max=600"`
	AttemptLimit     int                 `json:"attempt_limit" validate:"gte=0"`
	ShuffleQuestions bool                `json:"shuffle_questions"`
	ResultPolicy     models.ResultPolicy `json:"result_policy" validate:"omitempty,result_policy"`
}

// SaveAnswerRequest addresses an item by position or by question id
type SaveAnswerRequest struct {
	ItemIndex  *int            `json:"item_index" validate:"required_without=QuestionID"`
	QuestionID *uint           `json:"question_id" validate:"required_without=ItemIndex"`
	Answer     json.RawMessage `json:"answer"`
}

type GradeItemRequest struct {
	QuestionID uint    `json:"question_id" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0"`
}

type GradeAttemptRequest struct {
	Items []GradeItemRequest `json:"items" validate:"required,min=1,dive"`
}
