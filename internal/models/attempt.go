package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

// SubmitTrigger records who moved an attempt to submitted
type SubmitTrigger string

const (
	SubmitTriggerStudent SubmitTrigger = "student"
	SubmitTriggerSweep   SubmitTrigger = "sweep"
)

type Attempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_exam_student_ordinal,priority:1"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_exam_student_ordinal,priority:2"`
	Ordinal   int           `json:"ordinal" gorm:"not null;uniqueIndex:idx_attempt_exam_student_ordinal,priority:3"`
	Seed      int64         `json:"-" gorm:"not null"`
	Status    AttemptStatus `json:"status" gorm:"size:20;not null;default:in_progress;index:idx_attempt_status_expiry,priority:1"`

	StartedAt     time.Time      `json:"started_at"`
	ExpiresAt     *time.Time     `json:"expires_at" gorm:"index:idx_attempt_status_expiry,priority:2"`
	SubmittedAt   *time.Time     `json:"submitted_at"`
	SubmitTrigger *SubmitTrigger `json:"submit_trigger,omitempty" gorm:"size:20"`
	GradedAt      *time.Time     `json:"graded_at"`
	GradedBy      *string        `json:"graded_by,omitempty" gorm:"size:255"`

	MaxScore    float64 `json:"max_score"`
	AutoScore   float64 `json:"auto_score"`
	ManualScore float64 `json:"manual_score"`
	FinalScore  float64 `json:"final_score"`

	Items []AttemptItem `json:"items" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// AttemptItem is the frozen copy of one question plus the student's answer
// and scores. Nothing here is ever refreshed from the question bank.
type AttemptItem struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	AttemptID  uint         `json:"attempt_id" gorm:"not null;uniqueIndex:idx_item_attempt_position,priority:1"`
	Position   int          `json:"position" gorm:"not null;uniqueIndex:idx_item_attempt_position,priority:2"`
	QuestionID uint         `json:"question_id" gorm:"not null;index"`
	Type       QuestionType `json:"type" gorm:"size:30;not null"`
	Points     float64      `json:"points"`

	Prompt      string  `json:"prompt" gorm:"type:text"`
	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`
	MediaURL    *string `json:"media_url,omitempty" gorm:"type:text"`

	Options         datatypes.JSONSlice[string]    `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectIndices  datatypes.JSONSlice[int]       `json:"correct_indices,omitempty" gorm:"type:jsonb"`
	MultipleCorrect bool                           `json:"multiple_correct"`
	BoolKey         *bool                          `json:"bool_key,omitempty"`
	FillAnswers     datatypes.JSONSlice[string]    `json:"fill_answers,omitempty" gorm:"type:jsonb"`
	FillPatterns    datatypes.JSONSlice[string]    `json:"fill_patterns,omitempty" gorm:"type:jsonb"`
	MatchPairs      datatypes.JSONSlice[MatchPair] `json:"match_pairs,omitempty" gorm:"type:jsonb"`
	CorrectOrder    datatypes.JSONSlice[string]    `json:"correct_order,omitempty" gorm:"type:jsonb"`

	Answer      datatypes.JSON `json:"answer,omitempty" gorm:"type:jsonb"`
	AnsweredAt  *time.Time     `json:"answered_at,omitempty"`
	AutoScore   float64        `json:"auto_score"`
	ManualScore *float64       `json:"manual_score,omitempty"`
	NeedsManual bool           `json:"needs_manual"`
}

func (AttemptItem) TableName() string {
	return "attempt_items"
}

func (a *Attempt) IsInProgress() bool {
	return a.Status == AttemptInProgress
}

func (a *Attempt) IsTerminal() bool {
	return a.Status == AttemptSubmitted || a.Status == AttemptGraded
}

// IsExpired reports whether the time budget has elapsed at now
func (a *Attempt) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// FindItem looks an item up by position or, when position is nil, by question id
func (a *Attempt) FindItem(position *int, questionID *uint) *AttemptItem {
	for i := range a.Items {
		item := &a.Items[i]
		if position != nil && item.Position == *position {
			return item
		}
		if position == nil && questionID != nil && item.QuestionID == *questionID {
			return item
		}
	}
	return nil
}

// RecomputeTotals rebuilds the aggregate scores from the items.
// Final score is always automatic plus current manual total.
func (a *Attempt) RecomputeTotals() {
	var maxScore, auto, manual float64
	for _, item := range a.Items {
		maxScore += item.Points
		auto += item.AutoScore
		if item.ManualScore != nil {
			manual += *item.ManualScore
		}
	}
	a.MaxScore = RoundScore(maxScore)
	a.AutoScore = RoundScore(auto)
	a.ManualScore = RoundScore(manual)
	a.FinalScore = RoundScore(a.AutoScore + a.ManualScore)
}

// PendingManualCount counts items still waiting for a manual score
func (a *Attempt) PendingManualCount() int {
	count := 0
	for _, item := range a.Items {
		if item.NeedsManual && item.ManualScore == nil {
			count++
		}
	}
	return count
}

// ScorePrecision is the number of decimals kept on stored scores
const ScorePrecision = 3

// RoundScore rounds to ScorePrecision decimals
func RoundScore(v float64) float64 {
	factor := math.Pow(10, ScorePrecision)
	return math.Round(v*factor) / factor
}
