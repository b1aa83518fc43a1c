package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeFillIn         QuestionType = "fill_in"
	QuestionTypeMatch          QuestionType = "match"
	QuestionTypeReorder        QuestionType = "reorder"
	QuestionTypeFreeText       QuestionType = "free_text"
	QuestionTypeSpeaking       QuestionType = "speaking"
)

// QuestionTypes lists every supported type tag
var QuestionTypes = []QuestionType{
	QuestionTypeMultipleChoice,
	QuestionTypeTrueFalse,
	QuestionTypeFillIn,
	QuestionTypeMatch,
	QuestionTypeReorder,
	QuestionTypeFreeText,
	QuestionTypeSpeaking,
}

func (t QuestionType) IsValid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresManualGrading is true for types that are never auto-scored
func (t QuestionType) RequiresManualGrading() bool {
	return t == QuestionTypeFreeText || t == QuestionTypeSpeaking
}

type QuestionStatus string

const (
	QuestionStatusDraft     QuestionStatus = "draft"
	QuestionStatusPublished QuestionStatus = "published"
	QuestionStatusArchived  QuestionStatus = "archived"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Question is a mutable bank entry. Attempts copy what they need at creation
// time and never read it again.
type Question struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	Prompt     string         `json:"prompt" gorm:"type:text;not null"`
	Type       QuestionType   `json:"type" gorm:"size:30;not null;index"`
	Status     QuestionStatus `json:"status" gorm:"size:20;default:draft;index"`
	Level      string         `json:"level" gorm:"size:50;index"`
	Provider   string         `json:"provider" gorm:"size:100;index"`
	Difficulty string         `json:"difficulty" gorm:"size:30"`

	Tags    datatypes.JSONSlice[string]       `json:"tags" gorm:"type:jsonb"`
	Options datatypes.JSONSlice[ChoiceOption] `json:"options,omitempty" gorm:"type:jsonb"`
	Key     datatypes.JSONType[AnswerKey]     `json:"key" gorm:"type:jsonb"`

	MediaKey    *string `json:"media_key,omitempty" gorm:"size:500"`
	Explanation *string `json:"explanation,omitempty" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

type ChoiceOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// AnswerKey holds the type-specific key. Only the fields relevant to the
// question type are populated.
type AnswerKey struct {
	// true_false
	Answer *bool `json:"answer,omitempty"`
	// fill_in: literal answers and case-insensitive regular expressions
	Exact    []string `json:"exact,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	// match
	Pairs []MatchPair `json:"pairs,omitempty"`
	// reorder
	Order []string `json:"order,omitempty"`
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

func (q *Question) IsPublished() bool {
	return q.Status == QuestionStatusPublished
}

// HasTag reports whether any tag satisfies match
func (q *Question) HasTag(match func(tag string) bool) bool {
	for _, tag := range q.Tags {
		if match(tag) {
			return true
		}
	}
	return false
}
