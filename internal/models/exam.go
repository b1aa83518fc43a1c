package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusPublished ExamStatus = "published"
	ExamStatusArchived  ExamStatus = "archived"
)

// ResultPolicy controls how much of a finished attempt a student may see
type ResultPolicy string

const (
	ResultPolicyScoresOnly     ResultPolicy = "scores_only"
	ResultPolicyCorrectAnswers ResultPolicy = "correct_answers"
	ResultPolicyExplanations   ResultPolicy = "explanations"
	ResultPolicyDelayed        ResultPolicy = "delayed"
)

type Exam struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	Title    string     `json:"title" gorm:"not null;size:200"`
	Level    string     `json:"level" gorm:"size:50;index"`
	Provider string     `json:"provider" gorm:"size:100;index"`
	Status   ExamStatus `json:"status" gorm:"size:20;default:draft;index"`
	OwnerID  string     `json:"owner_id" gorm:"not null;size:255;index"`

	Sections datatypes.JSONSlice[Section] `json:"sections" gorm:"type:jsonb"`

	// TimeLimitMinutes nil or 0 means untimed
	TimeLimitMinutes *int `json:"time_limit_minutes"`
	// AttemptLimit 0 means unlimited
	AttemptLimit     int  `json:"attempt_limit" gorm:"default:0"`
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`

	ResultPolicy    ResultPolicy `json:"result_policy" gorm:"size:20"`
	ResultsReleased bool         `json:"results_released" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Exam) TableName() string {
	return "exams"
}

// Section is either a fixed list of items or a random quota, never both
type Section struct {
	Name         string                  `json:"name"`
	Items        []SectionItem           `json:"items,omitempty"`
	Quota        *int                    `json:"quota,omitempty"`
	Tags         []string                `json:"tags,omitempty"`
	Distribution *DifficultyDistribution `json:"distribution,omitempty"`
	Shuffle      bool                    `json:"shuffle,omitempty"`
	// Points awarded per drawn question in a quota section, default 1
	Points *float64 `json:"points,omitempty"`
}

type SectionItem struct {
	QuestionID uint    `json:"question_id"`
	Points     float64 `json:"points"`
}

type DifficultyDistribution struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

func (d DifficultyDistribution) Total() int {
	return d.Easy + d.Medium + d.Hard
}

// Buckets returns the declared counts in fixed easy, medium, hard order
func (d DifficultyDistribution) Buckets() []DifficultyBucket {
	return []DifficultyBucket{
		{Level: DifficultyEasy, Count: d.Easy},
		{Level: DifficultyMedium, Count: d.Medium},
		{Level: DifficultyHard, Count: d.Hard},
	}
}

type DifficultyBucket struct {
	Level DifficultyLevel
	Count int
}

func (s Section) IsFixed() bool {
	return len(s.Items) > 0
}

func (s Section) IsQuota() bool {
	return s.Quota != nil
}

// DisplayName falls back to the 1-based position when a section is unnamed
func (s Section) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return "section " + strconv.Itoa(index+1)
}

func (s Section) PointsPerQuestion() float64 {
	if s.Points != nil {
		return *s.Points
	}
	return 1
}

func (e *Exam) IsPublished() bool {
	return e.Status == ExamStatusPublished
}

// EffectiveResultPolicy defaults to scores_only
func (e *Exam) EffectiveResultPolicy() ResultPolicy {
	switch e.ResultPolicy {
	case ResultPolicyCorrectAnswers, ResultPolicyExplanations, ResultPolicyDelayed:
		return e.ResultPolicy
	default:
		return ResultPolicyScoresOnly
	}
}

// TimeLimit returns the attempt duration, zero when untimed
func (e *Exam) TimeLimit() time.Duration {
	if e.TimeLimitMinutes == nil || *e.TimeLimitMinutes <= 0 {
		return 0
	}
	return time.Duration(*e.TimeLimitMinutes) * time.Minute
}

func (e *Exam) IsOwnedBy(userID string) bool {
	return e.OwnerID != "" && e.OwnerID == userID
}
