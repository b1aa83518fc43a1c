package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write collides with a unique constraint
	ErrConflict = errors.New("record conflict")
)

// IsNotFoundError matches both the package sentinel and gorm's
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// ===== FILTER STRUCTS =====

// CandidateFilter narrows published questions for a quota section.
// Providers holds every accepted spelling of the exam provider; an empty
// list disables provider filtering. Tags are matched by the caller.
type CandidateFilter struct {
	Level     string   `json:"level"`
	Providers []string `json:"providers"`
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
}

// ===== REPOSITORIES =====

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	SetResultsReleased(ctx context.Context, tx *gorm.DB, id uint, released bool) error
}

type QuestionRepository interface {
	// Selection reads only; the bank is authored elsewhere
	GetPublishedByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	FindPublishedCandidates(ctx context.Context, tx *gorm.DB, filter CandidateFilter) ([]*models.Question, error)
}

type AttemptRepository interface {
	// Create persists the attempt together with all of its items
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	// GetByIDForUpdate row-locks the attempt until tx ends
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)

	CountByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (int64, error)
	// MaxOrdinal returns the highest ordinal the student has used on the exam, 0 if none
	MaxOrdinal(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (int, error)
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.Attempt, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters AttemptFilters) ([]*models.Attempt, error)

	UpdateItemAnswer(ctx context.Context, tx *gorm.DB, itemID uint, answer datatypes.JSON, answeredAt time.Time) error
	// SaveScores writes status, timestamps, totals and per-item scores
	SaveScores(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error

	// FindExpiredInProgress returns in_progress attempts with expires_at <= now, oldest first
	FindExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error)
}
