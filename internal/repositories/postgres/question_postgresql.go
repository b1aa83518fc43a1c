package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

// QuestionPostgreSQL is uncached; selection reads the live bank.
type QuestionPostgreSQL struct {
	helpers *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{helpers: NewSharedHelpers(db)}
}

// GetPublishedByIDs silently omits ids that are missing or not published
func (q *QuestionPostgreSQL) GetPublishedByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	db := q.helpers.GetDB(tx)
	var questions []*models.Question
	err := db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, models.QuestionStatusPublished).
		Order("id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, translateError(err, "failed to get questions")
	}
	return questions, nil
}

// FindPublishedCandidates returns published questions for the exam level and
// any provider spelling, ordered by id
func (q *QuestionPostgreSQL) FindPublishedCandidates(ctx context.Context, tx *gorm.DB, filter repositories.CandidateFilter) ([]*models.Question, error) {
	db := q.helpers.GetDB(tx)
	query := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("status = ?", models.QuestionStatusPublished)

	if filter.Level != "" {
		query = query.Where("LOWER(level) = LOWER(?)", filter.Level)
	}
	if len(filter.Providers) > 0 {
		query = query.Where("LOWER(provider) IN ?", filter.Providers)
	}

	var questions []*models.Question
	if err := query.Order("id ASC").Find(&questions).Error; err != nil {
		return nil, translateError(err, "failed to find candidate questions")
	}
	return questions, nil
}
