package postgres

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

// AttemptPostgreSQL stores attempts and their frozen items. Attempts are not
// cached; they change on every answer.
type AttemptPostgreSQL struct {
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{helpers: NewSharedHelpers(db)}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// Create inserts the attempt and all of its items in one statement group.
// A duplicate (exam, student, ordinal) surfaces as repositories.ErrConflict.
func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.helpers.GetDB(tx)
	return translateError(db.WithContext(ctx).Create(attempt).Error, "failed to create attempt")
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.helpers.GetDB(tx)
	var attempt models.Attempt
	if err := preloadItems(db.WithContext(ctx)).First(&attempt, id).Error; err != nil {
		return nil, translateError(err, "failed to get attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.helpers.GetDB(tx)
	var attempt models.Attempt
	err := preloadItems(db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error
	if err != nil {
		return nil, translateError(err, "failed to lock attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (int64, error) {
	db := a.helpers.GetDB(tx)
	var count int64
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error
	if err != nil {
		return 0, translateError(err, "failed to count attempts")
	}
	return count, nil
}

func (a *AttemptPostgreSQL) MaxOrdinal(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (int, error) {
	db := a.helpers.GetDB(tx)
	var highest int
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Select("COALESCE(MAX(ordinal), 0)").
		Scan(&highest).Error
	if err != nil {
		return 0, translateError(err, "failed to read attempt ordinal")
	}
	return highest, nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.Attempt, error) {
	db := a.helpers.GetDB(tx)
	var attempt models.Attempt
	err := db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ? AND status = ?", examID, studentID, models.AttemptInProgress).
		Order("ordinal DESC").
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err, "failed to get active attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	db := a.helpers.GetDB(tx)
	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("exam_id = ?", examID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	var attempts []*models.Attempt
	if err := query.Order("student_id ASC, ordinal ASC").Find(&attempts).Error; err != nil {
		return nil, translateError(err, "failed to list attempts")
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) UpdateItemAnswer(ctx context.Context, tx *gorm.DB, itemID uint, answer datatypes.JSON, answeredAt time.Time) error {
	db := a.helpers.GetDB(tx)
	result := db.WithContext(ctx).
		Model(&models.AttemptItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"answer":      answer,
			"answered_at": answeredAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "failed to save answer")
	}
	if result.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "failed to save answer")
	}
	return nil
}

func (a *AttemptPostgreSQL) SaveScores(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.helpers.GetDB(tx).WithContext(ctx)

	err := db.Model(&models.Attempt{ID: attempt.ID}).
		Select("status", "submitted_at", "submit_trigger", "graded_at", "graded_by",
			"max_score", "auto_score", "manual_score", "final_score").
		Updates(attempt).Error
	if err != nil {
		return translateError(err, "failed to save attempt scores")
	}

	for i := range attempt.Items {
		item := &attempt.Items[i]
		err := db.Model(&models.AttemptItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"auto_score":   item.AutoScore,
				"manual_score": item.ManualScore,
				"needs_manual": item.NeedsManual,
			}).Error
		if err != nil {
			return translateError(err, "failed to save item scores")
		}
	}
	return nil
}

func (a *AttemptPostgreSQL) FindExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error) {
	db := a.helpers.GetDB(tx)
	query := db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.AttemptInProgress, now).
		Order("expires_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var attempts []*models.Attempt
	if err := query.Find(&attempts).Error; err != nil {
		return nil, translateError(err, "failed to find expired attempts")
	}
	return attempts, nil
}
