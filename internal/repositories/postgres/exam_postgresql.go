package postgres

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

type ExamPostgreSQL struct {
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.helpers.GetDB(tx)
	return translateError(db.WithContext(ctx).Create(exam).Error, "failed to create exam")
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.helpers.GetDB(tx)
	if err := db.WithContext(ctx).Save(exam).Error; err != nil {
		return translateError(err, "failed to update exam")
	}
	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID)
	return nil
}

// GetByID is cache-aside. Attempts never embed the exam, so a stale read only
// affects the next attempt creation for at most one TTL.
func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.helpers.GetDB(tx)
	var exam models.Exam

	err := e.cacheManager.Exam.CacheOrExecute(ctx, cache.ExamKey(id), &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
			return nil, translateError(err, "failed to get exam")
		}
		return &dbExam, nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) SetResultsReleased(ctx context.Context, tx *gorm.DB, id uint, released bool) error {
	db := e.helpers.GetDB(tx)
	result := db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("results_released", released)
	if result.Error != nil {
		return translateError(result.Error, "failed to release results")
	}
	if result.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "failed to release results")
	}
	cache.InvalidateExamCache(ctx, e.cacheManager, id)
	return nil
}
