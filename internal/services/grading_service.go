package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewGradingService(deps Dependencies) GradingService {
	deps = deps.withDefaults()
	return &gradingService{
		repo:      deps.Repo,
		logger:    deps.Logger,
		validator: deps.Validator,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		now:       deps.Clock,
	}
}

// Grade applies manual scores. Each call replaces the manual score of the
// items it names; totals are recomputed from scratch every time.
func (s *gradingService) Grade(ctx context.Context, attemptID uint, grader Viewer, req *GradeAttemptRequest) (*GradeResult, error) {
	s.logger.InfoContext(ctx, "Grading attempt",
		"attempt_id", attemptID,
		"grader_id", grader.UserID,
		"items", len(req.Items))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var attempt *models.Attempt
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		exam, err := s.repo.Exam().GetByID(ctx, tx, attempt.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if !canManageExam(exam, grader) {
			return NewPermissionError(grader.UserID, attemptID, "attempt", "grade", "only the exam owner or an admin can grade")
		}

		if attempt.IsInProgress() {
			return ErrAttemptNotSubmitted
		}

		if err := applyManualScores(attempt, req.Items); err != nil {
			return err
		}

		gradedAt := s.now()
		graderID := grader.UserID
		attempt.Status = models.AttemptGraded
		attempt.GradedAt = &gradedAt
		attempt.GradedBy = &graderID
		attempt.RecomputeTotals()

		return s.repo.Attempt().SaveScores(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AttemptsGraded.Inc()
	publishEvent(ctx, s.publisher, s.logger, events.AttemptGraded, attempt, events.AttemptGradedData{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		StudentID:   attempt.StudentID,
		GraderID:    grader.UserID,
		ManualScore: attempt.ManualScore,
		FinalScore:  attempt.FinalScore,
	})

	s.logger.InfoContext(ctx, "Attempt graded",
		"attempt_id", attempt.ID,
		"manual_score", attempt.ManualScore,
		"final_score", attempt.FinalScore)

	return &GradeResult{
		AttemptID:     attempt.ID,
		Status:        attempt.Status,
		ManualScore:   attempt.ManualScore,
		FinalScore:    attempt.FinalScore,
		PendingManual: attempt.PendingManualCount(),
	}, nil
}

// applyManualScores validates every entry before touching any item, so a
// rejected request leaves the attempt unchanged
func applyManualScores(attempt *models.Attempt, grades []GradeItemRequest) error {
	targets := make([]*models.AttemptItem, len(grades))
	for i, g := range grades {
		questionID := g.QuestionID
		item := attempt.FindItem(nil, &questionID)
		if item == nil {
			return wrapRule(ErrItemNotFound, "question is not part of this attempt", map[string]interface{}{
				"question_id": g.QuestionID,
			})
		}
		if !item.NeedsManual {
			return wrapRule(ErrItemNotManual, "question is scored automatically", map[string]interface{}{
				"question_id": g.QuestionID,
			})
		}
		if g.Score < 0 || g.Score > item.Points {
			return wrapRule(ErrScoreOutOfRange, fmt.Sprintf("score must be between 0 and %g", item.Points), map[string]interface{}{
				"question_id": g.QuestionID,
				"score":       g.Score,
				"points":      item.Points,
			})
		}
		targets[i] = item
	}

	for i, item := range targets {
		score := models.RoundScore(grades[i].Score)
		item.ManualScore = &score
	}
	return nil
}
