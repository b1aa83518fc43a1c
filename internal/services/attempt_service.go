package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/random"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/scoring"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	selector  *QuestionSelector
	snapshots *SnapshotBuilder
	seeds     *random.SeedDeriver
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewAttemptService(deps Dependencies) AttemptService {
	return newAttemptService(deps.withDefaults())
}

func newAttemptService(deps Dependencies) *attemptService {
	return &attemptService{
		repo:      deps.Repo,
		logger:    deps.Logger,
		validator: deps.Validator,
		selector:  NewQuestionSelector(deps.Repo.Question(), deps.Synonyms, deps.Logger),
		snapshots: NewSnapshotBuilder(deps.Media),
		seeds:     deps.Seeds,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		now:       deps.Clock,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Create(ctx context.Context, examID uint, studentID string) (*AttemptView, error) {
	s.logger.InfoContext(ctx, "Creating attempt",
		"exam_id", examID,
		"student_id", studentID)

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsPublished() {
		return nil, ErrExamNotPublished
	}

	if err := s.closeActiveAttempt(ctx, exam, studentID); err != nil {
		return nil, err
	}

	count, err := s.repo.Attempt().CountByStudentAndExam(ctx, nil, studentID, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if exam.AttemptLimit > 0 && count >= int64(exam.AttemptLimit) {
		return nil, wrapRule(ErrAttemptLimitReached, "attempt limit reached for this exam", map[string]interface{}{
			"attempt_limit": exam.AttemptLimit,
			"attempts_used": count,
		})
	}

	// Ordinals never repeat even if an earlier attempt row was removed.
	last, err := s.repo.Attempt().MaxOrdinal(ctx, nil, studentID, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to read attempt ordinal: %w", err)
	}
	ordinal := last + 1
	seed := s.seeds.Derive(strconv.FormatUint(uint64(exam.ID), 10), studentID, ordinal)
	rng := random.New(seed)

	selection, err := s.selector.Select(ctx, nil, exam, rng)
	if err != nil {
		var selErr *SelectionError
		if errors.As(err, &selErr) {
			s.metrics.SelectionFailures.WithLabelValues(string(selErr.Kind)).Inc()
		}
		return nil, err
	}

	items, err := s.snapshots.Build(ctx, selection, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	startedAt := s.now()
	attempt := &models.Attempt{
		ExamID:    exam.ID,
		StudentID: studentID,
		Ordinal:   ordinal,
		Seed:      int64(seed),
		Status:    models.AttemptInProgress,
		StartedAt: startedAt,
		Items:     items,
	}
	if limit := exam.TimeLimit(); limit > 0 {
		expiresAt := startedAt.Add(limit)
		attempt.ExpiresAt = &expiresAt
	}
	attempt.RecomputeTotals()

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.repo.Attempt().Create(ctx, tx, attempt)
	})
	if err != nil {
		if repositories.IsConflictError(err) {
			return nil, ErrAttemptConflict
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.metrics.AttemptsCreated.Inc()
	s.publish(ctx, events.AttemptCreated, attempt, events.AttemptCreatedData{
		AttemptID: attempt.ID,
		ExamID:    attempt.ExamID,
		StudentID: attempt.StudentID,
		Ordinal:   attempt.Ordinal,
		ItemCount: len(attempt.Items),
		ExpiresAt: attempt.ExpiresAt,
	})

	s.logger.InfoContext(ctx, "Attempt created successfully",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"student_id", studentID,
		"ordinal", ordinal,
		"items", len(attempt.Items))

	return buildAttemptView(exam, attempt, Viewer{UserID: studentID, Role: models.RoleStudent}), nil
}

// closeActiveAttempt refuses a second live attempt. An active attempt whose
// time already ran out is submitted first so it counts towards the limit.
func (s *attemptService) closeActiveAttempt(ctx context.Context, exam *models.Exam, studentID string) error {
	active, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, studentID, exam.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to get active attempt: %w", err)
	}

	if !active.IsExpired(s.now()) {
		return wrapRule(ErrActiveAttemptExists, "finish the attempt in progress first", map[string]interface{}{
			"attempt_id": active.ID,
		})
	}

	_, err = s.submitAttempt(ctx, active.ID, nil, models.SubmitTriggerSweep)
	if err != nil && !errors.Is(err, ErrAttemptAlreadySubmitted) {
		return fmt.Errorf("failed to close expired attempt %d: %w", active.ID, err)
	}
	return nil
}

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, studentID string, req *SaveAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.repo.Attempt().GetByIDForUpdate(ctx, tx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.StudentID != studentID {
			return NewPermissionError(studentID, attemptID, "attempt", "answer", "not owned by student")
		}
		if !attempt.IsInProgress() {
			return ErrAttemptNotInProgress
		}
		now := s.now()
		if attempt.IsExpired(now) {
			return ErrAttemptTimeExpired
		}

		item := attempt.FindItem(req.ItemIndex, req.QuestionID)
		if item == nil {
			return ErrItemNotFound
		}
		if err := scoring.ValidateAnswer(item.Type, req.Answer); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}

		var answer datatypes.JSON
		if len(req.Answer) > 0 {
			answer = datatypes.JSON(req.Answer)
		}
		if err := s.repo.Attempt().UpdateItemAnswer(ctx, tx, item.ID, answer, now); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}

		s.logger.DebugContext(ctx, "Answer saved",
			"attempt_id", attemptID,
			"position", item.Position,
			"question_id", item.QuestionID)
		return nil
	})
}

func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*SubmitResult, error) {
	return s.submitAttempt(ctx, attemptID, &studentID, models.SubmitTriggerStudent)
}

func (s *attemptService) AutoSubmit(ctx context.Context, attemptID uint) (*SubmitResult, error) {
	return s.submitAttempt(ctx, attemptID, nil, models.SubmitTriggerSweep)
}

// submitAttempt is the single in_progress -> submitted transition. owner is
// checked when set; the trigger is recorded and logged, nothing else depends
// on it.
func (s *attemptService) submitAttempt(ctx context.Context, attemptID uint, owner *string, trigger models.SubmitTrigger) (*SubmitResult, error) {
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

		if owner != nil && attempt.StudentID != *owner {
			return NewPermissionError(*owner, attemptID, "attempt", "submit", "not owned by student")
		}
		if attempt.IsTerminal() {
			return ErrAttemptAlreadySubmitted
		}
		if !attempt.IsInProgress() {
			return ErrAttemptNotInProgress
		}

		for i := range attempt.Items {
			item := &attempt.Items[i]
			result, err := scoring.Score(item)
			if err != nil {
				s.logger.WarnContext(ctx, "Item could not be scored",
					"attempt_id", attemptID,
					"position", item.Position,
					"type", item.Type,
					"error", err)
				result = scoring.Result{}
			}
			item.AutoScore = result.AutoScore
			item.NeedsManual = result.NeedsManual
		}

		submittedAt := s.now()
		attempt.Status = models.AttemptSubmitted
		attempt.SubmittedAt = &submittedAt
		attempt.SubmitTrigger = &trigger
		attempt.RecomputeTotals()

		return s.repo.Attempt().SaveScores(ctx, tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	pending := attempt.PendingManualCount()
	s.metrics.AttemptsSubmitted.WithLabelValues(string(trigger)).Inc()
	s.publish(ctx, events.AttemptSubmitted, attempt, events.AttemptSubmittedData{
		AttemptID:     attempt.ID,
		ExamID:        attempt.ExamID,
		StudentID:     attempt.StudentID,
		Trigger:       string(trigger),
		AutoScore:     attempt.AutoScore,
		MaxScore:      attempt.MaxScore,
		FinalScore:    attempt.FinalScore,
		PendingManual: pending,
	})

	s.logger.InfoContext(ctx, "Attempt submitted",
		"attempt_id", attempt.ID,
		"trigger", trigger,
		"auto_score", attempt.AutoScore,
		"max_score", attempt.MaxScore,
		"pending_manual", pending)

	return &SubmitResult{
		AttemptID:      attempt.ID,
		Status:         attempt.Status,
		TotalAutoScore: attempt.AutoScore,
		TotalMaxScore:  attempt.MaxScore,
		FinalScore:     attempt.FinalScore,
		PendingManual:  pending,
		Trigger:        trigger,
	}, nil
}

func (s *attemptService) Get(ctx context.Context, attemptID uint, viewer Viewer) (*AttemptView, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if !canViewAttempt(exam, attempt, viewer) {
		return nil, NewPermissionError(viewer.UserID, attemptID, "attempt", "view", "not allowed to view this attempt")
	}

	return buildAttemptView(exam, attempt, viewer), nil
}

// publish sends an event after the transaction committed. Broker failures
// are logged; the state change already happened.
func (s *attemptService) publish(ctx context.Context, eventType string, attempt *models.Attempt, data interface{}) {
	publishEvent(ctx, s.publisher, s.logger, eventType, attempt, data)
}

func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType string, attempt *models.Attempt, data interface{}) {
	if publisher == nil {
		return
	}
	key := strconv.FormatUint(uint64(attempt.ID), 10)
	if err := publisher.Publish(ctx, events.NewEvent(eventType, key, data)); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", eventType,
			"attempt_id", attempt.ID,
			"error", err)
	}
}
