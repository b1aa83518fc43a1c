package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(deps Dependencies) ExamService {
	deps = deps.withDefaults()
	return &examService{
		repo:      deps.Repo,
		logger:    deps.Logger,
		validator: deps.Validator,
	}
}

// Create stores a new exam. Structural section errors are rejected here and
// never reach attempt creation.
func (s *examService) Create(ctx context.Context, req *ExamRequest, owner Viewer) (*models.Exam, error) {
	if !owner.Role.IsStaff() {
		return nil, NewPermissionError(owner.UserID, 0, "exam", "create", "only teachers and admins can create exams")
	}
	if errs := s.validator.GetBusinessValidator().ValidateExam(req); len(errs) > 0 {
		return nil, errs
	}

	exam := &models.Exam{OwnerID: owner.UserID}
	applyExamRequest(exam, req)

	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam created",
		"exam_id", exam.ID,
		"owner_id", owner.UserID,
		"sections", len(exam.Sections))
	return exam, nil
}

// Update replaces the exam definition. Attempts already created keep their
// snapshot.
func (s *examService) Update(ctx context.Context, examID uint, req *ExamRequest, viewer Viewer) (*models.Exam, error) {
	exam, err := s.getManagedExam(ctx, examID, viewer, "update")
	if err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateExam(req); len(errs) > 0 {
		return nil, errs
	}

	applyExamRequest(exam, req)
	if err := s.repo.Exam().Update(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam updated", "exam_id", exam.ID)
	return exam, nil
}

func (s *examService) ReleaseResults(ctx context.Context, examID uint, viewer Viewer) error {
	exam, err := s.getManagedExam(ctx, examID, viewer, "release results of")
	if err != nil {
		return err
	}
	if exam.EffectiveResultPolicy() != models.ResultPolicyDelayed {
		return wrapRule(ErrResultsNotReleasing, "only exams with delayed results can be released", map[string]interface{}{
			"result_policy": exam.EffectiveResultPolicy(),
		})
	}
	if exam.ResultsReleased {
		return nil
	}

	if err := s.repo.Exam().SetResultsReleased(ctx, nil, examID, true); err != nil {
		return fmt.Errorf("failed to release results: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam results released",
		"exam_id", examID,
		"released_by", viewer.UserID)
	return nil
}

func (s *examService) getManagedExam(ctx context.Context, examID uint, viewer Viewer, action string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !canManageExam(exam, viewer) {
		return nil, NewPermissionError(viewer.UserID, examID, "exam", action, "only the exam owner or an admin")
	}
	return exam, nil
}

func applyExamRequest(exam *models.Exam, req *ExamRequest) {
	exam.Title = req.Title
	exam.Level = req.Level
	exam.Provider = req.Provider
	exam.Status = req.Status
	if exam.Status == "" {
		exam.Status = models.ExamStatusDraft
	}
	exam.Sections = datatypes.NewJSONSlice(req.Sections)
	exam.TimeLimitMinutes = req.TimeLimitMinutes
	exam.AttemptLimit = req.AttemptLimit
	exam.ShuffleQuestions = req.ShuffleQuestions
	exam.ResultPolicy = req.ResultPolicy
}
