package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

const resultsSheet = "Results"

var resultColumns = []interface{}{
	"Student ID", "Student Name", "Email", "Attempt", "Status",
	"Started At", "Submitted At", "Submitted By", "Graded At",
	"Max Score", "Auto Score", "Manual Score", "Final Score", "Percentage",
}

type resultExportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewResultExportService(deps Dependencies) ResultExportService {
	deps = deps.withDefaults()
	return &resultExportService{
		repo:   deps.Repo,
		logger: deps.Logger,
	}
}

// ExportExamResults writes one row per attempt of the exam into an xlsx workbook
func (s *resultExportService) ExportExamResults(ctx context.Context, examID uint, viewer Viewer) ([]byte, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !canManageExam(exam, viewer) {
		return nil, NewPermissionError(viewer.UserID, examID, "exam", "export results of", "only the exam owner or an admin")
	}

	attempts, err := s.repo.Attempt().ListByExam(ctx, nil, examID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	users := s.lookupStudents(ctx, attempts)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.WarnContext(ctx, "Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &resultColumns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(resultColumns))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(resultsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(resultsSheet, "A", lastCol, 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	for i, attempt := range attempts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := resultRow(attempt, users[attempt.StudentID])
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "Exam results exported",
		"exam_id", examID,
		"rows", len(attempts),
		"requested_by", viewer.UserID)
	return buf.Bytes(), nil
}

// lookupStudents resolves display data; unknown students export with id only
func (s *resultExportService) lookupStudents(ctx context.Context, attempts []*models.Attempt) map[string]*models.User {
	users := make(map[string]*models.User)
	if s.repo.User() == nil || len(attempts) == 0 {
		return users
	}

	ids := make([]string, 0, len(attempts))
	seen := make(map[string]bool)
	for _, a := range attempts {
		if !seen[a.StudentID] {
			seen[a.StudentID] = true
			ids = append(ids, a.StudentID)
		}
	}

	found, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve students for export", "error", err)
		return users
	}
	for _, u := range found {
		users[u.ID] = u
	}
	return users
}

func resultRow(attempt *models.Attempt, user *models.User) []interface{} {
	var name, email string
	if user != nil {
		name = user.DisplayName()
		email = user.Email
	}

	var trigger string
	if attempt.SubmitTrigger != nil {
		trigger = string(*attempt.SubmitTrigger)
	}

	var percentage float64
	if attempt.MaxScore > 0 {
		percentage = models.RoundScore(attempt.FinalScore / attempt.MaxScore * 100)
	}

	return []interface{}{
		attempt.StudentID,
		name,
		email,
		attempt.Ordinal,
		string(attempt.Status),
		formatTime(&attempt.StartedAt),
		formatTime(attempt.SubmittedAt),
		trigger,
		formatTime(attempt.GradedAt),
		attempt.MaxScore,
		attempt.AutoScore,
		attempt.ManualScore,
		attempt.FinalScore,
		percentage,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
