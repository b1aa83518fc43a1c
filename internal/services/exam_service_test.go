package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

func validExamRequest() *ExamRequest {
	return &ExamRequest{
		Title:  "Einbürgerungstest",
		Status: models.ExamStatusPublished,
		Sections: []models.Section{
			{Name: "Bayern", Quota: intPtr(3), Tags: []string{"Bayern"}},
			{Name: "Allgemein", Quota: intPtr(30), Distribution: &models.DifficultyDistribution{Easy: 10, Medium: 15, Hard: 5}},
		},
		TimeLimitMinutes: intPtr(60),
		ResultPolicy:     models.ResultPolicyDelayed,
	}
}

func TestExamService_Create(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	exam, err := env.exams.Create(ctx, validExamRequest(), teacher(ownerID))
	require.NoError(t, err)
	assert.NotZero(t, exam.ID)
	assert.Equal(t, ownerID, exam.OwnerID)
	assert.Len(t, exam.Sections, 2)

	_, err = env.exams.Create(ctx, validExamRequest(), student(aliceID))
	assert.ErrorIs(t, err, ErrForbidden)

	bad := validExamRequest()
	bad.Sections[1].Distribution = &models.DifficultyDistribution{Easy: 1}
	_, err = env.exams.Create(ctx, bad, teacher(ownerID))
	assert.Equal(t, CodeValidationFailed, ErrorCode(err))
}

func TestExamService_UpdateDoesNotTouchAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.repo.addQuestion(mcQuestion(1, 0))
	env.repo.addQuestion(mcQuestion(2, 0))

	req := &ExamRequest{
		Title:    "Fixed",
		Status:   models.ExamStatusPublished,
		Sections: []models.Section{{Name: "main", Items: []models.SectionItem{{QuestionID: 1, Points: 2}}}},
	}
	exam, err := env.exams.Create(ctx, req, teacher(ownerID))
	require.NoError(t, err)

	view, err := env.attempts.Create(ctx, exam.ID, aliceID)
	require.NoError(t, err)

	req.Sections = []models.Section{{Name: "main", Items: []models.SectionItem{{QuestionID: 2, Points: 7}}}}
	_, err = env.exams.Update(ctx, exam.ID, req, teacher(otherTeacherID))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.exams.Update(ctx, exam.ID, req, teacher(ownerID))
	require.NoError(t, err)

	stored := env.repo.storedAttempt(view.ID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, uint(1), stored.Items[0].QuestionID)
	assert.Equal(t, 2.0, stored.MaxScore)
}

func TestExamService_ReleaseResults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	delayed, err := env.exams.Create(ctx, validExamRequest(), teacher(ownerID))
	require.NoError(t, err)

	assert.ErrorIs(t, env.exams.ReleaseResults(ctx, delayed.ID, teacher(otherTeacherID)), ErrForbidden)
	assert.ErrorIs(t, env.exams.ReleaseResults(ctx, 404, admin()), ErrExamNotFound)
	require.NoError(t, env.exams.ReleaseResults(ctx, delayed.ID, admin()))

	stored, err := env.repo.Exam().GetByID(ctx, nil, delayed.ID)
	require.NoError(t, err)
	assert.True(t, stored.ResultsReleased)

	immediate := validExamRequest()
	immediate.ResultPolicy = models.ResultPolicyCorrectAnswers
	other, err := env.exams.Create(ctx, immediate, teacher(ownerID))
	require.NoError(t, err)
	assert.ErrorIs(t, env.exams.ReleaseResults(ctx, other.ID, teacher(ownerID)), ErrResultsNotReleasing)
}

func TestResultExportService_ExportExamResults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.repo.users[aliceID] = &models.User{ID: aliceID, FullName: "Alice Example", Email: "alice@example.com"}
	env.repo.addQuestion(fillQuestion(1, "Paris"))
	exam := fixedExam(ownerID, models.SectionItem{QuestionID: 1, Points: 4})
	env.repo.addExam(exam)

	first, err := env.attempts.Create(ctx, exam.ID, aliceID)
	require.NoError(t, err)
	require.NoError(t, env.attempts.SaveAnswer(ctx, first.ID, aliceID, &SaveAnswerRequest{
		ItemIndex: intPtr(0),
		Answer:    []byte(`"Paris"`),
	}))
	_, err = env.attempts.Submit(ctx, first.ID, aliceID)
	require.NoError(t, err)
	_, err = env.attempts.Create(ctx, exam.ID, bobID)
	require.NoError(t, err)

	exporter := NewResultExportService(env.deps)

	_, err = exporter.ExportExamResults(ctx, exam.ID, student(aliceID))
	assert.ErrorIs(t, err, ErrForbidden)

	data, err := exporter.ExportExamResults(ctx, exam.ID, teacher(ownerID))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Student ID", rows[0][0])
	assert.Equal(t, "Final Score", rows[0][12])

	assert.Equal(t, aliceID, rows[1][0])
	assert.Equal(t, "Alice Example", rows[1][1])
	assert.Equal(t, "submitted", rows[1][4])
	assert.Equal(t, "student", rows[1][7])
	assert.Equal(t, "4", rows[1][12])
	assert.Equal(t, "100", rows[1][13])

	assert.Equal(t, bobID, rows[2][0])
	assert.Equal(t, "in_progress", rows[2][4])
}
