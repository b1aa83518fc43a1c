package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

func timedExamEnv(t *testing.T, students ...string) (*testEnv, []uint) {
	t.Helper()
	env := newTestEnv()
	env.repo.addQuestion(fillQuestion(1, "Paris"))
	exam := fixedExam(ownerID, models.SectionItem{QuestionID: 1, Points: 1})
	exam.TimeLimitMinutes = intPtr(20)
	env.repo.addExam(exam)

	ids := make([]uint, 0, len(students))
	for _, s := range students {
		view, err := env.attempts.Create(context.Background(), exam.ID, s)
		require.NoError(t, err)
		ids = append(ids, view.ID)
	}
	return env, ids
}

func TestExpirySweeper_SweepOnce(t *testing.T) {
	ctx := context.Background()
	env, ids := timedExamEnv(t, aliceID, bobID)
	require.NoError(t, env.attempts.SaveAnswer(ctx, ids[0], aliceID, &SaveAnswerRequest{
		ItemIndex: intPtr(0),
		Answer:    json.RawMessage(`"paris"`),
	}))

	sweeper := NewExpirySweeper(env.deps, env.attempts, time.Minute, 10)

	result := sweeper.SweepOnce(ctx)
	assert.Equal(t, SweepResult{}, result, "nothing has expired yet")

	env.clock.Advance(21 * time.Minute)
	result = sweeper.SweepOnce(ctx)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Submitted)
	assert.Zero(t, result.Failed)

	alice := env.repo.storedAttempt(ids[0])
	assert.Equal(t, models.AttemptSubmitted, alice.Status)
	assert.Equal(t, 1.0, alice.AutoScore)
	require.NotNil(t, alice.SubmitTrigger)
	assert.Equal(t, models.SubmitTriggerSweep, *alice.SubmitTrigger)

	// late answers still fail once the attempt left in_progress
	err := env.attempts.SaveAnswer(ctx, ids[0], aliceID, &SaveAnswerRequest{
		ItemIndex: intPtr(0),
		Answer:    json.RawMessage(`"Lyon"`),
	})
	assert.ErrorIs(t, err, ErrAttemptNotInProgress)

	assert.Equal(t, SweepResult{}, sweeper.SweepOnce(ctx))
}

func TestExpirySweeper_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	env, ids := timedExamEnv(t, aliceID, bobID, "student-3")
	env.repo.failSaveScores[ids[1]] = true
	env.clock.Advance(time.Hour)

	// a batch of one forces paging past the failing attempt
	sweeper := NewExpirySweeper(env.deps, env.attempts, time.Minute, 1)
	result := sweeper.SweepOnce(ctx)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Submitted)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, models.AttemptSubmitted, env.repo.storedAttempt(ids[0]).Status)
	assert.Equal(t, models.AttemptInProgress, env.repo.storedAttempt(ids[1]).Status)
	assert.Equal(t, models.AttemptSubmitted, env.repo.storedAttempt(ids[2]).Status)
}

func TestExpirySweeper_SkipsUntimedAttempts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.repo.addQuestion(fillQuestion(1, "Paris"))
	exam := fixedExam(ownerID, models.SectionItem{QuestionID: 1, Points: 1})
	env.repo.addExam(exam)

	view, err := env.attempts.Create(ctx, exam.ID, aliceID)
	require.NoError(t, err)
	env.clock.Advance(24 * 365 * time.Hour)

	sweeper := NewExpirySweeper(env.deps, env.attempts, time.Minute, 10)
	assert.Zero(t, sweeper.SweepOnce(ctx).Scanned)
	assert.Equal(t, models.AttemptInProgress, env.repo.storedAttempt(view.ID).Status)
}

func TestExpirySweeper_StartStop(t *testing.T) {
	env, ids := timedExamEnv(t, aliceID)
	env.clock.Advance(time.Hour)

	sweeper := NewExpirySweeper(env.deps, env.attempts, 10*time.Millisecond, 10)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	assert.Eventually(t, func() bool {
		return env.repo.storedAttempt(ids[0]).Status == models.AttemptSubmitted
	}, 2*time.Second, 10*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
}
