package services

import (
	"encoding/json"
	"sort"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

const pendingReleaseMessage = "Results will be available once your teacher releases them"

// canViewAttempt: admins see everything, teachers see attempts on exams they
// own, students see their own attempts
func canViewAttempt(exam *models.Exam, attempt *models.Attempt, viewer Viewer) bool {
	switch viewer.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return exam.IsOwnedBy(viewer.UserID) || attempt.StudentID == viewer.UserID
	default:
		return attempt.StudentID == viewer.UserID
	}
}

func canManageExam(exam *models.Exam, viewer Viewer) bool {
	return viewer.Role == models.RoleAdmin ||
		(viewer.Role == models.RoleTeacher && exam.IsOwnedBy(viewer.UserID))
}

// disclosureFor picks the projection a viewer gets for an attempt
func disclosureFor(exam *models.Exam, attempt *models.Attempt, viewer Viewer) Disclosure {
	if canManageExam(exam, viewer) {
		return DisclosureFull
	}
	if attempt.IsInProgress() {
		return DisclosureInProgress
	}

	switch exam.EffectiveResultPolicy() {
	case models.ResultPolicyCorrectAnswers:
		return DisclosureCorrectAnswers
	case models.ResultPolicyExplanations:
		return DisclosureExplanations
	case models.ResultPolicyDelayed:
		if exam.ResultsReleased {
			return DisclosureCorrectAnswers
		}
		return DisclosurePendingRelease
	default:
		return DisclosureScoresOnly
	}
}

// buildAttemptView projects a stored attempt for one viewer
func buildAttemptView(exam *models.Exam, attempt *models.Attempt, viewer Viewer) *AttemptView {
	disclosure := disclosureFor(exam, attempt, viewer)

	view := &AttemptView{
		ID:          attempt.ID,
		ExamID:      attempt.ExamID,
		StudentID:   attempt.StudentID,
		Ordinal:     attempt.Ordinal,
		Status:      attempt.Status,
		StartedAt:   attempt.StartedAt,
		ExpiresAt:   attempt.ExpiresAt,
		SubmittedAt: attempt.SubmittedAt,
		GradedAt:    attempt.GradedAt,
		Disclosure:  disclosure,
	}

	switch disclosure {
	case DisclosurePendingRelease:
		view.Message = pendingReleaseMessage
		return view
	case DisclosureScoresOnly:
		view.Scores = scoreSummary(attempt)
		return view
	case DisclosureInProgress:
		// no totals while answering
	default:
		view.Scores = scoreSummary(attempt)
	}

	view.Items = make([]ItemView, len(attempt.Items))
	for i := range attempt.Items {
		view.Items[i] = buildItemView(&attempt.Items[i], disclosure)
	}
	return view
}

func scoreSummary(attempt *models.Attempt) *ScoreSummary {
	return &ScoreSummary{
		MaxScore:      attempt.MaxScore,
		AutoScore:     attempt.AutoScore,
		ManualScore:   attempt.ManualScore,
		FinalScore:    attempt.FinalScore,
		PendingManual: attempt.PendingManualCount(),
	}
}

func buildItemView(item *models.AttemptItem, disclosure Disclosure) ItemView {
	v := ItemView{
		Position:   item.Position,
		QuestionID: item.QuestionID,
		Type:       item.Type,
		Points:     item.Points,
		Prompt:     item.Prompt,
		MediaURL:   item.MediaURL,
		Options:    item.Options,
		AnsweredAt: item.AnsweredAt,
	}
	if len(item.Answer) > 0 {
		v.Answer = json.RawMessage(item.Answer)
	}

	switch item.Type {
	case models.QuestionTypeMatch:
		left := make([]string, len(item.MatchPairs))
		right := make([]string, len(item.MatchPairs))
		for i, pair := range item.MatchPairs {
			left[i] = pair.Left
			right[i] = pair.Right
		}
		v.MatchLeft = sortedCopy(left)
		v.MatchRight = sortedCopy(right)
	case models.QuestionTypeReorder:
		v.ReorderItems = sortedCopy(item.CorrectOrder)
	}

	if disclosure == DisclosureInProgress {
		return v
	}

	auto := item.AutoScore
	needsManual := item.NeedsManual
	v.AutoScore = &auto
	v.ManualScore = item.ManualScore
	v.NeedsManual = &needsManual

	if disclosure == DisclosureFull || disclosure == DisclosureCorrectAnswers || disclosure == DisclosureExplanations {
		v.CorrectIndices = item.CorrectIndices
		v.BoolKey = item.BoolKey
		v.FillAnswers = item.FillAnswers
		v.FillPatterns = item.FillPatterns
		v.MatchPairs = item.MatchPairs
		v.CorrectOrder = item.CorrectOrder
	}
	if disclosure == DisclosureFull || disclosure == DisclosureExplanations {
		v.Explanation = item.Explanation
	}
	return v
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
