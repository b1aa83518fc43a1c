package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/random"
	"github.com/SAP-F-2025/exam-attempt-service/internal/storage"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

// SnapshotBuilder freezes selected questions into attempt items. After this
// the question bank is never consulted again for the attempt.
type SnapshotBuilder struct {
	media storage.MediaResolver
}

func NewSnapshotBuilder(media storage.MediaResolver) *SnapshotBuilder {
	return &SnapshotBuilder{media: media}
}

// Build snapshots the selection in order. Positions are zero-based.
func (b *SnapshotBuilder) Build(ctx context.Context, selection []SelectedQuestion, rng *random.Rand) ([]models.AttemptItem, error) {
	items := make([]models.AttemptItem, 0, len(selection))
	for i, sel := range selection {
		item, err := b.snapshot(ctx, sel, rng)
		if err != nil {
			return nil, err
		}
		item.Position = i
		items = append(items, item)
	}
	return items, nil
}

func (b *SnapshotBuilder) snapshot(ctx context.Context, sel SelectedQuestion, rng *random.Rand) (models.AttemptItem, error) {
	q := sel.Question
	key := q.Key.Data()

	item := models.AttemptItem{
		QuestionID:  q.ID,
		Type:        q.Type,
		Points:      sel.Points,
		Prompt:      q.Prompt,
		NeedsManual: q.Type.RequiresManualGrading(),
	}
	if q.Explanation != nil {
		explanation := *q.Explanation
		item.Explanation = &explanation
	}

	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		item.Options, item.CorrectIndices = shuffleOptions(q.Options, rng)
		item.MultipleCorrect = len(item.CorrectIndices) > 1
	case models.QuestionTypeTrueFalse:
		if key.Answer != nil {
			answer := *key.Answer
			item.BoolKey = &answer
		}
	case models.QuestionTypeFillIn:
		item.FillAnswers = normalizeKeys(key.Exact)
		item.FillPatterns = append([]string(nil), key.Patterns...)
	case models.QuestionTypeMatch:
		item.MatchPairs = append([]models.MatchPair(nil), key.Pairs...)
	case models.QuestionTypeReorder:
		item.CorrectOrder = append([]string(nil), key.Order...)
	}

	if q.MediaKey != nil && *q.MediaKey != "" {
		url, err := b.media.Resolve(ctx, *q.MediaKey)
		if err != nil {
			return models.AttemptItem{}, fmt.Errorf("failed to resolve media for question %d: %w", q.ID, err)
		}
		item.MediaURL = &url
	}

	return item, nil
}

type indexedOption struct {
	text    string
	correct bool
}

// shuffleOptions shuffles the options and recomputes which new positions hold
// a correct option
func shuffleOptions(options []models.ChoiceOption, rng *random.Rand) ([]string, []int) {
	pairs := make([]indexedOption, len(options))
	for i, opt := range options {
		pairs[i] = indexedOption{text: opt.Text, correct: opt.Correct}
	}
	random.Shuffle(rng, pairs)

	texts := make([]string, len(pairs))
	correct := make([]int, 0, 1)
	for i, p := range pairs {
		texts[i] = p.text
		if p.correct {
			correct = append(correct, i)
		}
	}
	return texts, correct
}

// normalizeKeys normalizes literal answers once, dropping blanks and duplicates
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		n := utils.NormalizeAnswer(k)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
