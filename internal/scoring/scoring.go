package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

var (
	ErrUnsupportedType = errors.New("unsupported question type")
	ErrMalformedAnswer = errors.New("malformed answer payload")
)

// Result is the automatic outcome for one item
type Result struct {
	AutoScore   float64
	NeedsManual bool
	Answered    bool
	// Correct is nil when the item was not answered or awaits manual review
	Correct *bool
}

// Score computes the automatic score of one snapshot item from its stored
// answer. Malformed answers score 0; they never abort an attempt.
func Score(item *models.AttemptItem) (Result, error) {
	raw := item.Answer
	switch item.Type {
	case models.QuestionTypeMultipleChoice:
		return scoreChoice(item, raw), nil
	case models.QuestionTypeTrueFalse:
		return scoreTrueFalse(item, raw), nil
	case models.QuestionTypeFillIn:
		return scoreFillIn(item, raw), nil
	case models.QuestionTypeMatch:
		return scoreMatch(item, raw), nil
	case models.QuestionTypeReorder:
		return scoreReorder(item, raw), nil
	case models.QuestionTypeFreeText, models.QuestionTypeSpeaking:
		return Result{NeedsManual: true, Answered: !isEmpty(raw)}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, item.Type)
	}
}

// ValidateAnswer checks that raw has the shape expected for the type
func ValidateAnswer(questionType models.QuestionType, raw []byte) error {
	if isEmpty(raw) {
		return nil
	}

	var err error
	switch questionType {
	case models.QuestionTypeMultipleChoice:
		_, err = decodeIndices(raw)
	case models.QuestionTypeTrueFalse:
		var v bool
		err = json.Unmarshal(raw, &v)
	case models.QuestionTypeFillIn, models.QuestionTypeFreeText, models.QuestionTypeSpeaking:
		var v string
		err = json.Unmarshal(raw, &v)
	case models.QuestionTypeMatch:
		var v []models.MatchPair
		err = json.Unmarshal(raw, &v)
	case models.QuestionTypeReorder:
		var v []string
		err = json.Unmarshal(raw, &v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, questionType)
	}

	if err != nil {
		return fmt.Errorf("%w for %s: %v", ErrMalformedAnswer, questionType, err)
	}
	return nil
}

func scoreChoice(item *models.AttemptItem, raw []byte) Result {
	if isEmpty(raw) {
		return Result{}
	}
	selected, err := decodeIndices(raw)
	if err != nil || len(selected) == 0 {
		return wrong(true)
	}

	correct := item.CorrectIndices
	if len(correct) == 0 {
		return wrong(true)
	}

	if !item.MultipleCorrect && len(correct) == 1 {
		if len(selected) == 1 && selected[0] == correct[0] {
			return full(item.Points)
		}
		return wrong(true)
	}

	correctSet := make(map[int]bool, len(correct))
	for _, idx := range correct {
		correctSet[idx] = true
	}

	hits := 0
	seen := map[int]bool{}
	for _, idx := range selected {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if correctSet[idx] {
			hits++
		}
	}

	return partial(item.Points, float64(hits)/float64(len(correctSet)))
}

func scoreTrueFalse(item *models.AttemptItem, raw []byte) Result {
	if isEmpty(raw) {
		return Result{}
	}
	var answer bool
	if err := json.Unmarshal(raw, &answer); err != nil || item.BoolKey == nil {
		return wrong(true)
	}
	if answer == *item.BoolKey {
		return full(item.Points)
	}
	return wrong(true)
}

func scoreFillIn(item *models.AttemptItem, raw []byte) Result {
	if isEmpty(raw) {
		return Result{}
	}
	var answer string
	if err := json.Unmarshal(raw, &answer); err != nil {
		return wrong(true)
	}

	normalized := utils.NormalizeAnswer(answer)
	if normalized == "" {
		return Result{}
	}

	for _, exact := range item.FillAnswers {
		if normalized == exact {
			return full(item.Points)
		}
	}

	trimmed := strings.TrimSpace(answer)
	for _, pattern := range item.FillPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			// a broken pattern never matches
			continue
		}
		if re.MatchString(normalized) || re.MatchString(trimmed) {
			return full(item.Points)
		}
	}

	return wrong(true)
}

func scoreMatch(item *models.AttemptItem, raw []byte) Result {
	if isEmpty(raw) {
		return Result{}
	}
	var pairs []models.MatchPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return wrong(true)
	}
	if len(item.MatchPairs) == 0 {
		return wrong(true)
	}

	key := make(map[string]string, len(item.MatchPairs))
	for _, p := range item.MatchPairs {
		key[p.Left] = p.Right
	}

	hits := 0
	used := map[string]bool{}
	for _, p := range pairs {
		if used[p.Left] {
			continue
		}
		used[p.Left] = true
		if right, ok := key[p.Left]; ok && right == p.Right {
			hits++
		}
	}

	return partial(item.Points, float64(hits)/float64(len(item.MatchPairs)))
}

func scoreReorder(item *models.AttemptItem, raw []byte) Result {
	if isEmpty(raw) {
		return Result{}
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return wrong(true)
	}

	correct := item.CorrectOrder
	if len(order) == 0 || len(correct) == 0 || len(order) != len(correct) {
		return wrong(true)
	}

	hits := 0
	for i := range correct {
		if order[i] == correct[i] {
			hits++
		}
	}

	return partial(item.Points, float64(hits)/float64(len(correct)))
}

// decodeIndices accepts either a list of indices or a single index
func decodeIndices(raw []byte) ([]int, error) {
	var list []int
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single int
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []int{single}, nil
}

func isEmpty(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func full(points float64) Result {
	correct := true
	return Result{AutoScore: models.RoundScore(points), Answered: true, Correct: &correct}
}

func wrong(answered bool) Result {
	correct := false
	return Result{Answered: answered, Correct: &correct}
}

func partial(points, fraction float64) Result {
	score := models.RoundScore(points * fraction)
	correct := fraction == 1
	return Result{AutoScore: score, Answered: true, Correct: &correct}
}
