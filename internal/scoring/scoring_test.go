package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

func boolPtr(v bool) *bool { return &v }

func TestScore_MultipleChoiceSingle(t *testing.T) {
	item := &models.AttemptItem{
		Type:           models.QuestionTypeMultipleChoice,
		Points:         2,
		Options:        []string{"A", "B", "C"},
		CorrectIndices: []int{2},
	}

	tests := []struct {
		name     string
		answer   string
		want     float64
		answered bool
	}{
		{"correct list", `[2]`, 2, true},
		{"correct scalar", `2`, 2, true},
		{"wrong", `[0]`, 0, true},
		{"extra selection", `[2,0]`, 0, true},
		{"unanswered", ``, 0, false},
		{"null", `null`, 0, false},
		{"malformed", `"two"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item.Answer = datatypes.JSON(tt.answer)
			got, err := Score(item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AutoScore)
			assert.Equal(t, tt.answered, got.Answered)
			assert.False(t, got.NeedsManual)
		})
	}
}

func TestScore_MultipleChoiceMulti(t *testing.T) {
	item := &models.AttemptItem{
		Type:            models.QuestionTypeMultipleChoice,
		Points:          3,
		CorrectIndices:  []int{0, 1, 2},
		MultipleCorrect: true,
	}

	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"two of three", `[0,1]`, 2},
		{"all", `[2,1,0]`, 3},
		{"one of three", `[1]`, 1},
		{"duplicates counted once", `[1,1,1]`, 1},
		{"wrong picks not penalized", `[0,4]`, 1},
		{"none correct", `[3]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item.Answer = datatypes.JSON(tt.answer)
			got, err := Score(item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AutoScore)
		})
	}

	t.Run("fraction rounded to three decimals", func(t *testing.T) {
		odd := &models.AttemptItem{
			Type:            models.QuestionTypeMultipleChoice,
			Points:          1,
			CorrectIndices:  []int{0, 1, 2},
			MultipleCorrect: true,
			Answer:          datatypes.JSON(`[0]`),
		}
		got, err := Score(odd)
		require.NoError(t, err)
		assert.Equal(t, 0.333, got.AutoScore)
	})

	t.Run("empty correct set", func(t *testing.T) {
		empty := &models.AttemptItem{
			Type:            models.QuestionTypeMultipleChoice,
			Points:          3,
			MultipleCorrect: true,
			Answer:          datatypes.JSON(`[0]`),
		}
		got, err := Score(empty)
		require.NoError(t, err)
		assert.Zero(t, got.AutoScore)
	})
}

func TestScore_TrueFalse(t *testing.T) {
	item := &models.AttemptItem{Type: models.QuestionTypeTrueFalse, Points: 1, BoolKey: boolPtr(false)}

	item.Answer = datatypes.JSON(`false`)
	got, _ := Score(item)
	assert.Equal(t, 1.0, got.AutoScore)
	require.NotNil(t, got.Correct)
	assert.True(t, *got.Correct)

	item.Answer = datatypes.JSON(`true`)
	got, _ = Score(item)
	assert.Zero(t, got.AutoScore)

	item.Answer = datatypes.JSON(`"false"`)
	got, _ = Score(item)
	assert.Zero(t, got.AutoScore)
}

func TestScore_FillIn(t *testing.T) {
	item := &models.AttemptItem{
		Type:        models.QuestionTypeFillIn,
		Points:      1,
		FillAnswers: []string{utils.NormalizeAnswer("Paris")},
	}

	tests := []struct {
		name     string
		patterns []string
		answer   string
		want     float64
	}{
		{"normalized exact", nil, `"  paris  "`, 1},
		{"case and accents", nil, `"PÁRIS"`, 1},
		{"punctuation is not stripped", nil, `"paris!"`, 0},
		{"regex rescues punctuation", []string{`^paris!?$`}, `"paris!"`, 1},
		{"regex is case-insensitive", []string{`^PARIS\W*$`}, `"Paris?"`, 1},
		{"broken regex ignored", []string{`(unclosed`, `^paris!$`}, `"paris!"`, 1},
		{"only broken regex", []string{`[`}, `"paris!"`, 0},
		{"blank answer", nil, `"   "`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item.FillPatterns = tt.patterns
			item.Answer = datatypes.JSON(tt.answer)
			got, err := Score(item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AutoScore)
		})
	}
}

func TestScore_Match(t *testing.T) {
	item := &models.AttemptItem{
		Type:   models.QuestionTypeMatch,
		Points: 4,
		MatchPairs: []models.MatchPair{
			{Left: "Berlin", Right: "Germany"},
			{Left: "Paris", Right: "France"},
			{Left: "Rome", Right: "Italy"},
			{Left: "Madrid", Right: "Spain"},
		},
	}

	item.Answer = datatypes.JSON(`[{"left":"Berlin","right":"Germany"},{"left":"Paris","right":"Italy"},{"left":"Rome","right":"Italy"}]`)
	got, err := Score(item)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.AutoScore)

	item.Answer = datatypes.JSON(`[{"left":"Berlin","right":"Spain"},{"left":"Berlin","right":"Germany"}]`)
	got, _ = Score(item)
	assert.Zero(t, got.AutoScore, "first pair for a left value wins")

	empty := &models.AttemptItem{Type: models.QuestionTypeMatch, Points: 2, Answer: datatypes.JSON(`[]`)}
	got, _ = Score(empty)
	assert.Zero(t, got.AutoScore)
}

func TestScore_Reorder(t *testing.T) {
	item := &models.AttemptItem{
		Type:         models.QuestionTypeReorder,
		Points:       2,
		CorrectOrder: []string{"a", "b", "c", "d"},
	}

	tests := []struct {
		name   string
		answer string
		want   float64
	}{
		{"exact", `["a","b","c","d"]`, 2},
		{"half", `["a","b","d","c"]`, 1},
		{"none", `["d","c","b","a"]`, 0},
		{"length mismatch", `["a","b","c"]`, 0},
		{"empty", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item.Answer = datatypes.JSON(tt.answer)
			got, err := Score(item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.AutoScore)
		})
	}
}

func TestScore_ManualTypes(t *testing.T) {
	for _, qt := range []models.QuestionType{models.QuestionTypeFreeText, models.QuestionTypeSpeaking} {
		t.Run(string(qt), func(t *testing.T) {
			item := &models.AttemptItem{Type: qt, Points: 5, Answer: datatypes.JSON(`"some essay"`)}
			got, err := Score(item)
			require.NoError(t, err)
			assert.True(t, got.NeedsManual)
			assert.True(t, got.Answered)
			assert.Zero(t, got.AutoScore)
			assert.Nil(t, got.Correct)
		})
	}
}

func TestScore_EveryTypeHandled(t *testing.T) {
	for _, qt := range models.QuestionTypes {
		_, err := Score(&models.AttemptItem{Type: qt})
		assert.NoError(t, err, "type %s", qt)
	}

	_, err := Score(&models.AttemptItem{Type: "hotspot"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestValidateAnswer(t *testing.T) {
	tests := []struct {
		name    string
		qt      models.QuestionType
		raw     string
		wantErr bool
	}{
		{"mcq list", models.QuestionTypeMultipleChoice, `[0,1]`, false},
		{"mcq scalar", models.QuestionTypeMultipleChoice, `1`, false},
		{"mcq text", models.QuestionTypeMultipleChoice, `"a"`, true},
		{"tf bool", models.QuestionTypeTrueFalse, `true`, false},
		{"tf text", models.QuestionTypeTrueFalse, `"yes"`, true},
		{"fill text", models.QuestionTypeFillIn, `"Paris"`, false},
		{"fill number", models.QuestionTypeFillIn, `3`, true},
		{"match pairs", models.QuestionTypeMatch, `[{"left":"a","right":"b"}]`, false},
		{"match object", models.QuestionTypeMatch, `{"a":"b"}`, true},
		{"reorder list", models.QuestionTypeReorder, `["a","b"]`, false},
		{"speaking key", models.QuestionTypeSpeaking, `"recordings/1.webm"`, false},
		{"null clears", models.QuestionTypeReorder, `null`, false},
		{"unknown type", "hotspot", `1`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnswer(tt.qt, []byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
