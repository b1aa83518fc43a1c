package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/random"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

// SelectedQuestion is one resolved (question, points) pair
type SelectedQuestion struct {
	Question *models.Question
	Points   float64
	Section  string
}

// QuestionSelector turns exam sections into a concrete ordered question list.
// All randomness comes from the generator passed to Select, so the same seed
// over the same bank yields the same list.
type QuestionSelector struct {
	questions repositories.QuestionRepository
	synonyms  *config.SynonymTable
	logger    *slog.Logger
}

func NewQuestionSelector(questions repositories.QuestionRepository, synonyms *config.SynonymTable, logger *slog.Logger) *QuestionSelector {
	if synonyms == nil {
		synonyms = config.DefaultSynonyms()
	}
	return &QuestionSelector{
		questions: questions,
		synonyms:  synonyms,
		logger:    logger,
	}
}

// Select resolves every section in declaration order, then applies the exam's
// global shuffle. A question appears at most once per attempt: fixed ids are
// reserved up front so quota sections never draw them, and a fixed id listed
// by two sections fails the selection.
func (s *QuestionSelector) Select(ctx context.Context, tx *gorm.DB, exam *models.Exam, rng *random.Rand) ([]SelectedQuestion, error) {
	var selection []SelectedQuestion
	used := make(map[uint]bool)
	reserved := make(map[uint]bool)
	for _, section := range exam.Sections {
		if section.IsFixed() {
			for _, item := range section.Items {
				reserved[item.QuestionID] = true
			}
		}
	}

	for i, section := range exam.Sections {
		var (
			picked []SelectedQuestion
			err    error
		)
		switch {
		case section.IsFixed():
			picked, err = s.selectFixed(ctx, tx, i, section, used, rng)
		case section.IsQuota():
			picked, err = s.selectQuota(ctx, tx, exam, i, section, used, reserved, rng)
		default:
			err = &SelectionError{
				Kind:         SelectionNoQuestionsForSection,
				Section:      section.DisplayName(i),
				SectionIndex: i,
			}
		}
		if err != nil {
			return nil, err
		}

		for _, p := range picked {
			used[p.Question.ID] = true
		}
		selection = append(selection, picked...)
	}

	if len(selection) == 0 {
		return nil, &SelectionError{Kind: SelectionNoQuestionsAvailable, SectionIndex: -1}
	}

	if exam.ShuffleQuestions {
		random.Shuffle(rng, selection)
	}
	return selection, nil
}

func (s *QuestionSelector) selectFixed(
	ctx context.Context,
	tx *gorm.DB,
	index int,
	section models.Section,
	used map[uint]bool,
	rng *random.Rand,
) ([]SelectedQuestion, error) {
	name := section.DisplayName(index)

	ids := make([]uint, len(section.Items))
	seen := make(map[uint]bool, len(section.Items))
	var duplicates []uint
	for i, item := range section.Items {
		ids[i] = item.QuestionID
		if used[item.QuestionID] || seen[item.QuestionID] {
			duplicates = append(duplicates, item.QuestionID)
		}
		seen[item.QuestionID] = true
	}
	if len(duplicates) > 0 {
		distinct := len(section.Items) - len(duplicates)
		return nil, &SelectionError{
			Kind:         SelectionNoQuestionsForSection,
			Section:      name,
			SectionIndex: index,
			Required:     len(section.Items),
			Available:    distinct,
			Duplicate:    duplicates,
			Steps:        []SelectionStep{{Stage: "not_drawn_by_earlier_sections", Found: distinct}},
		}
	}

	questions, err := s.questions.GetPublishedByIDs(ctx, tx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions for section %q: %w", name, err)
	}

	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	picked := make([]SelectedQuestion, 0, len(section.Items))
	var missing []uint
	for _, item := range section.Items {
		q, ok := byID[item.QuestionID]
		if !ok {
			missing = append(missing, item.QuestionID)
			continue
		}
		picked = append(picked, SelectedQuestion{Question: q, Points: item.Points, Section: name})
	}

	if len(missing) > 0 {
		return nil, &SelectionError{
			Kind:         SelectionNoQuestionsForSection,
			Section:      name,
			SectionIndex: index,
			Required:     len(section.Items),
			Available:    len(picked),
			Missing:      missing,
			Steps:        []SelectionStep{{Stage: "published_by_id", Found: len(picked)}},
		}
	}

	if section.Shuffle {
		random.Shuffle(rng, picked)
	}
	return picked, nil
}

func (s *QuestionSelector) selectQuota(
	ctx context.Context,
	tx *gorm.DB,
	exam *models.Exam,
	index int,
	section models.Section,
	used map[uint]bool,
	reserved map[uint]bool,
	rng *random.Rand,
) ([]SelectedQuestion, error) {
	name := section.DisplayName(index)
	quota := *section.Quota

	filter := repositories.CandidateFilter{Level: exam.Level}
	if exam.Provider != "" {
		filter.Providers = s.synonyms.Variants(config.SynonymProvider, exam.Provider)
	}

	published, err := s.questions.FindPublishedCandidates(ctx, tx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates for section %q: %w", name, err)
	}
	steps := []SelectionStep{{Stage: "published_level_provider", Found: len(published)}}

	candidates := make([]*models.Question, 0, len(published))
	for _, q := range published {
		if s.matchesTags(q, section.Tags) {
			candidates = append(candidates, q)
		}
	}
	if len(section.Tags) > 0 {
		steps = append(steps, SelectionStep{Stage: "tags", Found: len(candidates)})
	}

	fresh := make([]*models.Question, 0, len(candidates))
	for _, q := range candidates {
		if !used[q.ID] && !reserved[q.ID] {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) != len(candidates) {
		steps = append(steps, SelectionStep{Stage: "not_drawn_by_earlier_sections", Found: len(fresh)})
	}

	var drawn []*models.Question
	if section.Distribution != nil {
		drawn, steps = s.drawDistributed(fresh, *section.Distribution, quota, rng, steps)
	} else {
		drawn = random.PickRandom(rng, fresh, quota)
	}

	if len(drawn) < quota {
		kind := SelectionNotEnoughQuestions
		if len(fresh) == 0 {
			kind = SelectionNoQuestionsForSection
		}
		selErr := &SelectionError{
			Kind:         kind,
			Section:      name,
			SectionIndex: index,
			Required:     quota,
			Available:    len(drawn),
			Filter: map[string]interface{}{
				"level":     exam.Level,
				"providers": filter.Providers,
				"tags":      section.Tags,
			},
			Steps: steps,
		}
		s.logger.WarnContext(ctx, "Question selection failed",
			"exam_id", exam.ID,
			"section", name,
			"kind", kind,
			"required", quota,
			"available", len(drawn))
		return nil, selErr
	}

	points := section.PointsPerQuestion()
	picked := make([]SelectedQuestion, len(drawn))
	for i, q := range drawn {
		picked[i] = SelectedQuestion{Question: q, Points: points, Section: name}
	}
	return picked, nil
}

// drawDistributed draws each difficulty bucket, then backfills any shortfall
// from candidates not drawn yet.
func (s *QuestionSelector) drawDistributed(
	candidates []*models.Question,
	dist models.DifficultyDistribution,
	quota int,
	rng *random.Rand,
	steps []SelectionStep,
) ([]*models.Question, []SelectionStep) {
	buckets := make(map[string][]*models.Question)
	for _, q := range candidates {
		key := s.synonyms.Canonical(config.SynonymDifficulty, q.Difficulty)
		buckets[key] = append(buckets[key], q)
	}

	drawn := make([]*models.Question, 0, quota)
	taken := make(map[uint]bool)
	for _, bucket := range dist.Buckets() {
		key := s.synonyms.Canonical(config.SynonymDifficulty, string(bucket.Level))
		pool := buckets[key]
		steps = append(steps, SelectionStep{Stage: "difficulty_" + string(bucket.Level), Found: len(pool)})
		for _, q := range random.PickRandom(rng, pool, bucket.Count) {
			drawn = append(drawn, q)
			taken[q.ID] = true
		}
	}

	if deficit := quota - len(drawn); deficit > 0 {
		remaining := make([]*models.Question, 0, len(candidates))
		for _, q := range candidates {
			if !taken[q.ID] {
				remaining = append(remaining, q)
			}
		}
		steps = append(steps, SelectionStep{Stage: "backfill", Found: len(remaining)})
		drawn = append(drawn, random.PickRandom(rng, remaining, deficit)...)
	}

	return drawn, steps
}

// matchesTags requires every section tag to be present on the question,
// comparing through the tag synonym table
func (s *QuestionSelector) matchesTags(q *models.Question, tags []string) bool {
	for _, want := range tags {
		if !q.HasTag(func(tag string) bool {
			return s.synonyms.Equivalent(config.SynonymTag, tag, want)
		}) {
			return false
		}
	}
	return true
}
