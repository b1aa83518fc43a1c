package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/random"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/storage"
)

// memoryRepository is an in-memory Repository. Reads return copies so the
// services never alias stored state.
type memoryRepository struct {
	mu sync.Mutex

	exams     map[uint]*models.Exam
	questions map[uint]*models.Question
	attempts  map[uint]*models.Attempt
	users     map[string]*models.User

	nextAttemptID uint
	nextItemID    uint
	nextExamID    uint

	// failSaveScores makes SaveScores fail for the listed attempts
	failSaveScores map[uint]bool
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		exams:          map[uint]*models.Exam{},
		questions:      map[uint]*models.Question{},
		attempts:       map[uint]*models.Attempt{},
		users:          map[string]*models.User{},
		failSaveScores: map[uint]bool{},
	}
}

func (r *memoryRepository) Exam() repositories.ExamRepository         { return (*memoryExams)(r) }
func (r *memoryRepository) Question() repositories.QuestionRepository { return (*memoryQuestions)(r) }
func (r *memoryRepository) Attempt() repositories.AttemptRepository   { return (*memoryAttempts)(r) }
func (r *memoryRepository) User() repositories.UserRepository         { return (*memoryUsers)(r) }

func (r *memoryRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *memoryRepository) Ping(ctx context.Context) error { return nil }
func (r *memoryRepository) Close() error                   { return nil }

func (r *memoryRepository) addQuestion(q *models.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q.Status == "" {
		q.Status = models.QuestionStatusPublished
	}
	cp := *q
	r.questions[q.ID] = &cp
}

func (r *memoryRepository) addExam(e *models.Exam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == 0 {
		r.nextExamID++
		e.ID = r.nextExamID
	}
	cp := *e
	r.exams[e.ID] = &cp
}

func (r *memoryRepository) storedAttempt(id uint) *models.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyAttempt(r.attempts[id])
}

// removeAttempt drops a stored attempt row
func (r *memoryRepository) removeAttempt(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, id)
}

// expire moves an attempt's deadline into the past
func (r *memoryRepository) expire(id uint, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[id].ExpiresAt = &at
}

func copyAttempt(a *models.Attempt) *models.Attempt {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Items = append([]models.AttemptItem(nil), a.Items...)
	return &cp
}

// ===== exams =====

type memoryExams memoryRepository

func (r *memoryExams) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	(*memoryRepository)(r).addExam(exam)
	return nil
}

func (r *memoryExams) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exams[exam.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *exam
	r.exams[exam.ID] = &cp
	return nil
}

func (r *memoryExams) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exams[id]
	if !ok {
		return nil, fmt.Errorf("exam %d: %w", id, repositories.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r *memoryExams) SetResultsReleased(ctx context.Context, tx *gorm.DB, id uint, released bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	e.ResultsReleased = released
	return nil
}

// ===== questions =====

type memoryQuestions memoryRepository

func (r *memoryQuestions) GetPublishedByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Question
	for _, id := range ids {
		if q, ok := r.questions[id]; ok && q.IsPublished() {
			cp := *q
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryQuestions) FindPublishedCandidates(ctx context.Context, tx *gorm.DB, filter repositories.CandidateFilter) ([]*models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	providers := map[string]bool{}
	for _, p := range filter.Providers {
		providers[strings.ToLower(p)] = true
	}

	var out []*models.Question
	for _, q := range r.questions {
		if !q.IsPublished() {
			continue
		}
		if filter.Level != "" && !strings.EqualFold(q.Level, filter.Level) {
			continue
		}
		if len(providers) > 0 && !providers[strings.ToLower(q.Provider)] {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== attempts =====

type memoryAttempts memoryRepository

func (r *memoryAttempts) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.ExamID == attempt.ExamID && a.StudentID == attempt.StudentID && a.Ordinal == attempt.Ordinal {
			return repositories.ErrConflict
		}
	}
	r.nextAttemptID++
	attempt.ID = r.nextAttemptID
	for i := range attempt.Items {
		r.nextItemID++
		attempt.Items[i].ID = r.nextItemID
		attempt.Items[i].AttemptID = attempt.ID
	}
	r.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (r *memoryAttempts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyAttempt(a), nil
}

func (r *memoryAttempts) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *memoryAttempts) CountByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (r *memoryAttempts) MaxOrdinal(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	highest := 0
	for _, a := range r.attempts {
		if a.ExamID == examID && a.StudentID == studentID && a.Ordinal > highest {
			highest = a.Ordinal
		}
	}
	return highest, nil
}

func (r *memoryAttempts) GetActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active *models.Attempt
	for _, a := range r.attempts {
		if a.ExamID == examID && a.StudentID == studentID && a.IsInProgress() {
			if active == nil || a.Ordinal > active.Ordinal {
				active = a
			}
		}
	}
	if active == nil {
		return nil, repositories.ErrNotFound
	}
	return copyAttempt(active), nil
}

func (r *memoryAttempts) ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Attempt
	for _, a := range r.attempts {
		if a.ExamID != examID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		out = append(out, copyAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

func (r *memoryAttempts) UpdateItemAnswer(ctx context.Context, tx *gorm.DB, itemID uint, answer datatypes.JSON, answeredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		for i := range a.Items {
			if a.Items[i].ID == itemID {
				a.Items[i].Answer = answer
				a.Items[i].AnsweredAt = &answeredAt
				return nil
			}
		}
	}
	return repositories.ErrNotFound
}

func (r *memoryAttempts) SaveScores(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSaveScores[attempt.ID] {
		return fmt.Errorf("write failed for attempt %d", attempt.ID)
	}
	if _, ok := r.attempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.attempts[attempt.ID] = copyAttempt(attempt)
	return nil
}

func (r *memoryAttempts) FindExpiredInProgress(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Attempt
	for _, a := range r.attempts {
		if a.IsInProgress() && a.IsExpired(now) {
			out = append(out, copyAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(*out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ===== users =====

type memoryUsers memoryRepository

func (r *memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (r *memoryUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := r.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

// ===== fixtures =====

const (
	testSecret     = "test-secret"
	ownerID        = "teacher-1"
	otherTeacherID = "teacher-2"
	adminID        = "admin-1"
	aliceID        = "student-1"
	bobID          = "student-2"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repo      *memoryRepository
	clock     *testClock
	publisher *events.MockEventPublisher
	deps      Dependencies
	attempts  *attemptService
	grading   GradingService
	exams     ExamService
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemoryRepository()
	clock := newTestClock()
	publisher := events.NewMockEventPublisher(logger)

	deps := Dependencies{
		Repo:      repo,
		Logger:    logger,
		Publisher: publisher,
		Metrics:   metrics.New(),
		Media:     storage.StaticMediaResolver{BaseURL: "https://cdn.example.com/media"},
		Seeds:     random.NewSeedDeriver(testSecret),
		Clock:     clock.Now,
	}.withDefaults()

	return &testEnv{
		repo:      repo,
		clock:     clock,
		publisher: publisher,
		deps:      deps,
		attempts:  newAttemptService(deps),
		grading:   NewGradingService(deps),
		exams:     NewExamService(deps),
	}
}

func student(id string) Viewer { return Viewer{UserID: id, Role: models.RoleStudent} }
func teacher(id string) Viewer { return Viewer{UserID: id, Role: models.RoleTeacher} }
func admin() Viewer            { return Viewer{UserID: adminID, Role: models.RoleAdmin} }

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func uintPtr(v uint) *uint        { return &v }

func mcQuestion(id uint, correct ...int) *models.Question {
	options := make([]models.ChoiceOption, 4)
	for i := range options {
		options[i] = models.ChoiceOption{Text: fmt.Sprintf("option %d of %d", i, id)}
	}
	for _, c := range correct {
		options[c].Correct = true
	}
	return &models.Question{
		ID:      id,
		Prompt:  fmt.Sprintf("question %d", id),
		Type:    models.QuestionTypeMultipleChoice,
		Options: datatypes.NewJSONSlice(options),
	}
}

func fillQuestion(id uint, exact ...string) *models.Question {
	return &models.Question{
		ID:     id,
		Prompt: fmt.Sprintf("fill %d", id),
		Type:   models.QuestionTypeFillIn,
		Key:    datatypes.NewJSONType(models.AnswerKey{Exact: exact}),
	}
}

func freeTextQuestion(id uint) *models.Question {
	return &models.Question{
		ID:     id,
		Prompt: fmt.Sprintf("essay %d", id),
		Type:   models.QuestionTypeFreeText,
	}
}

func tagged(q *models.Question, provider string, tags ...string) *models.Question {
	q.Provider = provider
	q.Tags = datatypes.NewJSONSlice(tags)
	return q
}

// fixedExam builds a published exam with one fixed section over the questions
func fixedExam(owner string, items ...models.SectionItem) *models.Exam {
	return &models.Exam{
		Title:    "Fixed exam",
		Status:   models.ExamStatusPublished,
		OwnerID:  owner,
		Sections: datatypes.NewJSONSlice([]models.Section{{Name: "main", Items: items}}),
	}
}
