package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/metrics"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

const defaultSweepBatchSize = 100

// SweepResult summarizes one sweep run
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Submitted int `json:"submitted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// ExpirySweeper force-submits in_progress attempts whose time ran out. It
// calls the same submit transition the student path uses.
type ExpirySweeper struct {
	repo      repositories.Repository
	submitter AttemptSubmitter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewExpirySweeper(deps Dependencies, submitter AttemptSubmitter, interval time.Duration, batchSize int) *ExpirySweeper {
	deps = deps.withDefaults()
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &ExpirySweeper{
		repo:      deps.Repo,
		submitter: submitter,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		now:       deps.Clock,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start runs a sweep every interval until Stop is called or ctx ends
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("Expiry sweeper started", "interval", s.interval)
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Expiry sweeper stopped")
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}(s.done)
}

// Stop cancels the loop and waits for a running sweep to finish
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SweepOnce submits every expired attempt it finds. One failing attempt is
// logged and skipped; it never stops the rest of the run.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) SweepResult {
	start := time.Now()
	defer func() {
		s.metrics.SweepRuns.Inc()
		s.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var result SweepResult
	now := s.now()
	failed := make(map[uint]bool)

	for ctx.Err() == nil {
		// failed attempts stay in_progress and come back in later pages
		limit := s.batchSize + len(failed)
		attempts, err := s.repo.Attempt().FindExpiredInProgress(ctx, nil, now, limit)
		if err != nil {
			s.logger.ErrorContext(ctx, "Expiry sweep query failed", "error", err)
			break
		}

		progressed := false
		for _, attempt := range attempts {
			if failed[attempt.ID] {
				continue
			}
			progressed = true
			result.Scanned++

			_, err := s.submitter.AutoSubmit(ctx, attempt.ID)
			switch {
			case err == nil:
				result.Submitted++
			case errors.Is(err, ErrAttemptAlreadySubmitted):
				result.Skipped++
			default:
				result.Failed++
				failed[attempt.ID] = true
				s.metrics.SweepFailures.Inc()
				s.logger.ErrorContext(ctx, "Failed to auto-submit expired attempt",
					"attempt_id", attempt.ID,
					"exam_id", attempt.ExamID,
					"error", err)
			}
		}

		if !progressed || len(attempts) < limit {
			break
		}
	}

	if result.Scanned > 0 {
		s.logger.InfoContext(ctx, "Expiry sweep finished",
			"scanned", result.Scanned,
			"submitted", result.Submitted,
			"skipped", result.Skipped,
			"failed", result.Failed)
	}
	return result
}
