package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/dedupe"
	"github.com/iago/line-relay/internal/domain"
	"github.com/iago/line-relay/internal/line"
	"github.com/iago/line-relay/internal/policy"
	"github.com/iago/line-relay/internal/queue"
	"github.com/iago/line-relay/internal/repository"
)

// IngestResult summarises one webhook batch.
type IngestResult struct {
	Accepted   int
	Ignored    int
	Duplicates int
	Failed     int
	JobIDs     []string
}

// DefaultStoreTimeout caps how long one webhook batch waits on the
// redelivery guard and the job record store combined.
const DefaultStoreTimeout = 300 * time.Millisecond

// JobsService turns webhook events into queued jobs and exposes their
// outcome records.
type JobsService struct {
	repo         repository.JobsRepository
	producer     queue.Producer
	guard        dedupe.Guard
	logger       zerolog.Logger
	now          func() time.Time
	storeTimeout time.Duration
}

func NewJobsService(
	repo repository.JobsRepository,
	producer queue.Producer,
	guard dedupe.Guard,
	logger zerolog.Logger,
) *JobsService {
	if repo == nil {
		repo = repository.NewMemoryJobsRepository()
	}
	return &JobsService{
		repo:         repo,
		producer:     producer,
		guard:        guard,
		logger:       logger.With().Str("component", "ingest").Logger(),
		now:          time.Now,
		storeTimeout: DefaultStoreTimeout,
	}
}

// WithStoreTimeout overrides DefaultStoreTimeout. Non-positive values are
// ignored.
func (s *JobsService) WithStoreTimeout(timeout time.Duration) *JobsService {
	if timeout > 0 {
		s.storeTimeout = timeout
	}
	return s
}

// Ingest never fails as a whole: each event is accepted, skipped or
// counted as failed on its own. Guard and record calls share one
// storeTimeout budget per batch; a store that ignores its context still
// cannot hold the caller past it.
func (s *JobsService) Ingest(ctx context.Context, events []webhook.EventInterface) IngestResult {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	var result IngestResult
	for _, event := range events {
		message, ok := line.AsTextMessage(event)
		if !ok {
			result.Ignored++
			continue
		}

		if s.isDuplicate(storeCtx, message) {
			result.Duplicates++
			continue
		}

		job, err := s.enqueue(ctx, storeCtx, message)
		if err != nil {
			result.Failed++
			s.logger.Error().
				Err(err).
				Str("user", policy.MaskUserID(message.UserID)).
				Msg("enqueue webhook event failed")
			continue
		}
		result.Accepted++
		result.JobIDs = append(result.JobIDs, job.ID)
	}
	return result
}

func (s *JobsService) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return s.repo.GetJob(ctx, jobID)
}

func (s *JobsService) ListJobs(ctx context.Context, filter domain.JobListFilter) ([]domain.JobRecord, int, error) {
	return s.repo.ListJobs(ctx, filter)
}

// Guard failures let the event through; a duplicate reply beats a lost one.
func (s *JobsService) isDuplicate(ctx context.Context, message line.TextMessage) bool {
	if s.guard == nil {
		return false
	}
	key := dedupe.EventKey(message.WebhookEventID, message.ReplyToken)
	var seen bool
	err := bounded(ctx, func(ctx context.Context) error {
		var err error
		seen, err = s.guard.Seen(ctx, key)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("redelivery guard unavailable")
		return false
	}
	if seen {
		s.logger.Info().
			Str("user", policy.MaskUserID(message.UserID)).
			Str("webhook_event_id", message.WebhookEventID).
			Bool("redelivery", message.Redelivery).
			Msg("duplicate webhook event dropped")
	}
	return seen
}

func (s *JobsService) enqueue(ctx, storeCtx context.Context, message line.TextMessage) (domain.Job, error) {
	job := domain.Job{
		ID:             uuid.NewString(),
		UserID:         message.UserID,
		Text:           message.Text,
		ReplyToken:     message.ReplyToken,
		WebhookEventID: message.WebhookEventID,
		EnqueuedAt:     s.now().UTC(),
	}

	record := domain.NewJobRecord(job)
	// The store may still hold its copy after a timeout.
	created := *record
	if err := bounded(storeCtx, func(ctx context.Context) error { return s.repo.CreateJob(ctx, &created) }); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("create job record failed")
	}

	if err := s.producer.Enqueue(ctx, job); err != nil {
		record.Status = domain.JobStatusFailed
		record.ErrorMessage = err.Error()
		record.UpdatedAt = s.now().UTC()
		if updateErr := bounded(storeCtx, func(ctx context.Context) error { return s.repo.UpdateJob(ctx, record) }); updateErr != nil {
			s.logger.Warn().Err(updateErr).Str("job_id", job.ID).Msg("update job record failed")
		}
		return domain.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// bounded runs fn and returns once it finishes or ctx is done, whichever
// comes first. fn keeps running in the background after a timeout.
func bounded(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
