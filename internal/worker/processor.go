package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iago/line-relay/internal/domain"
	"github.com/iago/line-relay/internal/policy"
	"github.com/iago/line-relay/internal/repository"
	"github.com/iago/line-relay/internal/service"
)

const (
	DeliveryPush       = "push"
	DeliveryReplyFirst = "reply_first"

	DefaultReplyTokenTTL = 50 * time.Second
)

type Replier interface {
	Reply(ctx context.Context, userID, text string) service.Reply
}

// Deliverer sends text back to the messaging platform, either through the
// event's one-shot reply token or by pushing to the user id.
type Deliverer interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

type ProcessorConfig struct {
	DeliveryMode  string
	ReplyTokenTTL time.Duration
	Now           func() time.Time
}

// Processor generates and delivers the reply for a single job, and keeps
// the job's outcome record current.
type Processor struct {
	replier   Replier
	deliverer Deliverer
	repo      repository.JobsRepository
	logger    zerolog.Logger

	deliveryMode  string
	replyTokenTTL time.Duration
	now           func() time.Time
}

func NewProcessor(
	replier Replier,
	deliverer Deliverer,
	repo repository.JobsRepository,
	cfg ProcessorConfig,
	logger zerolog.Logger,
) *Processor {
	if cfg.DeliveryMode != DeliveryReplyFirst {
		cfg.DeliveryMode = DeliveryPush
	}
	if cfg.ReplyTokenTTL <= 0 {
		cfg.ReplyTokenTTL = DefaultReplyTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if repo == nil {
		repo = repository.NewMemoryJobsRepository()
	}
	return &Processor{
		replier:       replier,
		deliverer:     deliverer,
		repo:          repo,
		logger:        logger.With().Str("component", "processor").Logger(),
		deliveryMode:  cfg.DeliveryMode,
		replyTokenTTL: cfg.ReplyTokenTTL,
		now:           cfg.Now,
	}
}

func (p *Processor) Process(ctx context.Context, job domain.Job) error {
	record := p.loadRecord(ctx, job)
	record.Status = domain.JobStatusProcessing
	p.saveRecord(ctx, record)

	reply := p.replier.Reply(ctx, job.UserID, job.Text)
	record.ReplySource = reply.Source
	record.ModelID = reply.ModelID

	mode := p.selectMode(job)
	record.DeliveryMode = mode

	var err error
	switch mode {
	case domain.DeliveryModeReply:
		err = p.deliverer.Reply(ctx, job.ReplyToken, reply.Text)
	default:
		err = p.deliverer.Push(ctx, job.UserID, reply.Text)
	}

	if err != nil {
		record.Status = domain.JobStatusFailed
		record.ErrorMessage = err.Error()
		p.saveRecord(ctx, record)
		return fmt.Errorf("deliver %s reply for job %s: %w", mode, job.ID, err)
	}

	record.Status = domain.JobStatusDone
	record.ErrorMessage = ""
	p.saveRecord(ctx, record)

	p.logger.Info().
		Str("job_id", job.ID).
		Str("user", policy.MaskUserID(job.UserID)).
		Str("source", string(reply.Source)).
		Str("delivery", string(mode)).
		Str("message", policy.Preview(job.Text, 24)).
		Dur("queue_wait", p.now().Sub(job.EnqueuedAt)).
		Msg("job processed")
	return nil
}

// selectMode picks exactly one delivery mode per job. Reply tokens expire
// shortly after the webhook, so deferred jobs push by user id.
func (p *Processor) selectMode(job domain.Job) domain.DeliveryMode {
	if p.deliveryMode != DeliveryReplyFirst || job.ReplyToken == "" {
		return domain.DeliveryModePush
	}
	if p.now().Sub(job.EnqueuedAt) >= p.replyTokenTTL {
		return domain.DeliveryModePush
	}
	return domain.DeliveryModeReply
}

func (p *Processor) loadRecord(ctx context.Context, job domain.Job) *domain.JobRecord {
	record, err := p.repo.GetJob(ctx, job.ID)
	if err == nil {
		return record
	}
	record = domain.NewJobRecord(job)
	if createErr := p.repo.CreateJob(ctx, record); createErr != nil {
		p.logger.Warn().Err(createErr).Str("job_id", job.ID).Msg("create job record failed")
	}
	return record
}

// Record keeping is best effort; it never decides whether a reply is sent.
func (p *Processor) saveRecord(ctx context.Context, record *domain.JobRecord) {
	record.UpdatedAt = p.now().UTC()
	if err := p.repo.UpdateJob(ctx, record); err != nil {
		p.logger.Warn().Err(err).Str("job_id", record.ID).Msg("update job record failed")
	}
}
