package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bulkwave/bulkwave/internal/dispatch"
	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/events"
	"github.com/bulkwave/bulkwave/internal/observability"
	"github.com/bulkwave/bulkwave/internal/provider"
	"github.com/bulkwave/bulkwave/internal/registry"
	"github.com/bulkwave/bulkwave/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxSyncBulkSize caps the synchronous pool-based path; larger
// campaigns must go through Submit.
const MaxSyncBulkSize = 1000

// BulkJobService owns the lifecycle of bulk jobs from submission to
// terminal state. Each job runs on its own goroutine with a supervised
// error boundary that always reaches a terminal state.
type BulkJobService struct {
	jobs        registry.JobRegistry
	credentials repository.CredentialResolver
	loop        dispatch.Dispatcher
	pool        dispatch.Dispatcher
	publisher   events.Publisher
	logger      *zap.Logger
	metrics     *observability.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc

	mu   sync.Mutex
	done map[string]chan struct{}

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

func NewBulkJobService(
	jobs registry.JobRegistry,
	credentials repository.CredentialResolver,
	loop dispatch.Dispatcher,
	pool dispatch.Dispatcher,
	publisher events.Publisher,
	logger *zap.Logger,
) (*BulkJobService, error) {
	if jobs == nil {
		return nil, fmt.Errorf("job registry is required")
	}
	if credentials == nil {
		return nil, fmt.Errorf("credential resolver is required")
	}
	if loop == nil {
		return nil, fmt.Errorf("loop dispatcher is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("pool dispatcher is required")
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &BulkJobService{
		jobs:        jobs,
		credentials: credentials,
		loop:        loop,
		pool:        pool,
		publisher:   publisher,
		logger:      logger,
		baseCtx:     baseCtx,
		cancel:      cancel,
		done:        make(map[string]chan struct{}),
		now:         time.Now,
		newID:       uuid.NewString,
		sleep:       sleepWithContext,
	}, nil
}

func (s *BulkJobService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Close stops accepting work and signals running jobs to stop at their
// next loop boundary.
func (s *BulkJobService) Close() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// Submit validates the request, resolves credentials once, registers
// the job in QUEUED state and starts background execution without
// blocking the caller.
func (s *BulkJobService) Submit(ctx context.Context, input domain.SubmitBulkJobInput) (domain.JobSnapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	input.Normalize()
	if err := input.Validate(); err != nil {
		return domain.JobSnapshot{}, err
	}

	creds, err := s.credentials.Resolve(ctx, input.OwnerID)
	if err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("%w: credential resolution failed: %v", domain.ErrSubmissionRejected, err)
	}

	job := domain.NewBulkJob(s.newID(), input, s.now().UTC())
	if err := s.jobs.Register(job); err != nil {
		return domain.JobSnapshot{}, err
	}

	doneCh := make(chan struct{})
	s.mu.Lock()
	s.done[job.ID] = doneCh
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncJobsInFlight()
	}
	s.logger.Info("bulk job submitted",
		zap.String("jobId", job.ID),
		zap.String("ownerId", job.OwnerID),
		zap.String("campaignId", job.CampaignID),
		zap.Int("recipients", len(job.Recipients)),
		zap.Int("totalLoops", job.TotalLoops),
	)

	go s.run(job, input, creds, doneCh)

	return job.Snapshot(), nil
}

// GetJob returns an eventually-consistent snapshot of a job.
func (s *BulkJobService) GetJob(ctx context.Context, jobID string) (domain.JobSnapshot, error) {
	if strings.TrimSpace(jobID) == "" {
		return domain.JobSnapshot{}, fmt.Errorf("%w: job id is required", domain.ErrValidation)
	}

	job, err := s.jobs.Get(strings.TrimSpace(jobID))
	if err != nil {
		return domain.JobSnapshot{}, err
	}
	return job.Snapshot(), nil
}

// Cancel requests cooperative cancellation. The running job observes
// the flag at its next loop boundary; already-terminal jobs conflict.
func (s *BulkJobService) Cancel(ctx context.Context, jobID string) error {
	job, err := s.jobs.Get(strings.TrimSpace(jobID))
	if err != nil {
		return err
	}
	if !job.RequestCancel() {
		return fmt.Errorf("%w: job %q already terminal", domain.ErrConflict, job.ID)
	}

	s.logger.Info("bulk job cancellation requested", zap.String("jobId", job.ID))
	return nil
}

// Wait blocks until the job's background execution finished. Meant for
// tests and graceful shutdown, not for request handlers.
func (s *BulkJobService) Wait(ctx context.Context, jobID string) error {
	s.mu.Lock()
	doneCh, ok := s.done[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %q", domain.ErrNotFound, jobID)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendBulkSync drives a small batch through the pool dispatcher and
// returns the aggregated outcomes synchronously. No job is registered.
func (s *BulkJobService) SendBulkSync(ctx context.Context, input domain.SubmitBulkJobInput) ([]domain.RecipientOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if len(input.Recipients) > MaxSyncBulkSize {
		return nil, fmt.Errorf("%w: synchronous bulk is capped at %d recipients, got %d",
			domain.ErrSubmissionRejected, MaxSyncBulkSize, len(input.Recipients))
	}

	creds, err := s.credentials.Resolve(ctx, input.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: credential resolution failed: %v", domain.ErrSubmissionRejected, err)
	}

	requestID := s.newID()
	campaignID := strings.TrimSpace(input.CampaignID)
	if campaignID == "" {
		campaignID = "campaign-" + requestID
	}

	return s.pool.Dispatch(ctx, dispatch.Batch{
		JobID:       requestID,
		OwnerID:     input.OwnerID,
		CampaignID:  campaignID,
		Recipients:  input.Recipients,
		Template:    input.Template,
		Credentials: creds,
		Variables:   input.PerRecipientVariables,
		TotalLoops:  1,
	})
}

// run is the supervised background execution of one job. The deferred
// recovery guarantees a terminal transition with whatever partial
// results exist.
func (s *BulkJobService) run(job *domain.BulkJob, input domain.SubmitBulkJobInput, creds provider.Credentials, doneCh chan struct{}) {
	ctx := s.baseCtx

	defer close(doneCh)
	defer func() {
		if s.metrics != nil {
			s.metrics.DecJobsInFlight()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("execution panic: %v", r)
			s.logger.Error("bulk job execution panicked",
				zap.String("jobId", job.ID),
				zap.Any("panic", r),
			)
			job.Finish(domain.JobStateFailed, reason)
			s.publishCompleted(job)
		}
	}()

	job.MarkRunning()

	chunks := domain.ChunkRecipients(job.Recipients, job.LoopSize)
	for i, chunk := range chunks {
		if job.CancelRequested() || ctx.Err() != nil {
			job.Finish(domain.JobStateCanceled, "canceled before loop completion")
			s.publishCompleted(job)
			return
		}

		s.publishEvent(ctx, job, events.Event{
			Type:       events.EventLoopStarted,
			LoopIndex:  i,
			TotalLoops: job.TotalLoops,
			LoopSize:   len(chunk),
		})

		sent, failed := job.Counts()
		outcomes, err := s.loop.Dispatch(ctx, dispatch.Batch{
			JobID:         job.ID,
			OwnerID:       job.OwnerID,
			CampaignID:    job.CampaignID,
			Recipients:    chunk,
			Template:      input.Template,
			Credentials:   creds,
			Variables:     input.PerRecipientVariables,
			RatePerSecond: job.RatePerSecond,
			LoopIndex:     i,
			TotalLoops:    job.TotalLoops,
			SentSoFar:     sent,
			FailedSoFar:   failed,
		})
		job.AppendOutcomes(outcomes)

		sent, failed = job.Counts()
		s.publishEvent(ctx, job, events.Event{
			Type:        events.EventLoopCompleted,
			LoopIndex:   i,
			TotalLoops:  job.TotalLoops,
			SentCount:   sent,
			FailedCount: failed,
		})

		if err != nil {
			// Dispatch errors are driver-level (cancellation mid-loop);
			// per-recipient failures never surface here.
			state := domain.JobStateFailed
			if job.CancelRequested() {
				state = domain.JobStateCanceled
			}
			job.Finish(state, err.Error())
			s.publishCompleted(job)
			return
		}

		if i < len(chunks)-1 {
			if err := s.sleep(ctx, job.InterLoopPause); err != nil {
				job.Finish(domain.JobStateCanceled, "canceled during inter-loop pause")
				s.publishCompleted(job)
				return
			}
		}
	}

	sent, failed := job.Counts()
	state := domain.JobStateCompleted
	reason := ""
	if sent == 0 && failed > 0 {
		state = domain.JobStateFailed
		reason = "all recipients failed"
	}
	job.Finish(state, reason)
	s.publishCompleted(job)

	s.logger.Info("bulk job finished",
		zap.String("jobId", job.ID),
		zap.String("state", state.String()),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
}

func (s *BulkJobService) publishEvent(ctx context.Context, job *domain.BulkJob, event events.Event) {
	event.JobID = job.ID
	event.CampaignID = job.CampaignID
	if err := s.publisher.Publish(ctx, job.ID, event); err != nil {
		s.logger.Debug("failed to publish job event",
			zap.String("jobId", job.ID),
			zap.String("type", event.Type.String()),
			zap.Error(err),
		)
	}
}

func (s *BulkJobService) publishCompleted(job *domain.BulkJob) {
	snapshot := job.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.publishEvent(ctx, job, events.Event{
		Type:        events.EventJobCompleted,
		SentCount:   snapshot.SentCount,
		FailedCount: snapshot.FailedCount,
		State:       snapshot.State.String(),
		Error:       snapshot.FailReason,
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
