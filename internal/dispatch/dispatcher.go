package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/events"
	"github.com/bulkwave/bulkwave/internal/provider"
	"github.com/bulkwave/bulkwave/internal/repository"
	"go.uber.org/zap"
)

var errProviderRequired = errors.New("provider is required")

const logSettleTimeout = 5 * time.Second

// Batch is one unit of dispatch work: a bounded slice of recipients
// sharing a template and credentials. SentSoFar/FailedSoFar seed the
// running totals carried on progress events.
type Batch struct {
	JobID       string
	OwnerID     string
	CampaignID  string
	Recipients  []string
	Template    domain.TemplateRef
	Credentials provider.Credentials
	// Variables holds per-recipient body param overrides keyed by
	// recipient address.
	Variables     map[string]map[string]string
	RatePerSecond int
	LoopIndex     int
	TotalLoops    int
	SentSoFar     int
	FailedSoFar   int
}

func (b Batch) templateFor(to string) domain.TemplateRef {
	if vars, ok := b.Variables[to]; ok {
		return b.Template.WithVariables(vars)
	}
	return b.Template
}

// Dispatcher drives one batch to completion, recording an outcome for
// every recipient. The two strategies differ in pacing: the loop
// dispatcher sends sequentially at a capped rate, the pool dispatcher
// runs a bounded number of sends in parallel. Both preserve input
// order in the returned slice.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch Batch) ([]domain.RecipientOutcome, error)
}

// sideChannels bundles the best-effort collaborators shared by both
// strategies: the campaign log and the progress publisher. Failures on
// either are logged and swallowed; they never abort sending.
type sideChannels struct {
	campaignLog repository.CampaignLogRepository
	publisher   events.Publisher
	logger      *zap.Logger
}

func newSideChannels(
	campaignLog repository.CampaignLogRepository,
	publisher events.Publisher,
	logger *zap.Logger,
) sideChannels {
	if campaignLog == nil {
		campaignLog = repository.NopCampaignLog{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return sideChannels{
		campaignLog: campaignLog,
		publisher:   publisher,
		logger:      logger,
	}
}

// openLogEntry creates the pending campaign-log row for a recipient.
// An empty id means the row could not be created and the settle step
// is skipped.
func (s sideChannels) openLogEntry(ctx context.Context, batch Batch, to string) string {
	entryID, err := s.campaignLog.CreateEntry(ctx, batch.OwnerID, to, batch.CampaignID, batch.Template.Name)
	if err != nil {
		s.logger.Warn("failed to create campaign log entry",
			zap.String("campaignId", batch.CampaignID),
			zap.String("to", to),
			zap.Error(err),
		)
		return ""
	}
	return entryID
}

// settleLogEntry moves a pending row to SENT or FAILED without holding
// up the send path. wg lets callers drain in-flight writes at batch
// boundaries.
func (s sideChannels) settleLogEntry(wg *sync.WaitGroup, entryID string, outcome domain.RecipientOutcome) {
	if entryID == "" {
		return
	}

	status := domain.CampaignEntrySent
	var providerMessageID, errorDetail *string
	if outcome.OK {
		if outcome.ProviderMessageID != "" {
			id := outcome.ProviderMessageID
			providerMessageID = &id
		}
	} else {
		status = domain.CampaignEntryFailed
		if outcome.Failure != nil {
			detail := outcome.Failure.Error()
			errorDetail = &detail
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), logSettleTimeout)
		defer cancel()

		if err := s.campaignLog.UpdateStatus(ctx, entryID, status, providerMessageID, errorDetail); err != nil {
			s.logger.Warn("failed to settle campaign log entry",
				zap.String("entryId", entryID),
				zap.String("status", status.String()),
				zap.Error(err),
			)
		}
	}()
}

// publishOutcome emits one message_sent/message_failed event carrying
// the running totals at emission time.
func (s sideChannels) publishOutcome(ctx context.Context, batch Batch, outcome domain.RecipientOutcome, sent, failed int) {
	event := events.Event{
		Type:              events.EventMessageSent,
		JobID:             batch.JobID,
		CampaignID:        batch.CampaignID,
		LoopIndex:         batch.LoopIndex,
		To:                outcome.To,
		ProviderMessageID: outcome.ProviderMessageID,
		SentCount:         sent,
		FailedCount:       failed,
	}
	if !outcome.OK {
		event.Type = events.EventMessageFailed
		if outcome.Failure != nil {
			event.Error = outcome.Failure.Error()
		}
	}

	if err := s.publisher.Publish(ctx, batch.JobID, event); err != nil {
		s.logger.Debug("failed to publish progress event",
			zap.String("jobId", batch.JobID),
			zap.String("type", event.Type.String()),
			zap.Error(err),
		)
	}
}
