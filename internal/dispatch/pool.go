package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/events"
	"github.com/bulkwave/bulkwave/internal/provider"
	"github.com/bulkwave/bulkwave/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPoolConcurrency = 10
	minPoolConcurrency     = 1
)

// PoolDispatcher runs up to concurrency sends in parallel, trusting
// the provider's RATE_LIMITED responses to backpressure throughput.
// Results are written into index-addressed slots so output order
// matches input order despite out-of-order completion. Progress events
// are emitted in real send order, which here is not input order.
type PoolDispatcher struct {
	sender      Sender
	side        sideChannels
	concurrency int
}

var _ Dispatcher = (*PoolDispatcher)(nil)

func NewPoolDispatcher(
	sender Sender,
	campaignLog repository.CampaignLogRepository,
	publisher events.Publisher,
	concurrency int,
	logger *zap.Logger,
) (*PoolDispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if concurrency < minPoolConcurrency {
		concurrency = defaultPoolConcurrency
	}

	return &PoolDispatcher{
		sender:      sender,
		side:        newSideChannels(campaignLog, publisher, logger),
		concurrency: concurrency,
	}, nil
}

func (d *PoolDispatcher) Dispatch(ctx context.Context, batch Batch) ([]domain.RecipientOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]domain.RecipientOutcome, len(batch.Recipients))

	var mu sync.Mutex
	sent, failed := batch.SentSoFar, batch.FailedSoFar

	var logWG sync.WaitGroup
	defer logWG.Wait()

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, to := range batch.Recipients {
		i, to := i, to
		g.Go(func() error {
			entryID := d.side.openLogEntry(groupCtx, batch, to)

			outcome := d.sender.Send(groupCtx, provider.OutboundMessage{
				To:          to,
				Template:    batch.templateFor(to),
				Credentials: batch.Credentials,
			})
			results[i] = outcome

			mu.Lock()
			if outcome.OK {
				sent++
			} else {
				failed++
			}
			sentNow, failedNow := sent, failed
			mu.Unlock()

			d.side.settleLogEntry(&logWG, entryID, outcome)
			d.side.publishOutcome(groupCtx, batch, outcome, sentNow, failedNow)
			return nil
		})
	}

	// Workers record failures in their slot instead of returning them,
	// so Wait only surfaces context cancellation.
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
