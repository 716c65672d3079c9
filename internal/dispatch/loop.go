package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/events"
	"github.com/bulkwave/bulkwave/internal/provider"
	"github.com/bulkwave/bulkwave/internal/repository"
	"go.uber.org/zap"
)

// LoopDispatcher sends a batch sequentially at a capped rate. One
// logical thread of execution per loop bounds the load on the sending
// account; the inter-send delay is ceil(1000/rate) milliseconds and is
// never applied after the last recipient.
type LoopDispatcher struct {
	sender Sender
	side   sideChannels
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ Dispatcher = (*LoopDispatcher)(nil)

func NewLoopDispatcher(
	sender Sender,
	campaignLog repository.CampaignLogRepository,
	publisher events.Publisher,
	logger *zap.Logger,
) (*LoopDispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}

	return &LoopDispatcher{
		sender: sender,
		side:   newSideChannels(campaignLog, publisher, logger),
		sleep:  sleepWithContext,
	}, nil
}

// InterSendDelay returns the minimum spacing between consecutive sends
// for a target rate.
func InterSendDelay(ratePerSecond int) time.Duration {
	if ratePerSecond <= 0 {
		ratePerSecond = domain.DefaultRatePerSecond
	}
	millis := (1000 + ratePerSecond - 1) / ratePerSecond
	return time.Duration(millis) * time.Millisecond
}

func (d *LoopDispatcher) Dispatch(ctx context.Context, batch Batch) ([]domain.RecipientOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	delay := InterSendDelay(batch.RatePerSecond)
	outcomes := make([]domain.RecipientOutcome, 0, len(batch.Recipients))
	sent, failed := batch.SentSoFar, batch.FailedSoFar

	var logWG sync.WaitGroup
	defer logWG.Wait()

	for i, to := range batch.Recipients {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		entryID := d.side.openLogEntry(ctx, batch, to)

		outcome := d.sender.Send(ctx, provider.OutboundMessage{
			To:          to,
			Template:    batch.templateFor(to),
			Credentials: batch.Credentials,
		})
		outcomes = append(outcomes, outcome)
		if outcome.OK {
			sent++
		} else {
			failed++
		}

		d.side.settleLogEntry(&logWG, entryID, outcome)
		d.side.publishOutcome(ctx, batch, outcome, sent, failed)

		if i < len(batch.Recipients)-1 {
			if err := d.sleep(ctx, delay); err != nil {
				return outcomes, err
			}
		}
	}

	return outcomes, nil
}
