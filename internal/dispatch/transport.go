package dispatch

import (
	"context"
	"math/rand"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/observability"
	"github.com/bulkwave/bulkwave/internal/provider"
	"github.com/bulkwave/bulkwave/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts   = 4
	defaultCallTimeout   = 15 * time.Second
	baseRetryDelay       = 500 * time.Millisecond
	maxRetryDelay        = 8 * time.Second
	maxRetryJitterMillis = 250
	minTransportAttempts = 1
)

// Sender performs one logical send: a provider call plus bounded retry
// for retryable failures. It never returns an error; ordinary failures
// are classified into the outcome.
type Sender interface {
	Send(ctx context.Context, msg provider.OutboundMessage) domain.RecipientOutcome
}

// Transport wraps a provider with per-call timeout, bounded retry and
// exponential backoff. RATE_LIMITED and TRANSIENT failures are retried;
// a provider-supplied wait hint overrides the computed backoff.
type Transport struct {
	provider    provider.Provider
	limiter     ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	maxAttempts int
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	randIntn    func(n int) int
}

var _ Sender = (*Transport)(nil)

func NewTransport(
	p provider.Provider,
	limiter ratelimit.RateLimiter,
	maxAttempts int,
	callTimeout time.Duration,
	logger *zap.Logger,
) (*Transport, error) {
	if p == nil {
		return nil, errProviderRequired
	}
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if maxAttempts < minTransportAttempts {
		maxAttempts = defaultMaxAttempts
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transport{
		provider:    p,
		limiter:     limiter,
		logger:      logger,
		maxAttempts: maxAttempts,
		callTimeout: callTimeout,
		sleep:       sleepWithContext,
		randIntn:    rand.Intn,
	}, nil
}

func (t *Transport) SetMetrics(metrics *observability.Metrics) {
	if t == nil {
		return
	}
	t.metrics = metrics
}

func (t *Transport) Send(ctx context.Context, msg provider.OutboundMessage) domain.RecipientOutcome {
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if err := t.limiter.Wait(ctx, msg.Credentials.PhoneNumberID); err != nil {
			if ctx.Err() != nil {
				return t.failureOutcome(msg.To, err)
			}
			// A broken limiter must not stop traffic; the provider's
			// own 429s still backpressure us.
			t.logger.Warn("rate limiter unavailable, proceeding",
				zap.String("to", msg.To),
				zap.Error(err),
			)
		}

		callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
		start := time.Now()
		resp, err := t.provider.Send(callCtx, msg)
		cancel()

		if t.metrics != nil {
			t.metrics.ObserveSendDuration(time.Since(start))
		}

		if err == nil {
			messageID := ""
			if resp != nil {
				messageID = resp.MessageID
			}
			if t.metrics != nil {
				t.metrics.IncMessageSent()
			}
			return domain.RecipientOutcome{
				To:                msg.To,
				OK:                true,
				ProviderMessageID: messageID,
			}
		}

		lastErr = err
		kind := provider.Classify(err)
		if !kind.Retryable() || attempt == t.maxAttempts {
			break
		}

		delay := t.computeRetryDelay(attempt)
		if hint, ok := provider.RetryAfterHint(err); ok {
			delay = hint
		}

		if t.metrics != nil {
			t.metrics.IncSendRetried(kind.String())
		}
		t.logger.Debug("retrying send after classified failure",
			zap.String("to", msg.To),
			zap.String("kind", kind.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
		)

		if err := t.sleep(ctx, delay); err != nil {
			break
		}
	}

	return t.failureOutcome(msg.To, lastErr)
}

func (t *Transport) failureOutcome(to string, err error) domain.RecipientOutcome {
	kind := provider.Classify(err)
	if kind == "" {
		kind = provider.KindUnknown
	}

	detail := ""
	if err != nil {
		detail = err.Error()
	}

	if t.metrics != nil {
		t.metrics.IncMessageFailed(kind.String())
	}

	return domain.RecipientOutcome{
		To: to,
		OK: false,
		Failure: &domain.SendFailure{
			Kind:   kind.String(),
			Detail: detail,
		},
	}
}

func (t *Transport) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	jitterMillis := 0
	if t.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = t.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
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
