package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const jobChannelPrefix = "jobs:events:"

// JobChannel returns the pub/sub channel carrying one job's events.
func JobChannel(jobID string) string {
	return jobChannelPrefix + strings.TrimSpace(jobID)
}

// RedisPublisher forwards job events over Redis pub/sub, one channel
// per job. Subscribers that connect mid-job only see later events.
type RedisPublisher struct {
	client *goredis.Client
	logger *zap.Logger
}

func NewRedisPublisher(client *goredis.Client, logger *zap.Logger) (*RedisPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisPublisher{
		client: client,
		logger: logger,
	}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, jobID string, event Event) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if strings.TrimSpace(jobID) == "" {
		return fmt.Errorf("job id is required")
	}
	event.JobID = jobID
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, JobChannel(jobID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %q: %w", JobChannel(jobID), err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return nil
}

// Subscribe listens for a job's events until the context ends. The
// returned channel closes once the subscription is torn down.
func (p *RedisPublisher) Subscribe(ctx context.Context, jobID string) (<-chan Event, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("publisher is not initialized")
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("job id is required")
	}

	sub := p.client.Subscribe(ctx, JobChannel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", JobChannel(jobID), err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck // best-effort teardown

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Warn("dropping undecodable job event",
						zap.String("jobId", jobID),
						zap.Error(err),
					)
					continue
				}

				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
