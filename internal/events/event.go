package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// EventType enumerates the granular progress events a running job emits.
type EventType string

const (
	EventLoopStarted   EventType = "loop_started"
	EventMessageSent   EventType = "message_sent"
	EventMessageFailed EventType = "message_failed"
	EventLoopCompleted EventType = "loop_completed"
	EventJobCompleted  EventType = "job_completed"
)

func (t EventType) String() string { return string(t) }

func (t EventType) IsValid() bool {
	switch t {
	case EventLoopStarted, EventMessageSent, EventMessageFailed, EventLoopCompleted, EventJobCompleted:
		return true
	}
	return false
}

// Event is one progress notification for a bulk job. Fields are
// populated per type; counters are running totals at emission time.
type Event struct {
	Type              EventType `json:"type"`
	JobID             string    `json:"jobId"`
	CampaignID        string    `json:"campaignId,omitempty"`
	LoopIndex         int       `json:"loopIndex"`
	TotalLoops        int       `json:"totalLoops,omitempty"`
	LoopSize          int       `json:"loopSize,omitempty"`
	To                string    `json:"to,omitempty"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	Error             string    `json:"error,omitempty"`
	SentCount         int       `json:"sentCount"`
	FailedCount       int       `json:"failedCount"`
	State             string    `json:"state,omitempty"`
}

func (e Event) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type %q", e.Type)
	}
	if strings.TrimSpace(e.JobID) == "" {
		return fmt.Errorf("jobId is required")
	}
	return nil
}

// Publisher forwards job progress events to an external real-time
// channel. Delivery is at-most-once; the job's own state remains the
// source of truth.
type Publisher interface {
	Publish(ctx context.Context, jobID string, event Event) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(ctx context.Context, jobID string, event Event) error { return nil }

func (Nop) Close() error { return nil }

// Fanout publishes each event to every wrapped publisher. Individual
// failures do not stop the remaining publishers.
type Fanout struct {
	publishers []Publisher
}

func NewFanout(publishers ...Publisher) *Fanout {
	kept := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Fanout{publishers: kept}
}

func (f *Fanout) Publish(ctx context.Context, jobID string, event Event) error {
	if f == nil {
		return nil
	}

	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, jobID, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}

	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
