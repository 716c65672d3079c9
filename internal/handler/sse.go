package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bulkwave/bulkwave/internal/events"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// EventStream exposes a job's live progress feed; the Redis publisher
// implements it. Subscribers joining mid-job only see later events.
type EventStream interface {
	Subscribe(ctx context.Context, jobID string) (<-chan events.Event, error)
}

const sseKeepAliveInterval = 15 * time.Second

// StreamJobEvents bridges the progress feed onto a Server-Sent Events
// response. The stream ends with the job_completed event, when the
// client goes away, or on write failure.
func (h *JobHandler) StreamJobEvents(c *fiber.Ctx) error {
	if h.stream == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "event streaming is not configured")
	}

	jobID := strings.TrimSpace(c.Params("id"))
	if _, err := h.service.GetJob(c.Context(), jobID); err != nil {
		return toHTTPError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	eventCh, err := h.stream.Subscribe(ctx, jobID)
	if err != nil {
		cancel()
		return fiber.NewError(fiber.StatusServiceUnavailable, "event stream unavailable")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepAlive := time.NewTicker(sseKeepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case event, ok := <-eventCh:
				if !ok {
					return
				}
				if err := writeSSEEvent(w, event); err != nil {
					return
				}
				if event.Type == events.EventJobCompleted {
					return
				}
			case <-keepAlive.C:
				// Comment frame keeps intermediaries from closing an
				// idle connection during inter-loop pauses.
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeSSEEvent(w *bufio.Writer, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := w.WriteString("event: " + event.Type.String() + "\n"); err != nil {
		return err
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
