package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/service"
	"github.com/gofiber/fiber/v2"
)

// JobService is the bulk-send surface the HTTP layer depends on.
type JobService interface {
	Submit(ctx context.Context, input domain.SubmitBulkJobInput) (domain.JobSnapshot, error)
	GetJob(ctx context.Context, jobID string) (domain.JobSnapshot, error)
	Cancel(ctx context.Context, jobID string) error
	SendBulkSync(ctx context.Context, input domain.SubmitBulkJobInput) ([]domain.RecipientOutcome, error)
}

type JobHandler struct {
	service JobService
	stream  EventStream
}

func NewJobHandler(service JobService, stream EventStream) (*JobHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("job service is required")
	}
	return &JobHandler{service: service, stream: stream}, nil
}

func RegisterJobRoutes(router fiber.Router, service JobService, stream EventStream) error {
	h, err := NewJobHandler(service, stream)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/jobs", h.SubmitJob)
	v1.Get("/jobs/:id", h.GetJob)
	v1.Post("/jobs/:id/cancel", h.CancelJob)
	v1.Get("/jobs/:id/events", h.StreamJobEvents)
	v1.Post("/send/bulk", h.SendBulkSync)

	return nil
}

type templateRefRequest struct {
	Name         string   `json:"name"`
	LanguageCode string   `json:"languageCode"`
	BodyParams   []string `json:"bodyParams,omitempty"`
	HeaderParam  string   `json:"headerParam,omitempty"`
	ButtonParams []string `json:"buttonParams,omitempty"`
}

type submitJobRequest struct {
	OwnerID               string                       `json:"ownerId"`
	CampaignID            string                       `json:"campaignId,omitempty"`
	Recipients            []string                     `json:"recipients"`
	TemplateRef           templateRefRequest           `json:"templateRef"`
	PerRecipientVariables map[string]map[string]string `json:"perRecipientVariables,omitempty"`
	LoopSize              int                          `json:"loopSize,omitempty"`
	InterLoopPauseMs      int                          `json:"interLoopPauseMs,omitempty"`
	RatePerSecond         int                          `json:"ratePerSecond,omitempty"`
}

type submitJobResponse struct {
	JobID      string `json:"jobId"`
	CampaignID string `json:"campaignId"`
	State      string `json:"state"`
	TotalLoops int    `json:"totalLoops"`
}

type recipientOutcomeResponse struct {
	To                string              `json:"to"`
	OK                bool                `json:"ok"`
	ProviderMessageID string              `json:"providerMessageId,omitempty"`
	Error             *domain.SendFailure `json:"error,omitempty"`
}

type jobResponse struct {
	ID          string                     `json:"id"`
	OwnerID     string                     `json:"ownerId"`
	CampaignID  string                     `json:"campaignId"`
	State       string                     `json:"state"`
	LoopSize    int                        `json:"loopSize"`
	TotalLoops  int                        `json:"totalLoops"`
	TotalCount  int                        `json:"totalCount"`
	SentCount   int                        `json:"sentCount"`
	FailedCount int                        `json:"failedCount"`
	Results     []recipientOutcomeResponse `json:"results"`
	Error       string                     `json:"error,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
}

type sendBulkResponse struct {
	SentCount   int                        `json:"sentCount"`
	FailedCount int                        `json:"failedCount"`
	Results     []recipientOutcomeResponse `json:"results"`
}

func (h *JobHandler) SubmitJob(c *fiber.Ctx) error {
	var req submitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	snapshot, err := h.service.Submit(c.Context(), requestToSubmitInput(req))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(submitJobResponse{
		JobID:      snapshot.ID,
		CampaignID: snapshot.CampaignID,
		State:      snapshot.State.String(),
		TotalLoops: snapshot.TotalLoops,
	})
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	snapshot, err := h.service.GetJob(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toJobResponse(snapshot))
}

func (h *JobHandler) CancelJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Cancel(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"jobId":  id,
		"status": "cancel_requested",
	})
}

func (h *JobHandler) SendBulkSync(c *fiber.Ctx) error {
	var req submitJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	outcomes, err := h.service.SendBulkSync(c.Context(), requestToSubmitInput(req))
	if err != nil {
		return toHTTPError(err)
	}

	resp := sendBulkResponse{
		Results: make([]recipientOutcomeResponse, 0, len(outcomes)),
	}
	for _, outcome := range outcomes {
		if outcome.OK {
			resp.SentCount++
		} else {
			resp.FailedCount++
		}
		resp.Results = append(resp.Results, toOutcomeResponse(outcome))
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func requestToSubmitInput(req submitJobRequest) domain.SubmitBulkJobInput {
	return domain.SubmitBulkJobInput{
		OwnerID:    strings.TrimSpace(req.OwnerID),
		CampaignID: strings.TrimSpace(req.CampaignID),
		Recipients: req.Recipients,
		Template: domain.TemplateRef{
			Name:         strings.TrimSpace(req.TemplateRef.Name),
			LanguageCode: strings.TrimSpace(req.TemplateRef.LanguageCode),
			BodyParams:   req.TemplateRef.BodyParams,
			HeaderParam:  req.TemplateRef.HeaderParam,
			ButtonParams: req.TemplateRef.ButtonParams,
		},
		PerRecipientVariables: req.PerRecipientVariables,
		LoopSize:              req.LoopSize,
		InterLoopPause:        time.Duration(req.InterLoopPauseMs) * time.Millisecond,
		RatePerSecond:         req.RatePerSecond,
	}
}

func toOutcomeResponse(outcome domain.RecipientOutcome) recipientOutcomeResponse {
	return recipientOutcomeResponse{
		To:                outcome.To,
		OK:                outcome.OK,
		ProviderMessageID: outcome.ProviderMessageID,
		Error:             outcome.Failure,
	}
}

func toJobResponse(snapshot domain.JobSnapshot) jobResponse {
	results := make([]recipientOutcomeResponse, 0, len(snapshot.Results))
	for _, outcome := range snapshot.Results {
		results = append(results, toOutcomeResponse(outcome))
	}

	return jobResponse{
		ID:          snapshot.ID,
		OwnerID:     snapshot.OwnerID,
		CampaignID:  snapshot.CampaignID,
		State:       snapshot.State.String(),
		LoopSize:    snapshot.LoopSize,
		TotalLoops:  snapshot.TotalLoops,
		TotalCount:  snapshot.TotalCount,
		SentCount:   snapshot.SentCount,
		FailedCount: snapshot.FailedCount,
		Results:     results,
		Error:       snapshot.FailReason,
		CreatedAt:   snapshot.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSubmissionRejected):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

var _ JobService = (*service.BulkJobService)(nil)
