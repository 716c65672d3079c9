package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bulkwave/bulkwave/internal/repository"
	"github.com/gofiber/fiber/v2"
)

type CampaignHandler struct {
	logs repository.CampaignLogRepository
}

func NewCampaignHandler(logs repository.CampaignLogRepository) (*CampaignHandler, error) {
	if logs == nil {
		return nil, fmt.Errorf("campaign log repository is required")
	}
	return &CampaignHandler{logs: logs}, nil
}

func RegisterCampaignRoutes(router fiber.Router, logs repository.CampaignLogRepository) error {
	h, err := NewCampaignHandler(logs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/campaigns/:id/entries", h.ListEntries)
	v1.Get("/campaigns/:id/summary", h.Summary)

	return nil
}

type campaignEntryResponse struct {
	ID                string    `json:"id"`
	Recipient         string    `json:"recipient"`
	TemplateName      string    `json:"templateName"`
	Status            string    `json:"status"`
	ProviderMessageID *string   `json:"providerMessageId,omitempty"`
	ErrorDetail       *string   `json:"errorDetail,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

type campaignSummaryResponse struct {
	CampaignID string         `json:"campaignId"`
	Counts     map[string]int `json:"counts"`
}

func (h *CampaignHandler) ListEntries(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "campaign id is required")
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	entries, err := h.logs.GetByCampaignID(c.Context(), id, limit)
	if err != nil {
		return toHTTPError(err)
	}

	resp := make([]campaignEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, campaignEntryResponse{
			ID:                e.ID,
			Recipient:         e.Recipient,
			TemplateName:      e.TemplateName,
			Status:            e.Status.String(),
			ProviderMessageID: e.ProviderMessageID,
			ErrorDetail:       e.ErrorDetail,
			CreatedAt:         e.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"campaignId": id,
		"entries":    resp,
	})
}

func (h *CampaignHandler) Summary(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "campaign id is required")
	}

	counts, err := h.logs.CampaignSummary(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	resp := campaignSummaryResponse{
		CampaignID: id,
		Counts:     make(map[string]int, len(counts)),
	}
	for _, count := range counts {
		resp.Counts[count.Status.String()] = count.Count
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
