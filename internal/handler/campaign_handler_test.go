package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/repository"
	"github.com/gofiber/fiber/v2"
)

type fakeCampaignLog struct {
	repository.NopCampaignLog

	getFn     func(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEntry, error)
	summaryFn func(ctx context.Context, campaignID string) ([]repository.CampaignStatusCount, error)
}

func (f *fakeCampaignLog) GetByCampaignID(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEntry, error) {
	return f.getFn(ctx, campaignID, limit)
}

func (f *fakeCampaignLog) CampaignSummary(ctx context.Context, campaignID string) ([]repository.CampaignStatusCount, error) {
	return f.summaryFn(ctx, campaignID)
}

func newCampaignTestApp(t *testing.T, logs repository.CampaignLogRepository) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterCampaignRoutes(app, logs); err != nil {
		t.Fatalf("RegisterCampaignRoutes() error = %v", err)
	}
	return app
}

func TestListCampaignEntries(t *testing.T) {
	t.Parallel()

	msgID := "wamid.OK1"
	detail := "auth_error: token expired"
	logs := &fakeCampaignLog{
		getFn: func(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEntry, error) {
			if campaignID != "campaign-9" {
				t.Errorf("campaignID = %q, want campaign-9", campaignID)
			}
			if limit != 50 {
				t.Errorf("limit = %d, want 50", limit)
			}
			return []domain.CampaignEntry{
				{ID: "e-1", Recipient: "905551110001", TemplateName: "promo", Status: domain.CampaignEntrySent, ProviderMessageID: &msgID, CreatedAt: time.Now().UTC()},
				{ID: "e-2", Recipient: "905551110002", TemplateName: "promo", Status: domain.CampaignEntryFailed, ErrorDetail: &detail, CreatedAt: time.Now().UTC()},
			}, nil
		},
	}
	app := newCampaignTestApp(t, logs)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/campaigns/campaign-9/entries?limit=50", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		CampaignID string `json:"campaignId"`
		Entries    []struct {
			ID                string  `json:"id"`
			Recipient         string  `json:"recipient"`
			Status            string  `json:"status"`
			ProviderMessageID *string `json:"providerMessageId"`
			ErrorDetail       *string `json:"errorDetail"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.CampaignID != "campaign-9" {
		t.Errorf("campaignId = %q, want campaign-9", body.CampaignID)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(body.Entries))
	}
	if body.Entries[0].Status != "SENT" || body.Entries[0].ProviderMessageID == nil {
		t.Errorf("first entry = %+v, want SENT with provider message id", body.Entries[0])
	}
	if body.Entries[1].Status != "FAILED" || body.Entries[1].ErrorDetail == nil {
		t.Errorf("second entry = %+v, want FAILED with error detail", body.Entries[1])
	}
}

func TestListCampaignEntriesRejectsBadLimit(t *testing.T) {
	t.Parallel()

	called := false
	logs := &fakeCampaignLog{
		getFn: func(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEntry, error) {
			called = true
			return nil, nil
		},
	}
	app := newCampaignTestApp(t, logs)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/campaigns/c-1/entries?limit=zero", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if called {
		t.Error("repository called for invalid limit")
	}
}

func TestCampaignSummary(t *testing.T) {
	t.Parallel()

	logs := &fakeCampaignLog{
		summaryFn: func(ctx context.Context, campaignID string) ([]repository.CampaignStatusCount, error) {
			return []repository.CampaignStatusCount{
				{Status: domain.CampaignEntrySent, Count: 198},
				{Status: domain.CampaignEntryFailed, Count: 2},
			}, nil
		},
	}
	app := newCampaignTestApp(t, logs)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/campaigns/campaign-9/summary", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		CampaignID string         `json:"campaignId"`
		Counts     map[string]int `json:"counts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Counts["SENT"] != 198 || body.Counts["FAILED"] != 2 {
		t.Errorf("counts = %v, want SENT=198 FAILED=2", body.Counts)
	}
}
