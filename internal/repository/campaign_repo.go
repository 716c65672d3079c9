package repository

import (
	"context"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignLogRepository records per-recipient delivery rows. Callers
// treat it as a best-effort side channel: failures are logged, never
// allowed to abort sending.
type CampaignLogRepository interface {
	CreateEntry(ctx context.Context, ownerID, recipient, campaignID, templateName string) (string, error)
	UpdateStatus(ctx context.Context, entryID string, status domain.CampaignEntryStatus, providerMessageID, errorDetail *string) error
	GetByCampaignID(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEntry, error)
	CampaignSummary(ctx context.Context, campaignID string) ([]CampaignStatusCount, error)
}

// CampaignStatusCount is one status bucket of a campaign summary.
type CampaignStatusCount struct {
	Status domain.CampaignEntryStatus `gorm:"column:status"`
	Count  int                        `gorm:"column:count"`
}

type GormCampaignLogRepo struct {
	db *gorm.DB
}

func NewGormCampaignLogRepo(db *gorm.DB) *GormCampaignLogRepo {
	return &GormCampaignLogRepo{db: db}
}

func (r *GormCampaignLogRepo) CreateEntry(
	ctx context.Context,
	ownerID, recipient, campaignID, templateName string,
) (string, error) {
	model := &CampaignEntryModel{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		CampaignID:   campaignID,
		Recipient:    recipient,
		TemplateName: templateName,
		Status:       domain.CampaignEntryPending,
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return "", err
	}
	return model.ID, nil
}

func (r *GormCampaignLogRepo) UpdateStatus(
	ctx context.Context,
	entryID string,
	status domain.CampaignEntryStatus,
	providerMessageID, errorDetail *string,
) error {
	if !status.IsValid() {
		return domain.ErrValidation
	}

	updates := map[string]any{
		"status": status,
	}
	if providerMessageID != nil {
		updates["provider_message_id"] = *providerMessageID
	}
	if errorDetail != nil {
		updates["error_detail"] = *errorDetail
	}

	result := r.db.WithContext(ctx).
		Model(&CampaignEntryModel{}).
		Where("id = ?", entryID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormCampaignLogRepo) GetByCampaignID(
	ctx context.Context,
	campaignID string,
	limit int,
) ([]domain.CampaignEntry, error) {
	if limit < 1 {
		limit = 100
	}

	var models []CampaignEntryModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.CampaignEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *campaignEntryModelToDomain(&models[i]))
	}

	return entries, nil
}

func (r *GormCampaignLogRepo) CampaignSummary(
	ctx context.Context,
	campaignID string,
) ([]CampaignStatusCount, error) {
	var counts []CampaignStatusCount
	err := r.db.WithContext(ctx).
		Model(&CampaignEntryModel{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// NopCampaignLog discards all log writes; used when no database is
// configured and in dispatch tests.
type NopCampaignLog struct{}

func (NopCampaignLog) CreateEntry(ctx context.Context, ownerID, recipient, campaignID, templateName string) (string, error) {
	return "", nil
}

func (NopCampaignLog) UpdateStatus(ctx context.Context, entryID string, status domain.CampaignEntryStatus, providerMessageID, errorDetail *string) error {
	return nil
}

func (NopCampaignLog) GetByCampaignID(ctx context.Context, campaignID string, limit int) ([]domain.CampaignEntry, error) {
	return nil, nil
}

func (NopCampaignLog) CampaignSummary(ctx context.Context, campaignID string) ([]CampaignStatusCount, error) {
	return nil, nil
}
