package repository

import (
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
)

// CampaignEntryModel is the persistence model for campaign_logs.
type CampaignEntryModel struct {
	ID                string                     `gorm:"type:uuid;primaryKey"`
	OwnerID           string                     `gorm:"type:varchar(64);not null"`
	CampaignID        string                     `gorm:"type:varchar(64);not null"`
	Recipient         string                     `gorm:"type:varchar(32);not null"`
	TemplateName      string                     `gorm:"type:varchar(255);not null"`
	Status            domain.CampaignEntryStatus `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string                    `gorm:"type:varchar(255)"`
	ErrorDetail       *string                    `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (CampaignEntryModel) TableName() string {
	return "campaign_logs"
}

// WAAccountModel is the persistence model for wa_accounts, one
// messaging credential set per tenant.
type WAAccountModel struct {
	OwnerID       string `gorm:"type:varchar(64);primaryKey"`
	PhoneNumberID string `gorm:"type:varchar(64);not null"`
	AccessToken   string `gorm:"type:text;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (WAAccountModel) TableName() string {
	return "wa_accounts"
}

func campaignEntryModelToDomain(m *CampaignEntryModel) *domain.CampaignEntry {
	if m == nil {
		return nil
	}

	return &domain.CampaignEntry{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		CampaignID:        m.CampaignID,
		Recipient:         m.Recipient,
		TemplateName:      m.TemplateName,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		ErrorDetail:       m.ErrorDetail,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
