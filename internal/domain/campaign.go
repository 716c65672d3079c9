package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignEntryStatus tracks one recipient's row in the campaign log.
type CampaignEntryStatus string

const (
	CampaignEntryPending CampaignEntryStatus = "PENDING"
	CampaignEntrySent    CampaignEntryStatus = "SENT"
	CampaignEntryFailed  CampaignEntryStatus = "FAILED"
)

func (s CampaignEntryStatus) String() string { return string(s) }

func (s CampaignEntryStatus) IsValid() bool {
	switch s {
	case CampaignEntryPending, CampaignEntrySent, CampaignEntryFailed:
		return true
	}
	return false
}

func ParseCampaignEntryStatusFromString(s string) (CampaignEntryStatus, error) {
	st := CampaignEntryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign entry status %q", ErrValidation, s)
	}
	return st, nil
}

// CampaignEntry is one recipient's delivery record inside a campaign.
// Rows start PENDING before the send and settle to SENT or FAILED.
type CampaignEntry struct {
	ID                string
	OwnerID           string
	CampaignID        string
	Recipient         string
	TemplateName      string
	Status            CampaignEntryStatus
	ProviderMessageID *string
	ErrorDetail       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
