// internal/model/campaign.go
package model

import "time"

const (
	CampaignModeNow       = "now"
	CampaignModeScheduled = "scheduled"
)

const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignSending   = "sending"
	CampaignSent      = "sent"
	CampaignFailed    = "failed"
	CampaignCancelled = "cancelled"
)

type Campaign struct {
	ID              int        `db:"id" json:"id"`
	BusinessKey     string     `db:"business_key" json:"business_key"`
	Body            string     `db:"body" json:"body"`
	Mode            string     `db:"mode" json:"mode"`
	Status          string     `db:"status" json:"status"`
	ScheduledAt     *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	SentAt          *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	TotalRecipients int        `db:"total_recipients" json:"total_recipients"`
	SentOK          int        `db:"sent_ok" json:"sent_ok"`
	SentFailed      int        `db:"sent_failed" json:"sent_failed"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
