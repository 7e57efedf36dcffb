// internal/model/scheduled_job.go
package model

import "time"

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobDone      = "done"
	JobCancelled = "cancelled"
	JobFailed    = "failed"
)

// ScheduledJob is one single-shot campaign run due at DueAt. A tick claims
// the row (pending -> running) before handing it to the worker, so two
// ticks observing the same due job cannot both execute it.
type ScheduledJob struct {
	ID          int       `db:"id" json:"id"`
	CampaignID  int       `db:"campaign_id" json:"campaign_id"`
	BusinessKey string    `db:"business_key" json:"business_key"`
	Body        string    `db:"body" json:"body"`
	DueAt       time.Time `db:"due_at" json:"due_at"`
	Status      string    `db:"status" json:"status"`
	ClaimToken  string    `db:"claim_token" json:"claim_token,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
