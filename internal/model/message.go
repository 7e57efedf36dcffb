// internal/model/message.go
package model

import "time"

// Message delivery lifecycle. A row only ever moves forward:
// queued -> unknown -> sent -> {delivered, undelivered, failed}.
const (
	MessageQueued      = "queued"
	MessageUnknown     = "unknown"
	MessageSent        = "sent"
	MessageDelivered   = "delivered"
	MessageUndelivered = "undelivered"
	MessageFailed      = "failed"
)

// statusRank orders the lifecycle; applyStatusUpdate refuses to move a row
// to a lower rank. Terminal states share a rank and may overwrite each
// other (Twilio can report failed after undelivered).
var statusRank = map[string]int{
	MessageQueued:      0,
	MessageUnknown:     1,
	MessageSent:        2,
	MessageDelivered:   3,
	MessageUndelivered: 3,
	MessageFailed:      3,
}

// StatusAdvances reports whether moving from to next is a forward (or
// same-rank) transition. Unrecognized provider statuses never advance.
func StatusAdvances(from, next string) bool {
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	fr, ok := statusRank[from]
	if !ok {
		return true
	}
	return nr >= fr
}

const (
	SourceWelcome  = "welcome"
	SourceCampaign = "campaign"
	SourceSystem   = "system"
)

type Message struct {
	ID                int       `db:"id" json:"id"`
	CampaignID        *int      `db:"campaign_id" json:"campaign_id,omitempty"`
	BusinessKey       string    `db:"business_key" json:"business_key"`
	ToPhone           string    `db:"to_phone" json:"to_phone"`
	Provider          string    `db:"provider" json:"provider"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id"`
	Status            string    `db:"status" json:"status"`
	ErrorCode         string    `db:"error_code" json:"error_code,omitempty"`
	Source            string    `db:"source" json:"source"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
