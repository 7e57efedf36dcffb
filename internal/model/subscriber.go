// internal/model/subscriber.go
package model

import "time"

const (
	SubscriberActive       = "active"
	SubscriberUnsubscribed = "unsubscribed"
)

type Subscriber struct {
	ID            int        `db:"id" json:"id"`
	BusinessKey   string     `db:"business_key" json:"business_key"`
	Phone         string     `db:"phone" json:"phone"` // E.164
	Name          string     `db:"name" json:"name,omitempty"`
	Status        string     `db:"status" json:"status"`
	WelcomeSentAt *time.Time `db:"welcome_sent_at" json:"welcome_sent_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
