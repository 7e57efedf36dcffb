// internal/model/business.go
package model

import "time"

// Business is a tenant: one client landing page with its own sender number
// and welcome template. Created by the landing-page side; read-only here.
type Business struct {
	ID             int       `db:"id" json:"id"`
	Key            string    `db:"key" json:"key"`
	SenderNumber   string    `db:"sender_number" json:"sender_number"`
	WelcomeMessage string    `db:"welcome_message" json:"welcome_message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
