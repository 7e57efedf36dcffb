// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrBusinessNotFound is returned when a business key (or sender number)
// resolves to nothing.
type ErrBusinessNotFound struct {
	Key string
}

func (e *ErrBusinessNotFound) Error() string {
	return fmt.Sprintf("business %q not found", e.Key)
}

func NewBusinessNotFound(key string) error {
	return &ErrBusinessNotFound{Key: key}
}

// ErrInvalidPhone is returned when a phone number cannot be normalized to
// E.164 at a capture boundary.
type ErrInvalidPhone struct {
	Phone string
}

func (e *ErrInvalidPhone) Error() string {
	return fmt.Sprintf("phone number %q is not a valid E.164 number", e.Phone)
}

func NewInvalidPhone(phone string) error {
	return &ErrInvalidPhone{Phone: phone}
}

// ErrInvalidTransition is returned when a campaign operation is attempted
// in a status that does not allow it (e.g. cancelling a sent campaign).
type ErrInvalidTransition struct {
	CampaignID int
	Status     string
	Op         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot %s in status %q", e.CampaignID, e.Op, e.Status)
}

func NewInvalidTransition(id int, status, op string) error {
	return &ErrInvalidTransition{CampaignID: id, Status: status, Op: op}
}
