// internal/provider/provider.go
package provider

import (
	"context"
	"fmt"

	"github.com/qrneighbor/sms-dispatch/internal/model"
)

const (
	NameTwilio = "twilio"
	NameTelnyx = "telnyx"
)

// Result is the normalized outcome of a send attempt that reached the
// provider. A provider-reported rejection (bad number, carrier block) is
// still a Result, with a failed status and an error code — the API call
// itself succeeded.
type Result struct {
	ProviderMessageID string
	Status            string // model.Message* lifecycle value
	ErrorCode         string
	ToPhone           string // provider-echoed recipient, when present
}

// HardFailure means the attempt never meaningfully reached the provider:
// missing credentials or a transport error. It is the signal the
// dispatcher fails over on.
type HardFailure struct {
	Provider string
	Err      error
}

func (e *HardFailure) Error() string {
	return fmt.Sprintf("%s hard failure: %v", e.Provider, e.Err)
}

func (e *HardFailure) Unwrap() error { return e.Err }

// Sender sends one SMS through a named provider. A non-nil error is
// always a *HardFailure: anything the provider answered, rejections
// included, comes back as a Result.
type Sender interface {
	Name() string
	Send(ctx context.Context, from, to, body string) (*Result, error)
}

// NormalizeStatus maps a provider-reported message status onto the ledger
// lifecycle. Both Twilio and Telnyx vocabularies funnel through here, at
// send time and again for webhook callbacks.
func NormalizeStatus(s string) string {
	switch s {
	case "accepted", "queued", "scheduled":
		return model.MessageQueued
	case "sending", "sent":
		return model.MessageSent
	case "delivered":
		return model.MessageDelivered
	case "undelivered", "delivery_failed":
		return model.MessageUndelivered
	case "failed", "sending_failed", "canceled":
		return model.MessageFailed
	default:
		return model.MessageUnknown
	}
}
