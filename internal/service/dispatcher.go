// internal/service/dispatcher.go
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/phone"
	"github.com/qrneighbor/sms-dispatch/internal/provider"
)

// ErrAllProvidersFailed is returned when both providers hard-fail; the
// attempt is still visible in the ledger as a failed row.
var ErrAllProvidersFailed = errors.New("all providers hard-failed")

// DispatchInput is one outbound message to one recipient.
type DispatchInput struct {
	From        string
	To          string
	Body        string
	BusinessKey string
	CampaignID  *int // nil for welcome/system sends
	Source      string
}

// Dispatcher tries the primary provider and falls back to the secondary on
// hard failure only. Provider-reported rejections never fail over: the API
// call succeeded, the message just won't be delivered. Never more than two
// attempts, never the same provider twice.
type Dispatcher struct {
	Primary   provider.Sender
	Secondary provider.Sender
	Ledger    *LedgerService

	log zerolog.Logger
}

func NewDispatcher(primary, secondary provider.Sender, ledger *LedgerService) *Dispatcher {
	return &Dispatcher{
		Primary:   primary,
		Secondary: secondary,
		Ledger:    ledger,
		log:       logger.WithComponent("dispatcher"),
	}
}

// Dispatch returns the sent-count contribution: 1 when a provider accepted
// the message, 0 otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (int, error) {
	in.To = phone.NormalizeOrKeep(in.To)

	result, sender, err := d.attempt(ctx, in)
	if err != nil {
		var hard *provider.HardFailure
		if !errors.As(err, &hard) {
			// Outside the Sender contract: not a provider outcome, so it
			// is surfaced as-is with no ledger row.
			return 0, err
		}

		// Both providers hard-failed: nothing reached a provider. Record
		// one failed row anyway so the run is visible in reporting.
		d.log.Error().Err(err).Str("to", in.To).Msg("dispatch unreachable on both providers")
		synthetic := &model.Message{
			CampaignID:  in.CampaignID,
			BusinessKey: in.BusinessKey,
			ToPhone:     in.To,
			Provider:    d.Primary.Name(),
			Status:      model.MessageFailed,
			ErrorCode:   "unreachable",
			Source:      in.Source,
		}
		if recErr := d.Ledger.RecordAttempt(synthetic); recErr != nil {
			d.log.Error().Err(recErr).Msg("failed to record unreachable attempt")
		}
		return 0, ErrAllProvidersFailed
	}

	row := &model.Message{
		CampaignID:        in.CampaignID,
		BusinessKey:       in.BusinessKey,
		ToPhone:           result.ToPhone,
		Provider:          sender.Name(),
		ProviderMessageID: result.ProviderMessageID,
		Status:            result.Status,
		ErrorCode:         result.ErrorCode,
		Source:            in.Source,
	}
	if err := d.Ledger.RecordAttempt(row); err != nil {
		d.log.Error().Err(err).Str("to", in.To).Msg("failed to record attempt")
	}

	if accepted(result.Status) {
		return 1, nil
	}
	return 0, nil
}

// attempt runs the failover sequence: primary once, then secondary once,
// only when the primary never reached the provider.
func (d *Dispatcher) attempt(ctx context.Context, in DispatchInput) (*provider.Result, provider.Sender, error) {
	result, err := d.Primary.Send(ctx, in.From, in.To, in.Body)
	if err == nil {
		return result, d.Primary, nil
	}

	var hard *provider.HardFailure
	if !errors.As(err, &hard) {
		return nil, nil, err
	}
	d.log.Warn().Err(err).Str("provider", d.Primary.Name()).Msg("primary hard failure, trying fallback")

	result, err = d.Secondary.Send(ctx, in.From, in.To, in.Body)
	if err == nil {
		return result, d.Secondary, nil
	}
	return nil, nil, err
}

// accepted counts queued/sent/unknown as a successful contribution; a
// provider-reported rejection does not contribute.
func accepted(status string) bool {
	switch status {
	case model.MessageFailed, model.MessageUndelivered:
		return false
	default:
		return true
	}
}
