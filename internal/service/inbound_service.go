// internal/service/inbound_service.go
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/phone"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
)

// Inbound actions.
const (
	ActionIgnored      = "ignored"
	ActionUnsubscribed = "unsubscribed"
)

// stopKeywords is the opt-out vocabulary. Exact phrase only: "stop now"
// does not match.
var stopKeywords = map[string]bool{
	"STOP":        true,
	"STOPALL":     true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
	"END":         true,
	"QUIT":        true,
}

const stopConfirmation = "You've been unsubscribed. You will no longer receive messages from this business."

// InboundService reacts to subscriber-originated messages. Only the STOP
// vocabulary does anything; every other body is ignored without a reply.
type InboundService struct {
	Businesses  repository.BusinessRepositoryInterface
	Subscribers repository.SubscriberRepositoryInterface
	Dispatcher  *Dispatcher

	log zerolog.Logger
}

func NewInboundService(
	businesses repository.BusinessRepositoryInterface,
	subscribers repository.SubscriberRepositoryInterface,
	dispatcher *Dispatcher,
) *InboundService {
	return &InboundService{
		Businesses:  businesses,
		Subscribers: subscribers,
		Dispatcher:  dispatcher,
		log:         logger.WithComponent("inbound"),
	}
}

// HandleInbound processes one received SMS. from is the subscriber, to is
// the business sender number the message arrived on.
func (s *InboundService) HandleInbound(ctx context.Context, from, to, body string) (string, error) {
	if !stopKeywords[strings.ToUpper(strings.TrimSpace(body))] {
		return ActionIgnored, nil
	}

	from = phone.NormalizeOrKeep(from)
	to = phone.NormalizeOrKeep(to)

	business, err := s.Businesses.GetBySenderNumber(to)
	if err != nil {
		var notFound *appErrors.ErrBusinessNotFound
		if errors.As(err, &notFound) {
			// STOP to a number we don't manage: nothing to unsubscribe,
			// nothing to confirm.
			s.log.Warn().Str("to", to).Msg("inbound STOP for unknown sender number")
			return ActionIgnored, nil
		}
		return "", err
	}

	n, err := s.Subscribers.MarkUnsubscribed(business.Key, from)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("business", business.Key).Str("phone", from).Int("rows", n).Msg("opt-out applied")

	// Confirmation goes back from the number the STOP arrived on.
	if _, err := s.Dispatcher.Dispatch(ctx, DispatchInput{
		From:        to,
		To:          from,
		Body:        stopConfirmation,
		BusinessKey: business.Key,
		Source:      model.SourceSystem,
	}); err != nil {
		s.log.Warn().Err(err).Str("phone", from).Msg("opt-out confirmation failed")
	}

	return ActionUnsubscribed, nil
}
