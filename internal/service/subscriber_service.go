// internal/service/subscriber_service.go
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/phone"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
)

type SubscriberService struct {
	Subscribers repository.SubscriberRepositoryInterface
	Businesses  repository.BusinessRepositoryInterface
	Dispatcher  *Dispatcher

	log zerolog.Logger
}

func NewSubscriberService(
	subscribers repository.SubscriberRepositoryInterface,
	businesses repository.BusinessRepositoryInterface,
	dispatcher *Dispatcher,
) *SubscriberService {
	return &SubscriberService{
		Subscribers: subscribers,
		Businesses:  businesses,
		Dispatcher:  dispatcher,
		log:         logger.WithComponent("subscribers"),
	}
}

// Capture registers a new lead for a business and sends the business's
// welcome message, at most once per subscriber. Re-capturing an
// unsubscribed number reactivates it without a second welcome.
func (s *SubscriberService) Capture(ctx context.Context, businessKey, rawPhone, name string) (*model.Subscriber, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}

	business, err := s.Businesses.GetByKey(businessKey)
	if err != nil {
		return nil, err
	}

	sub := &model.Subscriber{
		BusinessKey: businessKey,
		Phone:       normalized,
		Name:        name,
	}
	if err := s.Subscribers.Create(sub); err != nil {
		return nil, err
	}

	if sub.WelcomeSentAt != nil || business.WelcomeMessage == "" || business.SenderNumber == "" {
		return sub, nil
	}

	_, err = s.Dispatcher.Dispatch(ctx, DispatchInput{
		From:        business.SenderNumber,
		To:          sub.Phone,
		Body:        business.WelcomeMessage,
		BusinessKey: businessKey,
		Source:      model.SourceWelcome,
	})
	if err != nil {
		// The subscriber row stays; the welcome just didn't go out.
		s.log.Warn().Err(err).Str("phone", sub.Phone).Msg("welcome send failed")
		return sub, nil
	}

	now := time.Now()
	if err := s.Subscribers.MarkWelcomeSent(sub.ID, now); err != nil {
		s.log.Error().Err(err).Int("subscriber_id", sub.ID).Msg("failed to record welcome send")
	}
	sub.WelcomeSentAt = &now
	return sub, nil
}

// ActiveRecipients resolves the opted-in phone list for a business.
// Order is unspecified; an empty list is valid.
func (s *SubscriberService) ActiveRecipients(businessKey string) ([]string, error) {
	return s.Subscribers.ListActivePhones(businessKey)
}
