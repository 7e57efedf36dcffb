// internal/service/ledger_service.go
package service

import (
	"github.com/rs/zerolog"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/model"
	"github.com/qrneighbor/sms-dispatch/internal/provider"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
)

// LedgerService owns the messages table: one row per attempt written at
// send time, updated in place by delivery-status callbacks.
type LedgerService struct {
	Messages repository.MessageRepositoryInterface

	log zerolog.Logger
}

func NewLedgerService(messages repository.MessageRepositoryInterface) *LedgerService {
	return &LedgerService{
		Messages: messages,
		log:      logger.WithComponent("ledger"),
	}
}

// RecordAttempt writes the send-time row.
func (s *LedgerService) RecordAttempt(m *model.Message) error {
	if m.Status == "" {
		m.Status = model.MessageQueued
	}
	return s.Messages.Create(m)
}

// ApplyStatusUpdate handles a provider delivery callback. Unknown message
// IDs are silently discarded; a callback never creates rows. The lifecycle
// only moves forward, so a late "queued" after "delivered" is dropped.
func (s *LedgerService) ApplyStatusUpdate(providerMessageID, rawStatus, errorCode string) error {
	if providerMessageID == "" {
		return nil
	}

	m, err := s.Messages.GetByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if m == nil {
		s.log.Debug().Str("provider_message_id", providerMessageID).Msg("status update for unknown message, dropping")
		return nil
	}

	next := provider.NormalizeStatus(rawStatus)
	if !model.StatusAdvances(m.Status, next) {
		s.log.Debug().
			Str("provider_message_id", providerMessageID).
			Str("from", m.Status).
			Str("to", next).
			Msg("ignoring regressive status update")
		return nil
	}

	if errorCode == "" {
		errorCode = m.ErrorCode
	}
	return s.Messages.UpdateStatus(m.ID, next, errorCode)
}

// StatsByCampaign reports per-status counts for a campaign's ledger rows.
func (s *LedgerService) StatsByCampaign(campaignID int) (map[string]int, error) {
	return s.Messages.StatsByCampaign(campaignID)
}
