// internal/controller/webhook_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/service"
)

// WebhookController receives provider callbacks: inbound messages (STOP
// handling) and delivery-status updates. Status callbacks always answer
// 200 once the correlation ID is present, even for unknown IDs, so the
// provider never enters a retry storm.
type WebhookController struct {
	InboundService *service.InboundService
	LedgerService  *service.LedgerService

	log zerolog.Logger
}

func NewWebhookController(inbound *service.InboundService, ledger *service.LedgerService) *WebhookController {
	return &WebhookController{
		InboundService: inbound,
		LedgerService:  ledger,
		log:            logger.WithComponent("webhooks"),
	}
}

// InboundSMS handles a message-received event: form fields From, To, Body.
func (c *WebhookController) InboundSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	from := r.PostFormValue("From")
	to := r.PostFormValue("To")
	body := r.PostFormValue("Body")

	if from == "" || to == "" || body == "" {
		http.Error(w, "Missing parameters", http.StatusBadRequest)
		return
	}

	action, err := c.InboundService.HandleInbound(r.Context(), from, to, body)
	if err != nil {
		c.log.Error().Err(err).Str("from", from).Msg("inbound handling failed")
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	if action == service.ActionIgnored {
		w.Write([]byte("Ignored"))
		return
	}
	w.Write([]byte("OK"))
}

// telnyxEvent is the JSON shape Telnyx posts for message status webhooks.
type telnyxEvent struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			ID string `json:"id"`
			To []struct {
				PhoneNumber string `json:"phone_number"`
				Status      string `json:"status"`
			} `json:"to"`
			Errors []struct {
				Code string `json:"code"`
			} `json:"errors"`
		} `json:"payload"`
	} `json:"data"`
}

// DeliveryStatus handles a delivery-status event. Twilio posts
// form-encoded MessageSid/MessageStatus/ErrorCode; Telnyx posts a JSON
// event envelope. Both land on the same ledger update.
func (c *WebhookController) DeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var id, status, errorCode string

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var ev telnyxEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		id = ev.Data.Payload.ID
		if len(ev.Data.Payload.To) > 0 {
			status = ev.Data.Payload.To[0].Status
		}
		if len(ev.Data.Payload.Errors) > 0 {
			errorCode = ev.Data.Payload.Errors[0].Code
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}
		id = r.PostFormValue("MessageSid")
		status = r.PostFormValue("MessageStatus")
		errorCode = r.PostFormValue("ErrorCode")
	}

	if id == "" {
		http.Error(w, "Missing MessageSid", http.StatusBadRequest)
		return
	}

	if err := c.LedgerService.ApplyStatusUpdate(id, status, errorCode); err != nil {
		// Still 200: retrying won't help and a non-2xx triggers provider
		// retry storms.
		c.log.Error().Err(err).Str("provider_message_id", id).Msg("status update failed")
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}
