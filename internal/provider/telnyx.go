// internal/provider/telnyx.go
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qrneighbor/sms-dispatch/internal/model"
)

const telnyxAPIBase = "https://api.telnyx.com/v2"

// Telnyx sends through the v2 messages endpoint with Bearer auth. The
// webhook_url field registers the delivery webhook on every send.
type Telnyx struct {
	APIKey             string
	MessagingProfileID string
	WebhookURL         string

	// BaseURL overrides the Telnyx API host in tests.
	BaseURL string
	Client  *http.Client
}

func NewTelnyx(apiKey, messagingProfileID, webhookURL string) *Telnyx {
	return &Telnyx{
		APIKey:             apiKey,
		MessagingProfileID: messagingProfileID,
		WebhookURL:         webhookURL,
		Client:             &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *Telnyx) Name() string { return NameTelnyx }

type telnyxRequest struct {
	From               string `json:"from"`
	To                 string `json:"to"`
	Text               string `json:"text"`
	WebhookURL         string `json:"webhook_url,omitempty"`
	MessagingProfileID string `json:"messaging_profile_id,omitempty"`
}

type telnyxResponse struct {
	Data struct {
		ID string `json:"id"`
		To []struct {
			PhoneNumber string `json:"phone_number"`
			Status      string `json:"status"`
		} `json:"to"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (t *Telnyx) Send(ctx context.Context, from, to, body string) (*Result, error) {
	if t.APIKey == "" {
		return nil, &HardFailure{Provider: NameTelnyx, Err: fmt.Errorf("missing API key")}
	}

	base := t.BaseURL
	if base == "" {
		base = telnyxAPIBase
	}

	payload := telnyxRequest{
		From:               from,
		To:                 to,
		Text:               body,
		WebhookURL:         t.WebhookURL,
		MessagingProfileID: t.MessagingProfileID,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, &HardFailure{Provider: NameTelnyx, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/messages", bytes.NewReader(buf))
	if err != nil {
		return nil, &HardFailure{Provider: NameTelnyx, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, &HardFailure{Provider: NameTelnyx, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HardFailure{Provider: NameTelnyx, Err: err}
	}

	var data telnyxResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return &Result{Status: model.MessageUnknown, ToPhone: to}, nil
	}

	result := &Result{
		ProviderMessageID: data.Data.ID,
		ToPhone:           to,
	}
	if len(data.Data.To) > 0 {
		if data.Data.To[0].PhoneNumber != "" {
			result.ToPhone = data.Data.To[0].PhoneNumber
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Status = model.MessageFailed
		if len(data.Errors) > 0 && data.Errors[0].Code != "" {
			result.ErrorCode = data.Errors[0].Code
		} else {
			result.ErrorCode = fmt.Sprintf("%d", resp.StatusCode)
		}
		return result, nil
	}

	status := model.MessageQueued
	if len(data.Data.To) > 0 && data.Data.To[0].Status != "" {
		status = NormalizeStatus(data.Data.To[0].Status)
	}
	result.Status = status
	return result, nil
}

var _ Sender = (*Telnyx)(nil)
