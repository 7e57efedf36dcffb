// internal/provider/twilio.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qrneighbor/sms-dispatch/internal/model"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Twilio sends through the Messages endpoint with Basic auth. The
// StatusCallback field registers the delivery webhook on every send.
type Twilio struct {
	AccountSID        string
	AuthToken         string
	StatusCallbackURL string

	// BaseURL overrides the Twilio API host in tests.
	BaseURL string
	Client  *http.Client
}

func NewTwilio(accountSID, authToken, statusCallbackURL string) *Twilio {
	return &Twilio{
		AccountSID:        accountSID,
		AuthToken:         authToken,
		StatusCallbackURL: statusCallbackURL,
		Client:            &http.Client{Timeout: 20 * time.Second},
	}
}

func (t *Twilio) Name() string { return NameTwilio }

type twilioResponse struct {
	Sid       string      `json:"sid"`
	Status    string      `json:"status"`
	To        string      `json:"to"`
	ErrorCode interface{} `json:"error_code"`
	Code      interface{} `json:"code"`
}

func (t *Twilio) Send(ctx context.Context, from, to, body string) (*Result, error) {
	if t.AccountSID == "" || t.AuthToken == "" {
		return nil, &HardFailure{Provider: NameTwilio, Err: fmt.Errorf("missing account SID or auth token")}
	}

	base := t.BaseURL
	if base == "" {
		base = twilioAPIBase
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", base, url.PathEscape(t.AccountSID))

	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)
	if t.StatusCallbackURL != "" {
		form.Set("StatusCallback", t.StatusCallbackURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &HardFailure{Provider: NameTwilio, Err: err}
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, &HardFailure{Provider: NameTwilio, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &HardFailure{Provider: NameTwilio, Err: err}
	}

	var data twilioResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		// The call completed but the body is not something we understand.
		// Record the attempt as unknown rather than assuming success.
		return &Result{Status: model.MessageUnknown, ToPhone: to}, nil
	}

	result := &Result{
		ProviderMessageID: data.Sid,
		ToPhone:           to,
	}
	if data.To != "" {
		result.ToPhone = data.To
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Provider-reported rejection: the API answered, so no failover.
		result.Status = model.MessageFailed
		result.ErrorCode = twilioErrorCode(data, resp.StatusCode)
		return result, nil
	}

	result.Status = NormalizeStatus(data.Status)
	if result.Status == model.MessageUnknown && data.Status == "" {
		result.Status = model.MessageQueued
	}
	result.ErrorCode = twilioErrorCode(data, 0)
	return result, nil
}

// twilioErrorCode pulls the best available error code: the Twilio numeric
// code (error_code or code), falling back to the HTTP status.
func twilioErrorCode(data twilioResponse, httpStatus int) string {
	if s := codeString(data.ErrorCode); s != "" {
		return s
	}
	if s := codeString(data.Code); s != "" {
		return s
	}
	if httpStatus != 0 {
		return fmt.Sprintf("%d", httpStatus)
	}
	return ""
}

func codeString(v interface{}) string {
	switch c := v.(type) {
	case float64:
		if c != 0 {
			return fmt.Sprintf("%.0f", c)
		}
	case string:
		return c
	}
	return ""
}

var _ Sender = (*Twilio)(nil)
