// internal/phone/phone.go
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	appErrors "github.com/qrneighbor/sms-dispatch/internal/errors"
)

// DefaultRegion is used when a number arrives without a country prefix.
const DefaultRegion = "US"

// Normalize parses raw into canonical E.164 form ("+15551230001").
// Every read and write boundary goes through this, so a subscriber row and
// an inbound webhook can never disagree on formatting.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", appErrors.NewInvalidPhone(raw)
	}

	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return "", appErrors.NewInvalidPhone(raw)
	}
	// Possibility (length) rather than strict validity: carriers route
	// numbers the metadata tables call invalid, and rejecting them here
	// would drop real subscribers.
	if !phonenumbers.IsPossibleNumber(num) {
		return "", appErrors.NewInvalidPhone(raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizeOrKeep is for lookup boundaries: an unparseable number is
// matched verbatim instead of being rejected, so rows captured before
// normalization existed can still be found.
func NormalizeOrKeep(raw string) string {
	n, err := Normalize(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return n
}
