package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const trackingCodeSeparator = "-"

var ErrMalformedTrackingCode = errors.New("malformed tracking code")

// EncodeTrackingCode renders the opaque "{applicationID}-{applicationCode}"
// string embedded in tracking snippets.
func EncodeTrackingCode(applicationID int64, applicationCode int) string {
	return strconv.FormatInt(applicationID, 10) + trackingCodeSeparator + strconv.Itoa(applicationCode)
}

// DecodeApplicationID returns the application id carried before the first
// separator of a tracking code.
func DecodeApplicationID(trackingCode string) (int64, error) {
	idPart, _, found := strings.Cut(trackingCode, trackingCodeSeparator)
	if !found {
		return 0, fmt.Errorf("%w: missing %q separator", ErrMalformedTrackingCode, trackingCodeSeparator)
	}
	if idPart == "" {
		return 0, fmt.Errorf("%w: empty application id", ErrMalformedTrackingCode)
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: invalid application id %q", ErrMalformedTrackingCode, idPart)
	}

	return id, nil
}

// ValidateTrackingCode reports whether trackingCode is exactly the code
// derived from app. No normalization is applied.
func ValidateTrackingCode(trackingCode string, app *Application) bool {
	if app == nil {
		return false
	}
	return EncodeTrackingCode(app.ID, app.Code) == trackingCode
}
