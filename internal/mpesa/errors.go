package mpesa

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials means the client is not configured to talk to the gateway.
	ErrMissingCredentials = errors.New("mpesa: consumer key, consumer secret, shortcode or passkey not configured")
	// ErrInvalidPhone is returned before any network call for numbers that cannot be normalised.
	ErrInvalidPhone = errors.New("mpesa: invalid phone number")
	// ErrInvalidAmount is returned before any network call for amounts below 1.
	ErrInvalidAmount = errors.New("mpesa: amount must be at least 1")
	// ErrTimeout means the outcome of the call is unknown. Callers must not treat it as a failure.
	ErrTimeout = errors.New("mpesa: gateway timed out")
	// ErrUnavailable covers transport failures and unreadable gateway responses.
	ErrUnavailable = errors.New("mpesa: gateway unavailable")
)

// APIError is an error body returned by the gateway.
type APIError struct {
	StatusCode int
	RequestID  string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// processingErrorCode is what the STK query returns while the customer has not answered yet.
const processingErrorCode = "500.001.1001"

// IsProcessing reports whether err is the gateway saying the transaction is still in progress.
func IsProcessing(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == processingErrorCode
}
