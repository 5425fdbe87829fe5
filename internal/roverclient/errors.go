package roverclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType is the category of a client error.
type ErrorType int

const (
	// ErrTypeNetwork is a network-level failure without a more specific type.
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP is an unexpected HTTP status.
	ErrTypeHTTP
	// ErrTypeParse is a malformed response body.
	ErrTypeParse
	// ErrTypeValidation is a request rejected before it was sent.
	ErrTypeValidation
	// ErrTypeTimeout is a request that did not complete in time.
	ErrTypeTimeout
	// ErrTypeConnectionRefused means nothing listens on the rover's port.
	ErrTypeConnectionRefused
	// ErrTypeDNS is a hostname resolution failure.
	ErrTypeDNS
	// ErrTypeUnavailable is a 503 from the rover (a scan that could not run).
	ErrTypeUnavailable
)

// String returns a human-readable name for the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeUnavailable:
		return "Unavailable"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// RoverError is returned by every Client method.
type RoverError struct {
	Type       ErrorType
	Message    string
	StatusCode int   // HTTP status, when one was received
	Err        error // Underlying error
	Retryable  bool
}

// Error implements the error interface.
func (e *RoverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *RoverError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error onto a RoverError.
func ClassifyNetworkError(err error) *RoverError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &RoverError{Type: ErrTypeTimeout, Message: "request timed out", Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &RoverError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &RoverError{Type: ErrTypeConnectionRefused, Message: "rover refused connection", Err: err, Retryable: true}
	}
	if errors.Is(err, syscall.EHOSTUNREACH) {
		return &RoverError{Type: ErrTypeNetwork, Message: "host unreachable", Err: err, Retryable: true}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err)
	}

	return &RoverError{Type: ErrTypeNetwork, Message: "network error occurred", Err: err, Retryable: true}
}

// NewNetworkError classifies err and replaces the message.
func NewNetworkError(message string, err error) *RoverError {
	e := ClassifyNetworkError(err)
	e.Message = message
	return e
}

// NewHTTPError creates an error for an unexpected status. 5xx is retryable
// except 503, which the rover uses for a scan that cannot run right now.
func NewHTTPError(statusCode int, message string) *RoverError {
	if statusCode == http.StatusServiceUnavailable {
		return &RoverError{Type: ErrTypeUnavailable, Message: message, StatusCode: statusCode}
	}
	return &RoverError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parse error.
func NewParseError(message string, err error) *RoverError {
	return &RoverError{Type: ErrTypeParse, Message: message, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *RoverError {
	return &RoverError{Type: ErrTypeValidation, Message: message}
}

func typeOf(err error) (ErrorType, bool) {
	var re *RoverError
	if errors.As(err, &re) {
		return re.Type, true
	}
	return 0, false
}

// IsNetworkError reports whether err is a transport failure of any kind.
func IsNetworkError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeNetwork || t == ErrTypeTimeout || t == ErrTypeConnectionRefused || t == ErrTypeDNS)
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsRetryable reports whether the request that produced err may be retried.
func IsRetryable(err error) bool {
	var re *RoverError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetTroubleshootingHint returns operator advice for err.
func GetTroubleshootingHint(err error) string {
	var re *RoverError
	if !errors.As(err, &re) {
		return "An unexpected error occurred. Please try again."
	}

	switch re.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The rover did not respond in time.",
			"Troubleshooting:",
			"  • Check that the rover is powered on",
			"  • If it is in setup mode, join its access point first",
			"  • Try a longer --timeout",
		}, "\n")
	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The rover refused the connection.",
			"Troubleshooting:",
			"  • The daemon may be restarting; wait a few seconds",
			"  • Verify the port (default 80)",
		}, "\n")
	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the rover hostname.",
			"Troubleshooting:",
			"  • Use the IP address instead, or run `rover-cfg discover`",
			"  • mDNS may be disabled on the rover",
		}, "\n")
	case ErrTypeUnavailable:
		return "The rover could not complete the request right now. Try again shortly."
	case ErrTypeHTTP:
		return fmt.Sprintf("The rover returned HTTP %d.", re.StatusCode)
	case ErrTypeParse:
		return "The rover's response could not be parsed. Check the firmware version with `rover-cfg show`."
	case ErrTypeValidation:
		return "The values are invalid. Check the error message for details."
	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check that you are on the same network as the rover",
			"  • Verify the rover address",
		}, "\n")
	}
}
