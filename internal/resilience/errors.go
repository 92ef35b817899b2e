package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Temporary marks an error as safe to retry, carrying the HTTP status that
// triggered it when one exists.
type Temporary struct {
	Err    error
	Status int
}

func (e *Temporary) Error() string { return e.Err.Error() }
func (e *Temporary) Unwrap() error { return e.Err }

// MarkTemporary wraps err as retryable.
func MarkTemporary(err error, status int) *Temporary {
	return &Temporary{Err: err, Status: status}
}

// Transient reports whether the error chain looks retryable: an explicit
// Temporary marker, a network timeout, a dropped connection, or one of the
// usual transport failure strings that HTTP clients wrap beyond recognition.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var tmp *Temporary
	if errors.As(err, &tmp) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// RetryableStatus reports whether an HTTP status is worth a retry.
func RetryableStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
