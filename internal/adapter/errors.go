package adapter

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// NetworkReason classifies why a controller endpoint was unreachable.
type NetworkReason string

const (
	ReasonRefused NetworkReason = "refused"
	ReasonTimeout NetworkReason = "timeout"
	ReasonDNS     NetworkReason = "dns-not-found"
	ReasonTLS     NetworkReason = "tls"
	ReasonUnknown NetworkReason = "unknown"
)

// ErrSessionExpired marks an authorization-expired signal (HTTP 401) received
// on an operation that previously succeeded under the same credentials. The
// re-auth retry wrapper keys off this sentinel via errors.Is.
var ErrSessionExpired = errors.New("controller session expired")

// ConnectionError means the controller endpoint could not be reached at all.
type ConnectionError struct {
	Host   string
	Port   int
	Reason NetworkReason
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("controller unreachable at %s:%d (%s): %v", e.Host, e.Port, e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError means the controller was reachable but rejected the
// credentials (401) or the account lacks privileges (403).
type AuthenticationError struct {
	Method     string // auth method attempted: "api-key" or "session"
	StatusCode int
	Message    string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("controller authentication failed (%s, status %d): %s", e.Method, e.StatusCode, e.Message)
}

// ControllerError means the controller accepted the request but reported an
// application-level failure (delete target invalid, malformed response, ...).
type ControllerError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller error in %s (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// ClassifyNetworkError maps a transport-level error onto a NetworkReason.
func ClassifyNetworkError(err error) NetworkReason {
	if err == nil {
		return ReasonUnknown
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var certErr *x509.CertificateInvalidError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &hostErr) {
		return ReasonTLS
	}
	// tls.RecordHeaderError and friends don't share a common type across Go
	// versions, so fall back to message sniffing for the handshake layer.
	if strings.Contains(err.Error(), "tls:") || strings.Contains(err.Error(), "x509:") {
		return ReasonTLS
	}

	return ReasonUnknown
}
