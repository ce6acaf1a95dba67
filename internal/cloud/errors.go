package cloud

import "fmt"

// ErrorKind classifies a control-plane failure for the orchestrator's
// retry/backoff decisions.
type ErrorKind string

const (
	// KindCredentialInvalid (HTTP 401) is fatal for continued cloud
	// communication: the bearer token is static and cannot be refreshed.
	KindCredentialInvalid ErrorKind = "credential-invalid"
	KindPermissionDenied  ErrorKind = "permission-denied"
	// KindNotFound (HTTP 404) usually means an endpoint/version mismatch.
	KindNotFound ErrorKind = "not-found"
	// KindRateLimited (HTTP 429): the client does not auto-retry; backing
	// off is the caller's job.
	KindRateLimited ErrorKind = "rate-limited"
	KindServer      ErrorKind = "server-error"
	// KindConnection means no response was received at all.
	KindConnection ErrorKind = "connection-error"
)

// APIError is a classified control-plane failure.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("cloud %s (%s, status %d): %s", e.Endpoint, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cloud %s (%s): %s", e.Endpoint, e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// SyncError signals a partially completed voucher upload: the server accepted
// fewer records than were attempted.
type SyncError struct {
	Attempted int
	Synced    int
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("voucher sync partially completed: %d of %d accepted", e.Synced, e.Attempted)
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401:
		return KindCredentialInvalid
	case status == 403:
		return KindPermissionDenied
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	default:
		return KindServer
	}
}
