// Package adapter defines the contract a controller backend must satisfy and
// the error taxonomy shared by all implementations. The orchestrator depends
// only on this interface, never on a concrete backend.
package adapter

import (
	"context"

	"github.com/RocoByte/vorio-agent/internal/model"
)

// Adapter is the capability-polymorphic contract for controller backends.
//
// Implementations own their authentication/session state exclusively. Any
// stateful operation (GetVouchers, DeleteVoucher, GetAvailableWLANs) must
// recover transparently from an expired session: clear the authenticated
// flag, re-run Login once, retry the operation once, then propagate.
type Adapter interface {
	// Login establishes or validates a session. It probes basic reachability
	// first so that network failures (*ConnectionError) and credential
	// failures (*AuthenticationError) stay distinguishable.
	Login(ctx context.Context) error

	// Logout is best-effort and idempotent. It never returns an error; it is
	// called during shutdown where failures are not actionable.
	Logout(ctx context.Context)

	// IsAuthenticated reports the session-validity flag without any I/O.
	IsAuthenticated() bool

	// Type returns the static adapter type identifier.
	Type() string

	// Site returns the site identifier the adapter operates against. Backends
	// may resolve this during Login (falling back to a site the controller
	// actually has), so it is only authoritative after a successful Login.
	Site() string

	// Capabilities returns the statically declared capability flags.
	Capabilities() model.AgentCapabilities

	// GetControllerInfo fetches controller metadata. Non-critical: on failure
	// it returns a record with "unknown" fields instead of an error.
	GetControllerInfo(ctx context.Context) model.ControllerInfo

	// GetAvailableWLANs fetches and normalizes the wireless networks. WLAN
	// listing is advisory: on any failure it logs a warning and returns an
	// empty list.
	GetAvailableWLANs(ctx context.Context) []model.AvailableWLAN

	// GetVouchers fetches all vouchers (paginating if the backend paginates)
	// and maps each raw record to the canonical shape.
	GetVouchers(ctx context.Context) ([]model.Voucher, error)

	// DeleteVoucher removes one voucher by its controller-assigned ID. It
	// returns a *ControllerError when the backend reports failure.
	DeleteVoucher(ctx context.Context, voucherID string) error
}
