package model

import "time"

// Voucher statuses reported to the cloud. Controllers may report their own
// status strings; these are the canonical ones derived when they don't.
const (
	StatusValidOne   = "VALID_ONE"
	StatusValidMulti = "VALID_MULTI"
	StatusUsed       = "USED"
	StatusExpired    = "EXPIRED"
)

// Voucher is one hotspot access code in canonical form. Constructed fresh on
// every fetch from raw controller data and never mutated afterwards; each
// sync cycle re-uploads the full snapshot.
type Voucher struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Duration       int    `json:"duration,omitempty"` // minutes, 0 = unlimited
	Quota          int    `json:"quota"`              // max redemptions, 0 = unlimited
	CreateTime     int64  `json:"createTime"`         // unix seconds
	StartTime      int64  `json:"startTime,omitempty"`
	Used           int    `json:"used"`
	Status         string `json:"status"`
	QosRateMaxUp   int    `json:"qosRateMaxUp,omitempty"`   // kbps
	QosRateMaxDown int    `json:"qosRateMaxDown,omitempty"` // kbps
	Note           string `json:"note,omitempty"`
}

// AvailableWLAN describes one wireless network the controller serves.
type AvailableWLAN struct {
	SSID     string `json:"ssid"`
	Name     string `json:"name,omitempty"`
	Enabled  bool   `json:"enabled"`
	Security string `json:"security"` // open|wpa|wpa2|wpa3|raw string
	IsGuest  bool   `json:"isGuest"`
}

// AgentCapabilities declares which optional operations an adapter supports.
// Static for the adapter's lifetime.
type AgentCapabilities struct {
	CanListWLANs      bool `json:"canListWLANs"`
	CanCreateVouchers bool `json:"canCreateVouchers"`
	CanDeleteVouchers bool `json:"canDeleteVouchers"`
}

// ControllerInfo is best-effort controller metadata. Unknown fields default
// to "unknown" rather than failing.
type ControllerInfo struct {
	Version string `json:"version"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
}

// Command types delivered by the cloud control plane.
const (
	CommandSyncNow       = "sync_now"
	CommandDeleteVoucher = "delete_voucher"
	CommandDisconnect    = "disconnect"
)

// Command is a transient work item owned by the cloud: fetched, acknowledged,
// executed at most once per fetch, then completed. The agent never retries a
// command on its own.
type Command struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AgentStatus is the orchestrator's in-memory view of its own health. Never
// persisted; rebuilt from scratch on restart.
type AgentStatus struct {
	Connected    bool      `json:"connected"`
	LastSync     time.Time `json:"lastSync"`
	LastError    string    `json:"lastError,omitempty"`
	VoucherCount int       `json:"voucherCount"`
}
