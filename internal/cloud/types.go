package cloud

import "github.com/RocoByte/vorio-agent/internal/model"

// ConnectRequest is the startup handshake payload.
type ConnectRequest struct {
	InstanceID        string                  `json:"instanceId"`
	AgentVersion      string                  `json:"agentVersion"`
	Hostname          string                  `json:"hostname,omitempty"`
	OS                string                  `json:"os,omitempty"`
	Arch              string                  `json:"arch,omitempty"`
	ControllerURL     string                  `json:"controllerUrl"`
	ControllerType    string                  `json:"controllerType"`
	ControllerVersion string                  `json:"controllerVersion"`
	Site              string                  `json:"site"`
	Capabilities      model.AgentCapabilities `json:"capabilities"`
	WLANs             []model.AvailableWLAN   `json:"wlans,omitempty"`
}

// ConnectResponse carries the identifiers the client retains for the process
// lifetime.
type ConnectResponse struct {
	ConnectionID string `json:"connectionId"`
	ProjectID    string `json:"projectId"`
}

type syncRequest struct {
	Vouchers []model.Voucher `json:"vouchers"`
}

type syncResponse struct {
	Synced int `json:"synced"`
}

type commandsResponse struct {
	Commands []model.Command `json:"commands"`
}

type completeRequest struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HeartbeatRequest reports liveness plus the last-known sync outcome.
type HeartbeatRequest struct {
	Status        string `json:"status"` // "ok" or "error"
	VoucherCount  int    `json:"voucherCount"`
	Error         string `json:"error,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds,omitempty"`
	AgentVersion  string `json:"agentVersion,omitempty"`
}
