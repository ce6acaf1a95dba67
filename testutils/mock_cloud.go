package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/RocoByte/vorio-agent/internal/model"
)

// CommandOutcome records how a command was completed.
type CommandOutcome struct {
	Success bool
	Error   string
}

// MockCloud emulates the control plane: connect, sync, command queue with
// ack/complete bookkeeping, and heartbeats.
type MockCloud struct {
	Server *httptest.Server
	URL    string

	mu sync.Mutex

	// Token, when set, is enforced on every request.
	Token string

	// PendingCommands are returned by the next GET /api/agent/commands and
	// then cleared (the cloud re-delivers, the mock does not).
	PendingCommands []model.Command

	// SyncedOverride, when >= 0, is reported instead of the uploaded count.
	SyncedOverride int

	Connected      bool
	LastConnect    map[string]any
	Disconnected   bool
	LastSynced     []model.Voucher
	SyncCalls      int
	Acked          []string
	Completed      map[string]CommandOutcome
	HeartbeatCount int
	LastHeartbeat  map[string]any
}

// NewMockCloud starts the mock control plane.
func NewMockCloud() *MockCloud {
	m := &MockCloud{
		SyncedOverride: -1,
		Completed:      map[string]CommandOutcome{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/agent/connect", m.handleConnect)
	mux.HandleFunc("/api/agent/disconnect", m.handleDisconnect)
	mux.HandleFunc("/api/agent/sync", m.handleSync)
	mux.HandleFunc("/api/agent/commands", m.handleCommands)
	mux.HandleFunc("/api/agent/commands/", m.handleCommandLifecycle)
	mux.HandleFunc("/api/agent/heartbeat", m.handleHeartbeat)

	m.Server = httptest.NewServer(mux)
	m.URL = m.Server.URL
	return m
}

// Close shuts down the mock server.
func (m *MockCloud) Close() {
	m.Server.Close()
}

// Enqueue adds commands for the next poll.
func (m *MockCloud) Enqueue(cmds ...model.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingCommands = append(m.PendingCommands, cmds...)
}

// AckedIDs returns a copy of the acknowledged command IDs.
func (m *MockCloud) AckedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Acked...)
}

// Outcome returns the completion recorded for a command, if any.
func (m *MockCloud) Outcome(id string) (CommandOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.Completed[id]
	return out, ok
}

// Heartbeats returns how many heartbeats were received.
func (m *MockCloud) Heartbeats() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.HeartbeatCount
}

func (m *MockCloud) authorized(r *http.Request) bool {
	m.mu.Lock()
	token := m.Token
	m.mu.Unlock()
	if token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+token
}

func (m *MockCloud) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	m.mu.Lock()
	m.Connected = true
	m.LastConnect = body
	m.mu.Unlock()
	m.writeJSON(w, map[string]string{
		"connectionId": "conn-123",
		"projectId":    "proj-456",
	})
}

func (m *MockCloud) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.Disconnected = true
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (m *MockCloud) handleSync(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	var body struct {
		Vouchers []model.Voucher `json:"vouchers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.LastSynced = body.Vouchers
	m.SyncCalls++
	synced := len(body.Vouchers)
	if m.SyncedOverride >= 0 {
		synced = m.SyncedOverride
	}
	m.mu.Unlock()

	m.writeJSON(w, map[string]int{"synced": synced})
}

func (m *MockCloud) handleCommands(w http.ResponseWriter, r *http.Request) {
	if !m.authorized(r) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	m.mu.Lock()
	cmds := m.PendingCommands
	m.PendingCommands = nil
	m.mu.Unlock()

	if cmds == nil {
		cmds = []model.Command{}
	}
	m.writeJSON(w, map[string]any{"commands": cmds})
}

func (m *MockCloud) handleCommandLifecycle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 {
		http.NotFound(w, r)
		return
	}
	id, action := parts[len(parts)-2], parts[len(parts)-1]

	switch action {
	case "ack":
		m.mu.Lock()
		m.Acked = append(m.Acked, id)
		m.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case "complete":
		var body struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.Completed[id] = CommandOutcome{Success: body.Success, Error: body.Error}
		m.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockCloud) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	m.mu.Lock()
	m.HeartbeatCount++
	m.LastHeartbeat = body
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (m *MockCloud) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
