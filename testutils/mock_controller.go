package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockController emulates a UniFi-style controller serving both API surfaces:
// the legacy session API and the key-based integration API.
type MockController struct {
	Server *httptest.Server
	URL    string

	mu sync.Mutex

	// Vouchers are the raw records served verbatim by both voucher endpoints.
	Vouchers []map[string]any
	// Sites served by the integration site list.
	Sites []map[string]any
	// Deleted collects voucher IDs removed via either surface.
	Deleted []string

	// LoginCount counts successful authentications (either surface).
	LoginCount int
	// RejectLogins makes every authentication attempt fail with 401.
	RejectLogins bool
	// ModernLoginMissing makes POST /api/auth/login return 404 so clients
	// fall back to the legacy login path.
	ModernLoginMissing bool
	// ExpiredResponses makes the next N stateful requests fail with 401.
	ExpiredResponses int
	// FailWLANs makes every WLAN endpoint return 500.
	FailWLANs bool
	// FailInfo makes the metadata endpoints return 500.
	FailInfo bool

	// WLANs served by the wlanconf endpoints.
	WLANs []map[string]any
	// PageLimit caps integration voucher pages (0 = respect the query limit).
	PageLimit int
}

// NewMockController starts the mock with one default site.
func NewMockController() *MockController {
	m := &MockController{
		Sites: []map[string]any{
			{"id": "site-1", "name": "default"},
			{"id": "site-2", "name": "branch"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", m.handleModernLogin)
	mux.HandleFunc("/api/login", m.handleLegacyLogin)
	mux.HandleFunc("/api/logout", func(w http.ResponseWriter, r *http.Request) {
		m.writeLegacy(w, nil)
	})
	mux.HandleFunc("/integration/v1/sites", m.handleIntegrationSites)
	mux.HandleFunc("/integration/v1/sites/", m.handleIntegrationVouchers)
	mux.HandleFunc("/integration/v1/info", m.handleIntegrationInfo)
	mux.HandleFunc("/proxy/network/api/s/", m.handleLegacyAPI)
	mux.HandleFunc("/api/s/", m.handleLegacyAPI)

	m.Server = httptest.NewServer(mux)
	m.URL = m.Server.URL
	return m
}

// Close shuts down the mock server.
func (m *MockController) Close() {
	m.Server.Close()
}

// DeletedIDs returns a copy of the voucher IDs deleted so far.
func (m *MockController) DeletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Deleted...)
}

// Logins returns the successful authentication count.
func (m *MockController) Logins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LoginCount
}

func (m *MockController) handleModernLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.mu.Lock()
	missing := m.ModernLoginMissing
	m.mu.Unlock()
	if missing {
		http.NotFound(w, r)
		return
	}
	m.login(w)
}

func (m *MockController) handleLegacyLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m.login(w)
}

func (m *MockController) login(w http.ResponseWriter) {
	m.mu.Lock()
	reject := m.RejectLogins
	if !reject {
		m.LoginCount++
	}
	m.mu.Unlock()

	if reject {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "unifises", Value: "mock-session-token", Path: "/"})
	w.Header().Set("X-Csrf-Token", "mock-csrf-token")
	m.writeLegacy(w, nil)
}

// consumeExpiry reports whether this request should be failed with 401.
func (m *MockController) consumeExpiry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExpiredResponses > 0 {
		m.ExpiredResponses--
		return true
	}
	return false
}

func (m *MockController) handleIntegrationSites(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	reject := m.RejectLogins
	sites := m.Sites
	if !reject {
		m.LoginCount++
	}
	m.mu.Unlock()

	if reject {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		return
	}
	m.writePage(w, sites, len(sites))
}

func (m *MockController) handleIntegrationInfo(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	fail := m.FailInfo
	m.mu.Unlock()
	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	m.writeJSON(w, map[string]any{"applicationVersion": "9.0.108", "hostname": "mock-console"})
}

// handleIntegrationVouchers serves list and delete under
// /integration/v1/sites/{site}/hotspot/vouchers[/{id}].
func (m *MockController) handleIntegrationVouchers(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.URL.Path, "/hotspot/vouchers") {
		http.NotFound(w, r)
		return
	}
	if m.consumeExpiry() {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if r.Method == http.MethodDelete {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		id := parts[len(parts)-1]
		m.deleteVoucher(w, id)
		return
	}

	m.mu.Lock()
	vouchers := m.Vouchers
	limit := m.PageLimit
	m.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		offset = atoi(v)
	}

	end := offset + limit
	if end > len(vouchers) {
		end = len(vouchers)
	}
	page := []map[string]any{}
	if offset < len(vouchers) {
		page = vouchers[offset:end]
	}
	m.writePage(w, page, len(vouchers))
}

// handleLegacyAPI serves the session-based endpoints under /api/s/{site}/...
// and the same paths behind the /proxy/network prefix.
func (m *MockController) handleLegacyAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/proxy/network")

	switch {
	case strings.Contains(path, "/stat/voucher"):
		if m.consumeExpiry() {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		m.mu.Lock()
		vouchers := m.Vouchers
		m.mu.Unlock()
		m.writeLegacy(w, vouchers)

	case strings.Contains(path, "/cmd/hotspot"):
		if m.consumeExpiry() {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		var body struct {
			Cmd string `json:"cmd"`
			ID  string `json:"_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Cmd != "delete-voucher" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		m.deleteVoucher(w, body.ID)

	case strings.Contains(path, "/rest/wlanconf"):
		m.mu.Lock()
		fail := m.FailWLANs
		wlans := m.WLANs
		m.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		m.writeLegacy(w, wlans)

	case strings.Contains(path, "/stat/sysinfo"):
		m.mu.Lock()
		fail := m.FailInfo
		m.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		m.writeLegacy(w, []map[string]any{{"version": "7.5.176", "name": "mock-controller"}})

	default:
		http.NotFound(w, r)
	}
}

func (m *MockController) deleteVoucher(w http.ResponseWriter, id string) {
	m.mu.Lock()
	found := false
	kept := m.Vouchers[:0]
	for _, v := range m.Vouchers {
		vid, _ := v["id"].(string)
		if vid == "" {
			vid, _ = v["_id"].(string)
		}
		if vid == id {
			found = true
			continue
		}
		kept = append(kept, v)
	}
	m.Vouchers = kept
	if found {
		m.Deleted = append(m.Deleted, id)
	}
	m.mu.Unlock()

	if !found {
		http.Error(w, `{"error":"voucher not found"}`, http.StatusNotFound)
		return
	}
	m.writeLegacy(w, nil)
}

func (m *MockController) writePage(w http.ResponseWriter, data []map[string]any, total int) {
	if data == nil {
		data = []map[string]any{}
	}
	m.writeJSON(w, map[string]any{
		"offset":     0,
		"limit":      len(data),
		"count":      len(data),
		"totalCount": total,
		"data":       data,
	})
}

func (m *MockController) writeLegacy(w http.ResponseWriter, data any) {
	if data == nil {
		data = []map[string]any{}
	}
	m.writeJSON(w, map[string]any{
		"meta": map[string]any{"rc": "ok"},
		"data": data,
	})
}

func (m *MockController) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
