// Package unifi implements the controller adapter for UniFi-style network
// controllers. It speaks both API surfaces of the same backend: the newer
// stateless integration API (per-request API key) and the legacy session API
// (login cookie + CSRF token), selected at construction time by which
// credentials are configured.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RocoByte/vorio-agent/internal/adapter"
	"github.com/RocoByte/vorio-agent/internal/model"
)

const (
	adapterType = "unifi"

	apiKeyHeader = "X-API-KEY"
	csrfHeader   = "X-Csrf-Token"

	voucherPageLimit = 100

	defaultTimeout = 30 * time.Second
	probeTimeout   = 5 * time.Second
)

// Config carries the already-validated controller connection parameters.
// APIKey and Username/Password are mutually exclusive; a non-empty APIKey
// selects the key-based strategy.
type Config struct {
	ControllerURL      string
	Site               string
	Username           string
	Password           string
	APIKey             string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Adapter talks to one UniFi controller. It exclusively owns the
// authentication/session state (cookies, CSRF token, resolved site).
type Adapter struct {
	cfg     Config
	baseURL string
	host    string
	port    int
	keyMode bool
	caps    model.AgentCapabilities
	log     *logrus.Logger

	httpClient *http.Client

	mu            sync.Mutex
	authenticated bool
	siteID        string
	csrfToken     string
}

// New creates an adapter for the given controller. The returned adapter is
// not authenticated yet; call Login before any stateful operation.
func New(cfg Config, logger *logrus.Logger) (*Adapter, error) {
	base := strings.TrimRight(cfg.ControllerURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid controller URL %q", cfg.ControllerURL)
	}

	port := 443
	if u.Scheme == "http" {
		port = 80
	}
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		IdleConnTimeout: 30 * time.Second,
	}

	site := cfg.Site
	if site == "" {
		site = "default"
	}

	return &Adapter{
		cfg:     cfg,
		baseURL: base,
		host:    u.Hostname(),
		port:    port,
		keyMode: cfg.APIKey != "",
		caps: model.AgentCapabilities{
			CanListWLANs:      true,
			CanCreateVouchers: false,
			CanDeleteVouchers: true,
		},
		log: logger,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       jar,
		},
		siteID: site,
	}, nil
}

// Type returns the static adapter type identifier.
func (a *Adapter) Type() string { return adapterType }

// Capabilities returns the flags declared at construction time.
func (a *Adapter) Capabilities() model.AgentCapabilities { return a.caps }

// IsAuthenticated reports the session-validity flag.
func (a *Adapter) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authenticated
}

// Site returns the site identifier the adapter operates against. In key mode
// this is resolved during Login from the controller's site list.
func (a *Adapter) Site() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.siteID
}

// Login establishes or validates a session. A connectivity probe runs first
// so network failures and credential failures stay distinguishable.
func (a *Adapter) Login(ctx context.Context) error {
	if err := a.probe(ctx); err != nil {
		return err
	}

	if a.keyMode {
		return a.loginWithKey(ctx)
	}
	return a.loginWithSession(ctx)
}

// probe checks basic TCP reachability of the controller endpoint.
func (a *Adapter) probe(ctx context.Context) error {
	d := net.Dialer{Timeout: probeTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(a.host, strconv.Itoa(a.port)))
	if err != nil {
		return &adapter.ConnectionError{
			Host:   a.host,
			Port:   a.port,
			Reason: adapter.ClassifyNetworkError(err),
			Err:    err,
		}
	}
	conn.Close()
	return nil
}

// loginWithKey validates the API key by listing sites and resolves which site
// to operate against. No session object is retained; the key rides on every
// request.
func (a *Adapter) loginWithKey(ctx context.Context) error {
	status, body, err := a.request(ctx, http.MethodGet, "/integration/v1/sites", nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &adapter.AuthenticationError{
			Method:     "api-key",
			StatusCode: status,
			Message:    trimBody(body),
		}
	}
	if status < 200 || status >= 300 {
		return &adapter.ControllerError{Op: "list sites", StatusCode: status, Message: trimBody(body)}
	}

	var page integrationPage[rawSite]
	if err := json.Unmarshal(body, &page); err != nil {
		return &adapter.ControllerError{Op: "list sites", StatusCode: status, Message: "invalid site list response"}
	}
	if len(page.Data) == 0 {
		return &adapter.ControllerError{Op: "list sites", StatusCode: status, Message: "controller returned no sites"}
	}

	site := page.Data[0]
	for _, s := range page.Data {
		if strings.EqualFold(s.Name, a.cfg.Site) || s.ID == a.cfg.Site || s.LegacyID == a.cfg.Site {
			site = s
			break
		}
	}

	a.mu.Lock()
	a.siteID = pickString(site.ID, site.LegacyID)
	a.authenticated = true
	a.mu.Unlock()

	a.log.Infof("unifi: API key validated, operating against site %q", site.Name)
	return nil
}

// loginWithSession submits credentials to the modern auth endpoint and falls
// back to the legacy path only when the modern one is absent (404), so real
// credential failures are not masked as endpoint-not-found.
func (a *Adapter) loginWithSession(ctx context.Context) error {
	creds := map[string]string{
		"username": a.cfg.Username,
		"password": a.cfg.Password,
	}

	status, body, err := a.request(ctx, http.MethodPost, "/api/auth/login", creds)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		a.log.Debugf("unifi: modern auth endpoint missing, trying legacy login path")
		status, body, err = a.request(ctx, http.MethodPost, "/api/login", creds)
		if err != nil {
			return err
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &adapter.AuthenticationError{
			Method:     "session",
			StatusCode: status,
			Message:    trimBody(body),
		}
	case status < 200 || status >= 300:
		return &adapter.ControllerError{Op: "login", StatusCode: status, Message: trimBody(body)}
	}

	a.mu.Lock()
	a.authenticated = true
	a.mu.Unlock()

	a.log.Infof("unifi: session established for %q on site %q", a.cfg.Username, a.Site())
	return nil
}

// Logout clears session state. Best-effort and idempotent: failures are
// logged and swallowed since it runs during shutdown.
//
// The cookie jar is left untouched: the httpClient and its jar are shared
// with in-flight requests on other goroutines, so no field of the client may
// be reassigned after construction. The server-side logout invalidates the
// session cookie; whatever stays in the jar is dead weight until the next
// Login overwrites it.
func (a *Adapter) Logout(ctx context.Context) {
	a.mu.Lock()
	wasAuthenticated := a.authenticated
	a.authenticated = false
	a.csrfToken = ""
	a.mu.Unlock()

	if !wasAuthenticated || a.keyMode {
		return
	}
	if _, _, err := a.request(ctx, http.MethodPost, "/api/logout", nil); err != nil {
		a.log.Warnf("unifi: logout request failed: %v", err)
	}
}

// withReauth runs op and, if it fails with a session-expiry signal, clears
// the authenticated flag, re-runs Login and retries op exactly once. A second
// expiry propagates as the underlying error.
func (a *Adapter) withReauth(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !errors.Is(err, adapter.ErrSessionExpired) {
		return err
	}

	a.log.Infof("unifi: session expired, re-authenticating")
	a.mu.Lock()
	a.authenticated = false
	a.mu.Unlock()

	if lerr := a.Login(ctx); lerr != nil {
		return lerr
	}
	return op()
}

// request issues one HTTP call. Transport-level failures come back as
// *adapter.ConnectionError; the CSRF token is refreshed from every response.
func (a *Adapter) request(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if a.keyMode {
		req.Header.Set(apiKeyHeader, a.cfg.APIKey)
	} else {
		a.mu.Lock()
		if a.csrfToken != "" {
			req.Header.Set(csrfHeader, a.csrfToken)
		}
		a.mu.Unlock()
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, &adapter.ConnectionError{
			Host:   a.host,
			Port:   a.port,
			Reason: adapter.ClassifyNetworkError(err),
			Err:    err,
		}
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(csrfHeader); token != "" {
		a.mu.Lock()
		a.csrfToken = token
		a.mu.Unlock()
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, respBody, nil
}

// doJSON wraps request with the shared status handling for stateful
// operations: 401 becomes the session-expiry sentinel, any other non-2xx
// becomes a *adapter.ControllerError, and 2xx bodies decode into out.
func (a *Adapter) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	status, respBody, err := a.request(ctx, method, path, body)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, adapter.ErrSessionExpired)
	case status < 200 || status >= 300:
		return &adapter.ControllerError{Op: op, StatusCode: status, Message: trimBody(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &adapter.ControllerError{Op: op, StatusCode: status, Message: "invalid response body"}
	}
	return nil
}

func trimBody(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
