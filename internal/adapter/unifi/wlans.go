package unifi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/RocoByte/vorio-agent/internal/model"
)

// GetAvailableWLANs fetches and normalizes the controller's wireless
// networks. WLAN listing is advisory: any failure is logged and an empty list
// returned instead.
func (a *Adapter) GetAvailableWLANs(ctx context.Context) []model.AvailableWLAN {
	var raws []rawWLAN
	err := a.withReauth(ctx, func() error {
		var err error
		raws, err = a.fetchRawWLANs(ctx)
		return err
	})
	if err != nil {
		a.log.Warnf("unifi: failed to list WLANs: %v", err)
		return []model.AvailableWLAN{}
	}

	wlans := make([]model.AvailableWLAN, 0, len(raws))
	for _, raw := range raws {
		wlans = append(wlans, mapWLAN(raw))
	}
	return wlans
}

func (a *Adapter) fetchRawWLANs(ctx context.Context) ([]rawWLAN, error) {
	path := fmt.Sprintf("/api/s/%s/rest/wlanconf", url.PathEscape(a.Site()))

	var env legacyEnvelope[rawWLAN]
	if a.keyMode {
		// The integration API has no WLAN surface; the console proxies the
		// network application instead. Try the proxy path, then the direct one.
		if err := a.doJSON(ctx, "list wlans", http.MethodGet, "/proxy/network"+path, nil, &env); err == nil {
			return env.Data, nil
		}
	}
	if err := a.doJSON(ctx, "list wlans", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetControllerInfo fetches best-effort controller metadata. This is
// non-critical telemetry: any failure yields a default "unknown" record.
func (a *Adapter) GetControllerInfo(ctx context.Context) model.ControllerInfo {
	info := model.ControllerInfo{Version: "unknown", Type: adapterType}

	if a.keyMode {
		var out integrationInfo
		if err := a.doJSON(ctx, "controller info", http.MethodGet, "/integration/v1/info", nil, &out); err != nil {
			a.log.Warnf("unifi: failed to fetch controller info: %v", err)
			return info
		}
		if out.ApplicationVersion != "" {
			info.Version = out.ApplicationVersion
		}
		info.Name = out.Hostname
		return info
	}

	path := fmt.Sprintf("/api/s/%s/stat/sysinfo", url.PathEscape(a.Site()))
	var env legacyEnvelope[legacySysinfo]
	if err := a.doJSON(ctx, "controller info", http.MethodGet, path, nil, &env); err != nil || len(env.Data) == 0 {
		a.log.Warnf("unifi: failed to fetch controller info: %v", err)
		return info
	}
	if env.Data[0].Version != "" {
		info.Version = env.Data[0].Version
	}
	info.Name = env.Data[0].Name
	return info
}
