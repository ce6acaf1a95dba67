package unifi

import (
	"time"

	"github.com/RocoByte/vorio-agent/internal/model"
)

// mapVoucher converts one raw controller record to the canonical shape. The
// same backend can deliver either field-naming convention (or, mid-upgrade,
// both); the modern field wins whenever both are present. Missing fields get
// safe defaults: unknown create time is now, unknown quota is 1, unknown
// status is derived from used/quota.
func mapVoucher(raw rawVoucher, now time.Time) model.Voucher {
	v := model.Voucher{
		ID:             pickString(raw.ID, raw.LegacyID),
		Code:           raw.Code,
		Duration:       pickInt(raw.TimeLimitMinutes, raw.Duration, 0),
		Quota:          pickInt(raw.AuthorizedGuestLimit, raw.Quota, 1),
		Used:           pickInt(raw.AuthorizedGuestCount, raw.Used, 0),
		QosRateMaxUp:   pickInt(raw.TxRateLimitKbps, raw.QosRateMaxUp, 0),
		QosRateMaxDown: pickInt(raw.RxRateLimitKbps, raw.QosRateMaxDown, 0),
		Note:           pickString(raw.Name, raw.Note),
	}

	v.CreateTime = pickTime(raw.CreatedAt, raw.CreateTime, now.Unix())
	v.StartTime = pickTime(raw.ActivatedAt, raw.StartTime, 0)

	switch {
	case raw.Expired != nil && *raw.Expired:
		// An explicit expired flag is authoritative over everything else.
		v.Status = model.StatusExpired
	case raw.Status != "":
		v.Status = raw.Status
	default:
		v.Status = deriveStatus(v.Quota, v.Used)
	}

	return v
}

// deriveStatus infers a canonical status when the controller reports none.
func deriveStatus(quota, used int) string {
	if quota == 1 {
		if used >= 1 {
			return model.StatusUsed
		}
		return model.StatusValidOne
	}
	return model.StatusValidMulti
}

// mapWLAN normalizes one wireless network record. Legacy wlanconf entries
// carry the SSID in "name"; the newer shape has a dedicated "ssid" field.
func mapWLAN(raw rawWLAN) model.AvailableWLAN {
	w := model.AvailableWLAN{
		SSID:     raw.SSID,
		Enabled:  raw.Enabled,
		Security: normalizeSecurity(raw),
		IsGuest:  raw.IsGuest,
	}
	if w.SSID == "" {
		w.SSID = raw.Name
	} else {
		w.Name = raw.Name
	}
	return w
}

func normalizeSecurity(raw rawWLAN) string {
	switch raw.Security {
	case "", "open":
		return "open"
	case "wpa3":
		return "wpa3"
	case "wpapsk", "wpaeap", "wpa", "wpa2":
		if raw.WPA3Support {
			return "wpa3"
		}
		if raw.WPAMode == "wpa" {
			return "wpa"
		}
		return "wpa2"
	default:
		return raw.Security
	}
}

func pickString(modern, legacy string) string {
	if modern != "" {
		return modern
	}
	return legacy
}

func pickInt(modern, legacy *int, def int) int {
	if modern != nil {
		return *modern
	}
	if legacy != nil {
		return *legacy
	}
	return def
}

// pickTime resolves a timestamp preferring the modern RFC 3339 string over
// the legacy unix-seconds field.
func pickTime(modern string, legacy *int64, def int64) int64 {
	if modern != "" {
		if t, err := time.Parse(time.RFC3339, modern); err == nil {
			return t.Unix()
		}
	}
	if legacy != nil {
		return *legacy
	}
	return def
}
