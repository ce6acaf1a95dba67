package unifi

// Raw wire shapes for the two UniFi API surfaces. The integration (key-based)
// API and the legacy (session-based) API name the same voucher fields
// differently; rawVoucher carries both conventions so a single mapping pass
// can prefer the modern one.

type rawVoucher struct {
	// identity
	ID       string `json:"id"`
	LegacyID string `json:"_id"`
	Code     string `json:"code"`

	// validity window
	TimeLimitMinutes *int   `json:"timeLimitMinutes"`
	Duration         *int   `json:"duration"`
	CreatedAt        string `json:"createdAt"`
	CreateTime       *int64 `json:"create_time"`
	ActivatedAt      string `json:"activatedAt"`
	StartTime        *int64 `json:"start_time"`

	// redemptions
	AuthorizedGuestLimit *int `json:"authorizedGuestLimit"`
	Quota                *int `json:"quota"`
	AuthorizedGuestCount *int `json:"authorizedGuestCount"`
	Used                 *int `json:"used"`

	// state
	Status  string `json:"status"`
	Expired *bool  `json:"expired"`

	// rate limits (kbps)
	TxRateLimitKbps *int `json:"txRateLimitKbps"`
	QosRateMaxUp    *int `json:"qos_rate_max_up"`
	RxRateLimitKbps *int `json:"rxRateLimitKbps"`
	QosRateMaxDown  *int `json:"qos_rate_max_down"`

	// annotation
	Name string `json:"name"`
	Note string `json:"note"`
}

type rawWLAN struct {
	SSID        string `json:"ssid"`
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Security    string `json:"security"`
	WPAMode     string `json:"wpa_mode"`
	WPA3Support bool   `json:"wpa3_support"`
	IsGuest     bool   `json:"is_guest"`
}

type rawSite struct {
	ID          string `json:"id"`
	LegacyID    string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"desc"`
}

// integrationPage is the envelope the integration API wraps list results in.
type integrationPage[T any] struct {
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	Count      int `json:"count"`
	TotalCount int `json:"totalCount"`
	Data       []T `json:"data"`
}

// legacyEnvelope is the {meta, data} wrapper of the legacy API.
type legacyEnvelope[T any] struct {
	Meta struct {
		RC      string `json:"rc"`
		Message string `json:"msg"`
	} `json:"meta"`
	Data []T `json:"data"`
}

type legacySysinfo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
}

type integrationInfo struct {
	ApplicationVersion string `json:"applicationVersion"`
	Hostname           string `json:"hostname"`
}
