package unifi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/RocoByte/vorio-agent/internal/adapter"
	"github.com/RocoByte/vorio-agent/internal/model"
)

// GetVouchers fetches the full raw voucher list (paginating on the
// integration API) and maps every record to the canonical shape. The result
// is a fresh snapshot; nothing is cached across calls.
func (a *Adapter) GetVouchers(ctx context.Context) ([]model.Voucher, error) {
	var raws []rawVoucher
	err := a.withReauth(ctx, func() error {
		var err error
		raws, err = a.fetchRawVouchers(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	vouchers := make([]model.Voucher, 0, len(raws))
	for _, raw := range raws {
		vouchers = append(vouchers, mapVoucher(raw, now))
	}

	a.log.Debugf("unifi: fetched %d vouchers", len(vouchers))
	return vouchers, nil
}

func (a *Adapter) fetchRawVouchers(ctx context.Context) ([]rawVoucher, error) {
	if a.keyMode {
		return a.fetchVouchersPaged(ctx)
	}

	var env legacyEnvelope[rawVoucher]
	path := fmt.Sprintf("/api/s/%s/stat/voucher", url.PathEscape(a.Site()))
	if err := a.doJSON(ctx, "list vouchers", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Meta.RC != "" && env.Meta.RC != "ok" {
		return nil, &adapter.ControllerError{Op: "list vouchers", StatusCode: http.StatusOK, Message: env.Meta.Message}
	}
	return env.Data, nil
}

// fetchVouchersPaged walks the integration API with an increasing offset
// until the returned count is exhausted or the server-reported total is
// reached.
func (a *Adapter) fetchVouchersPaged(ctx context.Context) ([]rawVoucher, error) {
	var all []rawVoucher
	offset := 0

	for {
		path := fmt.Sprintf("/integration/v1/sites/%s/hotspot/vouchers?offset=%d&limit=%d",
			url.PathEscape(a.Site()), offset, voucherPageLimit)

		var page integrationPage[rawVoucher]
		if err := a.doJSON(ctx, "list vouchers", http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		if len(page.Data) == 0 {
			break
		}

		all = append(all, page.Data...)
		offset += len(page.Data)

		if page.TotalCount > 0 {
			if offset >= page.TotalCount {
				break
			}
			continue
		}
		if len(page.Data) < voucherPageLimit {
			break
		}
	}

	return all, nil
}

// DeleteVoucher removes one voucher by its controller-assigned ID. The
// backend reporting failure (not found, permission denied) surfaces as a
// *adapter.ControllerError carrying the backend's message.
func (a *Adapter) DeleteVoucher(ctx context.Context, voucherID string) error {
	return a.withReauth(ctx, func() error {
		if a.keyMode {
			path := fmt.Sprintf("/integration/v1/sites/%s/hotspot/vouchers/%s",
				url.PathEscape(a.Site()), url.PathEscape(voucherID))
			return a.doJSON(ctx, "delete voucher", http.MethodDelete, path, nil, nil)
		}

		path := fmt.Sprintf("/api/s/%s/cmd/hotspot", url.PathEscape(a.Site()))
		body := map[string]string{"cmd": "delete-voucher", "_id": voucherID}

		var env legacyEnvelope[map[string]any]
		if err := a.doJSON(ctx, "delete voucher", http.MethodPost, path, body, &env); err != nil {
			return err
		}
		if env.Meta.RC != "" && env.Meta.RC != "ok" {
			return &adapter.ControllerError{Op: "delete voucher", StatusCode: http.StatusOK, Message: env.Meta.Message}
		}
		return nil
	})
}
