package agent

import (
	"context"
	"errors"
	"time"

	"github.com/RocoByte/vorio-agent/internal/cloud"
	"github.com/RocoByte/vorio-agent/internal/util"
)

// syncLoop runs one full sync per tick, then a heartbeat. Loop errors are
// contained here: they update local status and are reported via an
// error-status heartbeat, but never stop the loop.
func (s *Service) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	bo := util.NewBackoff(time.Second, s.syncInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.running() {
			return
		}

		if err := s.runSyncCycle(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.Next()):
			}
		} else {
			bo.Reset()
		}
	}
}

// runSyncCycle performs one full sync and reports the outcome upstream. On
// failure it attempts a best-effort error heartbeat so the cloud learns about
// the failure even though the sync did not complete.
func (s *Service) runSyncCycle(ctx context.Context) error {
	err := s.performSync(ctx)
	if err != nil {
		s.log.Errorf("sync cycle failed: %v", err)
		s.mu.Lock()
		s.status.LastError = err.Error()
		count := s.status.VoucherCount
		s.mu.Unlock()

		hb := cloud.HeartbeatRequest{
			Status:        "error",
			VoucherCount:  count,
			Error:         err.Error(),
			UptimeSeconds: s.uptime(),
			AgentVersion:  s.version,
		}
		if hbErr := s.cloud.Heartbeat(ctx, hb); hbErr != nil {
			s.log.Warnf("error heartbeat failed: %v", hbErr)
		}
		return err
	}

	s.mu.Lock()
	count := s.status.VoucherCount
	s.mu.Unlock()

	hb := cloud.HeartbeatRequest{
		Status:        "ok",
		VoucherCount:  count,
		UptimeSeconds: s.uptime(),
		AgentVersion:  s.version,
	}
	if hbErr := s.cloud.Heartbeat(ctx, hb); hbErr != nil {
		s.log.Warnf("heartbeat failed: %v", hbErr)
	}
	return nil
}

// performSync uploads a fresh full voucher snapshot and records the outcome.
// The server's synced count is authoritative over the local count. A partial
// upload (cloud.SyncError) is recorded as the last error but does not fail
// the sync: the accepted subset is live on the cloud side.
func (s *Service) performSync(ctx context.Context) error {
	vouchers, err := s.adapter.GetVouchers(ctx)
	if err != nil {
		return err
	}

	synced, err := s.cloud.SyncVouchers(ctx, vouchers)
	var partial *cloud.SyncError
	if err != nil && !errors.As(err, &partial) {
		return err
	}

	s.mu.Lock()
	s.status.Connected = true
	s.status.LastSync = time.Now()
	s.status.VoucherCount = synced
	if partial != nil {
		s.status.LastError = partial.Error()
	} else {
		s.status.LastError = ""
	}
	s.mu.Unlock()

	if partial != nil {
		s.log.Warnf("voucher sync partially completed: %d of %d accepted", partial.Synced, partial.Attempted)
	} else {
		s.log.Debugf("synced %d vouchers", synced)
	}
	return nil
}
