package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/RocoByte/vorio-agent/internal/model"
	"github.com/RocoByte/vorio-agent/internal/util"
)

// commandLoop polls the cloud for pending commands at the fast cadence.
func (s *Service) commandLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	bo := util.NewBackoff(time.Second, s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !s.running() {
			return
		}

		if err := s.processCommands(ctx); err != nil {
			s.log.Warnf("command poll failed: %v", err)
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

// processCommands handles one poll: fetch, then per command acknowledge ->
// dispatch -> complete. A failing command is completed with success=false and
// never prevents the rest of the batch from being processed.
func (s *Service) processCommands(ctx context.Context) error {
	cmds, err := s.cloud.GetCommands(ctx)
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		if err := s.cloud.AcknowledgeCommand(ctx, cmd.ID); err != nil {
			s.log.Warnf("failed to acknowledge command %s: %v", cmd.ID, err)
			continue
		}

		stopping, dispatchErr := s.dispatch(ctx, cmd)
		if stopping {
			// The agent is tearing down; there is no point reporting
			// completion back over a connection about to close.
			return nil
		}

		if dispatchErr != nil {
			s.log.Warnf("command %s (%s) failed: %v", cmd.ID, cmd.Type, dispatchErr)
			if err := s.cloud.CompleteCommand(ctx, cmd.ID, false, dispatchErr.Error()); err != nil {
				s.log.Warnf("failed to complete command %s: %v", cmd.ID, err)
			}
			continue
		}

		if err := s.cloud.CompleteCommand(ctx, cmd.ID, true, ""); err != nil {
			s.log.Warnf("failed to complete command %s: %v", cmd.ID, err)
		}
	}

	return nil
}

// dispatch executes one command by type. Unrecognized types are a no-op with
// a warning; they still get completed so no command is left unconfirmed.
func (s *Service) dispatch(ctx context.Context, cmd model.Command) (stopping bool, err error) {
	s.log.Infof("executing command %s (%s)", cmd.ID, cmd.Type)

	switch cmd.Type {
	case model.CommandSyncNow:
		return false, s.performSync(ctx)
	case model.CommandDeleteVoucher:
		return false, s.deleteVoucher(ctx, cmd)
	case model.CommandDisconnect:
		s.log.Infof("disconnect command received, stopping agent")
		s.Stop()
		return true, nil
	default:
		s.log.Warnf("ignoring unrecognized command type %q (id %s)", cmd.Type, cmd.ID)
		return false, nil
	}
}

// deleteVoucher resolves the target by voucherId when present, otherwise by
// looking up voucherCode in a freshly fetched voucher list. No match on a
// code is a warning, not a failure.
func (s *Service) deleteVoucher(ctx context.Context, cmd model.Command) error {
	id, _ := cmd.Payload["voucherId"].(string)
	if id == "" {
		code, _ := cmd.Payload["voucherCode"].(string)
		if code == "" {
			return fmt.Errorf("delete_voucher command %s carries neither voucherId nor voucherCode", cmd.ID)
		}

		vouchers, err := s.adapter.GetVouchers(ctx)
		if err != nil {
			return err
		}
		for _, v := range vouchers {
			if v.Code == code {
				id = v.ID
				break
			}
		}
		if id == "" {
			s.log.Warnf("no voucher with code %q found, nothing to delete", code)
			return nil
		}
	}

	return s.adapter.DeleteVoucher(ctx, id)
}
