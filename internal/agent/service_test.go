package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/RocoByte/vorio-agent/internal/cloud"
	"github.com/RocoByte/vorio-agent/internal/model"
	"github.com/RocoByte/vorio-agent/testutils"
)

// fakeAdapter is an in-memory controller adapter for orchestrator tests.
type fakeAdapter struct {
	mu sync.Mutex

	vouchers []model.Voucher
	loginErr error
	fetchErr error

	authenticated bool
	deleted       []string
	deleteErr     error
}

func (f *fakeAdapter) Login(ctx context.Context) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.mu.Lock()
	f.authenticated = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Logout(ctx context.Context) {
	f.mu.Lock()
	f.authenticated = false
	f.mu.Unlock()
}

func (f *fakeAdapter) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeAdapter) Type() string { return "fake" }

func (f *fakeAdapter) Site() string { return "resolved-site" }

func (f *fakeAdapter) Capabilities() model.AgentCapabilities {
	return model.AgentCapabilities{CanListWLANs: true, CanDeleteVouchers: true}
}

func (f *fakeAdapter) GetControllerInfo(ctx context.Context) model.ControllerInfo {
	return model.ControllerInfo{Version: "1.0", Type: "fake"}
}

func (f *fakeAdapter) GetAvailableWLANs(ctx context.Context) []model.AvailableWLAN {
	return []model.AvailableWLAN{{SSID: "Guest", Enabled: true, Security: "wpa2", IsGuest: true}}
}

func (f *fakeAdapter) GetVouchers(ctx context.Context) ([]model.Voucher, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Voucher(nil), f.vouchers...), nil
}

func (f *fakeAdapter) DeleteVoucher(ctx context.Context, voucherID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, voucherID)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestService(fa *fakeAdapter, mock *testutils.MockCloud) *Service {
	logger := quietLogger()
	client := cloud.New(cloud.Options{BaseURL: mock.URL, Token: "tok", Logger: logger})
	return New(Options{
		Adapter:       fa,
		Cloud:         client,
		Logger:        logger,
		ControllerURL: "https://192.168.1.1",
		Version:       "test",
	})
}

func TestStartAndStop(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{vouchers: []model.Voucher{
		{ID: "v1", Code: "11111", Quota: 1, Used: 1, Status: model.StatusUsed},
		{ID: "v2", Code: "22222", Quota: 1, Used: 0, Status: model.StatusValidOne},
	}}
	svc := newTestService(fa, mock)

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if svc.State() != StateRunning {
		t.Errorf("expected running state, got %s", svc.State())
	}
	if !mock.Connected {
		t.Error("startup must register with the cloud")
	}
	if got := mock.LastConnect["site"]; got != "resolved-site" {
		t.Errorf("connect must report the site the adapter resolved, got %v", got)
	}
	if mock.SyncCalls != 1 {
		t.Errorf("expected one baseline sync, got %d", mock.SyncCalls)
	}

	status := svc.Status()
	if !status.Connected || status.VoucherCount != 2 || status.LastError != "" {
		t.Errorf("unexpected status after startup: %+v", status)
	}
	if status.LastSync.IsZero() {
		t.Error("baseline sync must set the last sync time")
	}

	svc.Stop()
	if svc.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", svc.State())
	}
	if !mock.Disconnected {
		t.Error("stop must send the disconnect notice")
	}
	if fa.IsAuthenticated() {
		t.Error("stop must log out of the controller")
	}
}

func TestStartFailsOnLoginError(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{loginErr: errors.New("bad credentials")}
	svc := newTestService(fa, mock)

	err := svc.Start(context.Background())
	if err == nil {
		t.Fatal("Start should fail when the controller login fails")
	}
	if svc.State() != StateStopped {
		t.Errorf("failed startup must land back in stopped, got %s", svc.State())
	}
	if mock.Connected {
		t.Error("cloud connect must not happen after a failed login")
	}
	if status := svc.Status(); status.LastError == "" || status.Connected {
		t.Errorf("failed startup must be recorded in status: %+v", status)
	}
}

func TestStartFailsOnCloudRejection(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()
	mock.Token = "a-different-token"

	fa := &fakeAdapter{}
	svc := newTestService(fa, mock)

	err := svc.Start(context.Background())
	if err == nil {
		t.Fatal("Start should fail when the cloud rejects the credential")
	}
	var apiErr *cloud.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != cloud.KindCredentialInvalid {
		t.Errorf("expected a credential-invalid failure, got %v", err)
	}
	if svc.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", svc.State())
	}
}

func TestStartRejectsDoubleStart(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	svc := newTestService(&fakeAdapter{}, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	if err := svc.Start(context.Background()); err == nil {
		t.Error("second Start must be rejected while running")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	svc := newTestService(&fakeAdapter{}, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	svc.Stop()
	svc.Stop() // second call is a no-op
	if svc.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", svc.State())
	}
}

func TestCommandBatchIsolation(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{vouchers: []model.Voucher{{ID: "v1", Code: "11111"}}}
	svc := newTestService(fa, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	mock.Enqueue(
		model.Command{ID: "c1", Type: model.CommandSyncNow},
		model.Command{ID: "c2", Type: model.CommandDeleteVoucher}, // no payload: fails
		model.Command{ID: "c3", Type: model.CommandSyncNow},
	)

	if err := svc.processCommands(context.Background()); err != nil {
		t.Fatalf("processCommands failed: %v", err)
	}

	if acked := mock.AckedIDs(); len(acked) != 3 {
		t.Fatalf("every fetched command must be acknowledged, got %v", acked)
	}

	if out, ok := mock.Outcome("c1"); !ok || !out.Success {
		t.Errorf("c1 should complete successfully, got %+v", out)
	}
	out, ok := mock.Outcome("c2")
	if !ok || out.Success {
		t.Errorf("c2 should complete with failure, got %+v", out)
	}
	if !strings.Contains(out.Error, "voucherId") {
		t.Errorf("failure reason should name the missing payload field, got %q", out.Error)
	}
	if out, ok := mock.Outcome("c3"); !ok || !out.Success {
		t.Errorf("a failing command must not block the rest of the batch, got %+v", out)
	}
}

func TestDeleteVoucherCommandByID(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{}
	svc := newTestService(fa, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	mock.Enqueue(model.Command{
		ID:      "c1",
		Type:    model.CommandDeleteVoucher,
		Payload: map[string]any{"voucherId": "v42"},
	})
	if err := svc.processCommands(context.Background()); err != nil {
		t.Fatalf("processCommands failed: %v", err)
	}

	if got := fa.deletedIDs(); len(got) != 1 || got[0] != "v42" {
		t.Errorf("expected v42 deleted, got %v", got)
	}
	if out, ok := mock.Outcome("c1"); !ok || !out.Success {
		t.Errorf("expected success, got %+v", out)
	}
}

func TestDeleteVoucherCommandByCode(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{vouchers: []model.Voucher{
		{ID: "v1", Code: "11111"},
		{ID: "v2", Code: "22222"},
	}}
	svc := newTestService(fa, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	mock.Enqueue(
		model.Command{ID: "c1", Type: model.CommandDeleteVoucher, Payload: map[string]any{"voucherCode": "22222"}},
		model.Command{ID: "c2", Type: model.CommandDeleteVoucher, Payload: map[string]any{"voucherCode": "99999"}},
	)
	if err := svc.processCommands(context.Background()); err != nil {
		t.Fatalf("processCommands failed: %v", err)
	}

	if got := fa.deletedIDs(); len(got) != 1 || got[0] != "v2" {
		t.Errorf("expected the code to resolve to v2, got %v", got)
	}
	// An unknown code is a warning, not a failure.
	if out, ok := mock.Outcome("c2"); !ok || !out.Success {
		t.Errorf("unknown code should complete successfully, got %+v", out)
	}
}

func TestUnknownCommandCompletesSuccessfully(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	svc := newTestService(&fakeAdapter{}, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	mock.Enqueue(model.Command{ID: "c1", Type: "reboot_the_moon"})
	if err := svc.processCommands(context.Background()); err != nil {
		t.Fatalf("processCommands failed: %v", err)
	}

	if out, ok := mock.Outcome("c1"); !ok || !out.Success {
		t.Errorf("unrecognized types are no-ops but still confirmed, got %+v", out)
	}
}

func TestDisconnectCommandStopsService(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{}
	svc := newTestService(fa, mock)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mock.Enqueue(model.Command{ID: "c1", Type: model.CommandDisconnect})
	if err := svc.processCommands(context.Background()); err != nil {
		t.Fatalf("processCommands failed: %v", err)
	}

	if svc.State() != StateStopped {
		t.Errorf("disconnect command must stop the service, got %s", svc.State())
	}
	if !mock.Disconnected {
		t.Error("stop must notify the cloud")
	}
	if got := mock.AckedIDs(); len(got) != 1 || got[0] != "c1" {
		t.Errorf("disconnect must still be acknowledged, got %v", got)
	}
	if _, ok := mock.Outcome("c1"); ok {
		t.Error("a disconnect command is never completed")
	}
}

func TestPerformSyncPartial(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()
	mock.SyncedOverride = 1

	fa := &fakeAdapter{vouchers: []model.Voucher{{ID: "v1"}, {ID: "v2"}, {ID: "v3"}}}
	svc := newTestService(fa, mock)
	if err := svc.adapter.Login(context.Background()); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := svc.performSync(context.Background()); err != nil {
		t.Fatalf("a partial sync must not fail the cycle: %v", err)
	}

	status := svc.Status()
	if status.VoucherCount != 1 {
		t.Errorf("the server-reported count is authoritative, got %d", status.VoucherCount)
	}
	if status.LastError == "" {
		t.Error("a partial sync must be recorded as the last error")
	}
	if !status.Connected {
		t.Error("a partial sync still proves connectivity")
	}
}

func TestRunSyncCycleReportsErrorHeartbeat(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{fetchErr: errors.New("controller unreachable")}
	svc := newTestService(fa, mock)

	if err := svc.runSyncCycle(context.Background()); err == nil {
		t.Fatal("expected the cycle to fail")
	}

	if mock.Heartbeats() != 1 {
		t.Fatalf("expected one error heartbeat, got %d", mock.Heartbeats())
	}
	if mock.LastHeartbeat["status"] != "error" {
		t.Errorf("expected error heartbeat, got %v", mock.LastHeartbeat["status"])
	}
	if svc.Status().LastError == "" {
		t.Error("cycle failure must be recorded in status")
	}
}

func TestRunSyncCycleHappyPath(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	fa := &fakeAdapter{vouchers: []model.Voucher{{ID: "v1", Code: "11111"}}}
	svc := newTestService(fa, mock)

	if err := svc.runSyncCycle(context.Background()); err != nil {
		t.Fatalf("runSyncCycle failed: %v", err)
	}

	if mock.Heartbeats() != 1 {
		t.Fatalf("expected one heartbeat, got %d", mock.Heartbeats())
	}
	if mock.LastHeartbeat["status"] != "ok" {
		t.Errorf("expected ok heartbeat, got %v", mock.LastHeartbeat["status"])
	}
	if count, _ := mock.LastHeartbeat["voucherCount"].(float64); int(count) != 1 {
		t.Errorf("heartbeat must carry the synced count, got %v", mock.LastHeartbeat["voucherCount"])
	}
}
