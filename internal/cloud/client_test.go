package cloud

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RocoByte/vorio-agent/internal/model"
	"github.com/RocoByte/vorio-agent/testutils"
)

func newTestClient(url string) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(Options{
		BaseURL: url,
		Token:   "test-token",
		Logger:  logger,
	})
}

func TestConnectRetainsIdentifiers(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()
	mock.Token = "test-token"

	c := newTestClient(mock.URL)
	resp, err := c.Connect(context.Background(), ConnectRequest{
		AgentVersion:  "1.0.0",
		ControllerURL: "https://192.168.1.1",
	})
	require.NoError(t, err)

	assert.Equal(t, "conn-123", resp.ConnectionID)
	assert.Equal(t, "proj-456", resp.ProjectID)
	assert.Equal(t, "conn-123", c.ConnectionID())
	assert.Equal(t, "proj-456", c.ProjectID())
	assert.True(t, mock.Connected)
	assert.NotEmpty(t, c.InstanceID(), "every process run gets a fresh instance ID")
}

func TestInvalidTokenIsFatalKind(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()
	mock.Token = "the-real-token"

	c := newTestClient(mock.URL) // carries "test-token"
	_, err := c.Connect(context.Background(), ConnectRequest{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindCredentialInvalid, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindCredentialInvalid},
		{403, KindPermissionDenied},
		{404, KindNotFound},
		{429, KindRateLimited},
		{500, KindServer},
		{503, KindServer},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.status), "status %d", tt.status)
	}
}

func TestConnectionFailureClassified(t *testing.T) {
	mock := testutils.NewMockCloud()
	url := mock.URL
	mock.Close()

	c := newTestClient(url)
	_, err := c.GetCommands(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindConnection, apiErr.Kind)
	assert.Zero(t, apiErr.StatusCode)
}

func TestSyncVouchers(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	c := newTestClient(mock.URL)
	vouchers := []model.Voucher{
		{ID: "v1", Code: "11111", Status: model.StatusValidOne},
		{ID: "v2", Code: "22222", Status: model.StatusUsed},
	}

	synced, err := c.SyncVouchers(context.Background(), vouchers)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Len(t, mock.LastSynced, 2)
	assert.Equal(t, "v1", mock.LastSynced[0].ID)
}

func TestSyncVouchersPartial(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()
	mock.SyncedOverride = 1

	c := newTestClient(mock.URL)
	vouchers := []model.Voucher{{ID: "v1"}, {ID: "v2"}}

	synced, err := c.SyncVouchers(context.Background(), vouchers)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, 1, synced, "the server count is still reported alongside the error")
	assert.Equal(t, 2, syncErr.Attempted)
	assert.Equal(t, 1, syncErr.Synced)
}

func TestSyncVouchersEmptySnapshot(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	c := newTestClient(mock.URL)

	// A nil slice still uploads an explicit empty snapshot; the server
	// replaces, never merges.
	synced, err := c.SyncVouchers(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, synced)
	assert.Equal(t, 1, mock.SyncCalls)
}

func TestGetCommands(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	c := newTestClient(mock.URL)

	cmds, err := c.GetCommands(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cmds, "empty queue is normal steady-state")

	mock.Enqueue(model.Command{ID: "cmd-1", Type: model.CommandSyncNow})
	cmds, err = c.GetCommands(context.Background())
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, "cmd-1", cmds[0].ID)
	assert.Equal(t, model.CommandSyncNow, cmds[0].Type)
}

func TestCommandLifecycle(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	c := newTestClient(mock.URL)

	require.NoError(t, c.AcknowledgeCommand(context.Background(), "cmd-9"))
	assert.Equal(t, []string{"cmd-9"}, mock.AckedIDs())

	require.NoError(t, c.CompleteCommand(context.Background(), "cmd-9", false, "voucher not found"))
	out, ok := mock.Outcome("cmd-9")
	require.True(t, ok)
	assert.False(t, out.Success)
	assert.Equal(t, "voucher not found", out.Error)

	require.NoError(t, c.CompleteCommand(context.Background(), "cmd-10", true, ""))
	out, ok = mock.Outcome("cmd-10")
	require.True(t, ok)
	assert.True(t, out.Success)
	assert.Empty(t, out.Error)
}

func TestHeartbeat(t *testing.T) {
	mock := testutils.NewMockCloud()
	defer mock.Close()

	c := newTestClient(mock.URL)
	err := c.Heartbeat(context.Background(), HeartbeatRequest{
		Status:        "ok",
		VoucherCount:  7,
		UptimeSeconds: 120,
		AgentVersion:  "1.0.0",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Heartbeats())
	assert.Equal(t, "ok", mock.LastHeartbeat["status"])
	assert.EqualValues(t, 7, mock.LastHeartbeat["voucherCount"])
}

func TestDisconnectNeverFails(t *testing.T) {
	mock := testutils.NewMockCloud()
	url := mock.URL
	mock.Close()

	c := newTestClient(url)
	c.Disconnect(context.Background()) // must not panic, failure is logged only
}

func TestSyncErrorIsNotAPIError(t *testing.T) {
	err := error(&SyncError{Attempted: 3, Synced: 1})

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "partial sync is a distinct condition from a failed request")
	assert.Contains(t, err.Error(), "1 of 3")
}
