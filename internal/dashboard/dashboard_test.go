package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartm-app/smartm/internal/storage"
	smsync "github.com/smartm-app/smartm/internal/sync"
)

type fakeStats struct{}

func (fakeStats) Operability(context.Context) int { return 75 }

func (fakeStats) Presence(context.Context) (int, int) { return 48, 2 }

type failingRemote struct{}

func (failingRemote) Push(context.Context, []smsync.EntityType) error {
	return smsync.ErrSyncFailed
}

func newTestDashboard(t *testing.T, remote smsync.Remote) (*Server, *smsync.Manager) {
	t.Helper()
	store := storage.NewStore(storage.NewMemoryDriver(), "smartm_", nil)
	mgr := smsync.NewManager(store, remote)
	srv := NewServer(&Config{Port: 0})
	NewHandler(srv, mgr, fakeStats{}, smsync.ModeOnline)
	return srv, mgr
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSync(t *testing.T) {
	srv, mgr := newTestDashboard(t, nil)
	mgr.MarkEntityForSync(context.Background(), smsync.EntityEquipment, 1)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st smsync.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, smsync.DefaultFrequency, st.SyncFrequency)
}

func TestPostSync(t *testing.T) {
	srv, mgr := newTestDashboard(t, nil)
	ctx := context.Background()
	mgr.MarkEntityForSync(ctx, smsync.EntityEquipment, 1)
	mgr.MarkEntityForSync(ctx, smsync.EntityFailures, 2)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/sync", SyncRequest{Types: []string{"equipment"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, []string{"equipment"}, resp.Synced)
	assert.NotEmpty(t, resp.PassID)
	assert.Equal(t, 1, mgr.State(ctx).PendingCount)
}

func TestPostSync_EmptyBodySyncsPending(t *testing.T) {
	srv, mgr := newTestDashboard(t, nil)
	ctx := context.Background()
	mgr.MarkEntityForSync(ctx, smsync.EntityInstances, 3)

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, mgr.State(ctx).PendingCount)
}

func TestPostSync_BadRequest(t *testing.T) {
	srv, _ := newTestDashboard(t, nil)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/sync", SyncRequest{Types: []string{"weather"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/api/sync", SyncRequest{Mode: "carrier-pigeon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostSync_RemoteFailure(t *testing.T) {
	srv, mgr := newTestDashboard(t, failingRemote{})
	ctx := context.Background()
	mgr.MarkEntityForSync(ctx, smsync.EntityEquipment, 1)

	rec := do(t, srv.Handler(), http.MethodPost, "/api/sync", SyncRequest{})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, 1, mgr.State(ctx).PendingCount)
}

func TestSettings(t *testing.T) {
	srv, mgr := newTestDashboard(t, nil)

	rec := do(t, srv.Handler(), http.MethodPut, "/api/sync/settings", SettingsRequest{AutoSync: true, SyncFrequency: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	st := mgr.State(context.Background())
	assert.True(t, st.AutoSync)
	assert.Equal(t, 5, st.SyncFrequency)

	rec = do(t, srv.Handler(), http.MethodPut, "/api/sync/settings", SettingsRequest{AutoSync: true, SyncFrequency: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperabilityAndHealth(t *testing.T) {
	srv, _ := newTestDashboard(t, nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/operability", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var op OperabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &op))
	assert.Equal(t, OperabilityResponse{Operability: 75, Present: 48, Absent: 2}, op)

	rec = do(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestWebSocketBroadcastsState(t *testing.T) {
	store := storage.NewStore(storage.NewMemoryDriver(), "smartm_", nil)
	mgr := smsync.NewManager(store, nil)
	srv := NewServer(&Config{Host: "127.0.0.1", Port: 0})
	h := NewHandler(srv, mgr, fakeStats{}, smsync.ModeOnline)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.Start(ctx)

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	welcome := readMessage(ctx, t, conn)
	assert.Equal(t, MessageTypeSyncState, welcome.Type)

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	mgr.MarkEntityForSync(ctx, smsync.EntityConsumptions, 9)

	for {
		msg := readMessage(ctx, t, conn)
		if msg.Type != MessageTypeSyncState {
			continue
		}
		var st smsync.State
		require.NoError(t, json.Unmarshal(msg.Data, &st))
		if st.PendingCount == 1 {
			assert.Equal(t, 1, st.Entities[smsync.EntityConsumptions].PendingCount)
			return
		}
	}
}

func readMessage(ctx context.Context, t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}
