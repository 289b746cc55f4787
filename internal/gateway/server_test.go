package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jihwankim/windctl/internal/config"
	"github.com/jihwankim/windctl/internal/idlestore"
	"github.com/jihwankim/windctl/internal/logging"
	"github.com/jihwankim/windctl/internal/namespace"
)

type fakeManager struct {
	slots map[string][]byte
}

func newFakeManager() *fakeManager {
	return &fakeManager{slots: map[string][]byte{}}
}

func (f *fakeManager) set(slot string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.slots[slot] = b
}

func (f *fakeManager) GetSlotInto(slot string, dst interface{}) (bool, error) {
	b, ok := f.slots[slot]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (f *fakeManager) AppendSlot(slot string, entry interface{}) (int, error) {
	var arr []json.RawMessage
	if b, ok := f.slots[slot]; ok {
		_ = json.Unmarshal(b, &arr)
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	arr = append(arr, b)
	f.set(slot, arr)
	return len(arr), nil
}

func newTestServer(t *testing.T) (*Server, *fakeManager) {
	t.Helper()
	mgr := newFakeManager()
	store, err := idlestore.Open(filepath.Join(t.TempDir(), "idle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	logger := logging.New(logging.Config{})
	return New(mgr, store, logger, nil), mgr
}

func testMapConfig() config.MapConfig {
	return config.MapConfig{
		Models: []config.TurbineModel{{Name: "m1", Capacity: 2000}},
		Turbines: []config.Turbine{
			{ID: "wt-000000", Lat: 1, Lng: 2, Model: "m1"},
			{ID: "wt-000001", Lat: 3, Lng: 4, Model: "m1"},
		},
		Stations: []config.Station{{ID: "st-000000", Lat: 0, Lng: 0}},
	}
}

func TestHandleMap_ReturnsConfig(t *testing.T) {
	s, mgr := newTestServer(t)
	mgr.set(string(namespace.SlotMapConfig), testMapConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/map", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got config.MapConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Turbines, 2)
}

func TestHandleMap_MissingSlotIsBadGateway(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/map", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleWindTurbines_ListsAll(t *testing.T) {
	s, mgr := newTestServer(t)
	mgr.set(string(namespace.SlotMapConfig), testMapConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wind-turbines", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []turbineSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "running", got[0].Status)
}

func TestHandleWindTurbineDetail_UnknownIDIs404(t *testing.T) {
	s, mgr := newTestServer(t)
	mgr.set(string(namespace.SlotMapConfig), testMapConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wind-turbines/wt-nope", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleWindTurbineDetail_KnownIDFound(t *testing.T) {
	s, mgr := newTestServer(t)
	mgr.set(string(namespace.SlotMapConfig), testMapConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/wind-turbines/wt-000001", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got turbineSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "wt-000001", got.ID)
}

func TestHandleDisableEnable_UpdatesStatus(t *testing.T) {
	s, mgr := newTestServer(t)
	mgr.set(string(namespace.SlotMapConfig), testMapConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/wind-turbines/wt-000000/disable", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/wind-turbines/wt-000000", nil)
	s.Handler().ServeHTTP(rec, req)
	var got turbineSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "idle", got.Status)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/wind-turbines/wt-000000/enable", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/wind-turbines/wt-000000", nil)
	s.Handler().ServeHTTP(rec, req)
	got = turbineSummary{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "running", got.Status)
}

func TestHandleAddFault_AppendsToSlot(t *testing.T) {
	s, mgr := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/add-fault/wt-000000", nil)
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var arr []string
	_, err := mgr.GetSlotInto(string(namespace.SlotAddFaults), &arr)
	require.NoError(t, err)
	require.Equal(t, []string{"wt-000000"}, arr)
}

func TestHandleDrones_EmptyWhenSlotMissing(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/drones", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []namespace.DronePosition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Empty(t, got)
}

func TestHandleLogs_ReturnsAppendedEntries(t *testing.T) {
	s, mgr := newTestServer(t)
	mgr.set(string(namespace.SlotLogs), []namespace.LogEntry{{Msg: "hi", Level: "info", TimeSeconds: 1.5}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []namespace.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "hi", got[0].Msg)
}

func TestCORS_SetsAllowOriginHeader(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/drones", nil)
	req.Header.Set("Origin", "http://example.com")
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
