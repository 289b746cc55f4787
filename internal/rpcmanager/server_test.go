package rpcmanager

import (
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/jihwankim/windctl/internal/logging"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func startTestServer(t *testing.T, key []byte) *Server {
	t.Helper()
	srv := NewServer(key, 0, testLogger(), nil)
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv
}

func dialTestClient(t *testing.T, srv *Server, name string, key []byte) *Client {
	t.Helper()
	host, port := splitHostPort(t, srv.Addr().String())
	c, err := Connect(name, host, port, key, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestServer_SetGetSlotRoundTrip(t *testing.T) {
	key := []byte("shared-secret")
	srv := startTestServer(t, key)
	client := dialTestClient(t, srv, "sim", key)

	_, err := client.SetSlot("map_cfg", map[string]string{"hello": "world"})
	require.NoError(t, err)

	var got map[string]string
	present, err := client.GetSlotInto("map_cfg", &got)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, "world", got["hello"])
}

func TestServer_GetSlot_AbsentIsNotAnError(t *testing.T) {
	key := []byte("shared-secret")
	srv := startTestServer(t, key)
	client := dialTestClient(t, srv, "sim", key)

	_, _, present, err := client.GetSlot("sensor_alerts")
	require.NoError(t, err)
	require.False(t, present)
}

func TestServer_UnknownSlotRejected(t *testing.T) {
	key := []byte("shared-secret")
	srv := startTestServer(t, key)
	client := dialTestClient(t, srv, "sim", key)

	_, err := client.SetSlot("not_a_real_slot", 1)
	require.Error(t, err)
}

func TestServer_AppendSlotAccumulates(t *testing.T) {
	key := []byte("shared-secret")
	srv := startTestServer(t, key)
	client := dialTestClient(t, srv, "scheduler", key)

	n, err := client.AppendSlot("finished_inspections", "wt-000001")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = client.AppendSlot("finished_inspections", "wt-000002")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var ids []string
	present, err := client.GetSlotInto("finished_inspections", &ids)
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []string{"wt-000001", "wt-000002"}, ids)
}

func TestServer_RejectsWrongKey(t *testing.T) {
	srv := startTestServer(t, []byte("correct-key"))
	host, port := splitHostPort(t, srv.Addr().String())

	_, err := Connect("intruder", host, port, []byte("wrong-key"), testLogger())
	require.Error(t, err)
}

func TestClient_LogAppendsStructuredEntry(t *testing.T) {
	key := []byte("shared-secret")
	srv := startTestServer(t, key)
	client := dialTestClient(t, srv, "sim", key)

	require.NoError(t, client.Log("tick advanced", "info", 3600))

	var entries []map[string]interface{}
	present, err := client.GetSlotInto("logs", &entries)
	require.NoError(t, err)
	require.True(t, present)
	require.Len(t, entries, 1)
	require.Equal(t, "tick advanced", entries[0]["msg"])
}

func TestConnect_UnreachableSurfacesAfterRetries(t *testing.T) {
	// Port 1 refuses connections immediately on any POSIX system, so this
	// still exercises the full 10-attempt/1s-backoff retry policy without
	// an artificially slow test — it just takes ~9s of real sleeping.
	_, err := Connect("ghost", "127.0.0.1", 1, []byte("key"), testLogger())
	require.Error(t, err)
	var unreachable *ErrUnreachable
	require.ErrorAs(t, err, &unreachable)
}
