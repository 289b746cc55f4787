package rpcmanager

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jihwankim/windctl/internal/logging"
)

// MaxConnectAttempts and ConnectBackoff implement the reconnection policy:
// up to 10 attempts, 1 second apart, before a client surfaces "unreachable".
const (
	MaxConnectAttempts = 10
	ConnectBackoff     = 1 * time.Second
)

// ErrUnreachable is returned once MaxConnectAttempts is exhausted.
type ErrUnreachable struct {
	Addr string
	Last error
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("manager unreachable at %s after %d attempts: %v", e.Addr, MaxConnectAttempts, e.Last)
}

func (e *ErrUnreachable) Unwrap() error { return e.Last }

// Client is a reconnecting RPC session to the Manager. All calls are
// serialized through a mutex: each process that needs a Client uses one
// instance, matching the original prototype's one-manager-client-per-process
// convention.
type Client struct {
	name string
	addr string
	key  []byte

	logger *logging.Logger

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// Connect dials the Manager at host:port, retrying per the reconnection
// policy, authenticates with key, and announces itself via on_connect_hook.
func Connect(name, host string, port int, key []byte, logger *logging.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	c := &Client{name: name, addr: addr, key: key, logger: logger}

	conn, r, err := dialWithRetry(addr, key, name, logger)
	if err != nil {
		return nil, err
	}
	c.conn, c.r = conn, r

	if _, err := c.call(MethodOnConnect, HookArgs{ClientName: name}); err != nil {
		logger.Warn("on_connect_hook failed", "error", err.Error())
	}
	return c, nil
}

func dialWithRetry(addr string, key []byte, name string, logger *logging.Logger) (net.Conn, *bufio.Reader, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxConnectAttempts; attempt++ {
		conn, r, err := dialOnce(addr, key, name)
		if err == nil {
			return conn, r, nil
		}
		lastErr = err
		logger.Warn("manager connection attempt failed", "attempt", attempt, "addr", addr, "error", err.Error())
		if attempt < MaxConnectAttempts {
			time.Sleep(ConnectBackoff)
		}
	}
	return nil, nil, &ErrUnreachable{Addr: addr, Last: lastErr}
}

func dialOnce(addr string, key []byte, name string) (net.Conn, *bufio.Reader, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	r := bufio.NewReader(conn)

	var challenge Challenge
	if err := readFrame(r, &challenge); err != nil {
		conn.Close()
		return nil, nil, err
	}

	resp := AuthResponse{ClientName: name, HMAC: signNonce(key, challenge.Nonce)}
	if err := writeFrame(conn, resp); err != nil {
		conn.Close()
		return nil, nil, err
	}

	var result AuthResult
	if err := readFrame(r, &result); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if !result.Success {
		conn.Close()
		return nil, nil, fmt.Errorf("auth_failed")
	}
	return conn, r, nil
}

// call issues one RPC, transparently reconnecting once on a transport error
// before giving up — mirroring the original Client.get_ns()'s single retry
// on ConnectionRefusedError.
func (c *Client) call(method string, args interface{}) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.callLocked(method, args)
	if err == nil || resp.Error != "" {
		// Success, or an error reported by the Manager itself (the transport
		// worked), so there is nothing to reconnect for.
		return resp, err
	}

	c.logger.Warn("manager call failed, reconnecting once", "method", method, "error", err.Error())
	conn, r, dialErr := dialWithRetry(c.addr, c.key, c.name, c.logger)
	if dialErr != nil {
		return Response{}, dialErr
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.r = conn, r

	return c.callLocked(method, args)
}

func (c *Client) callLocked(method string, args interface{}) (Response, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling args for %q: %w", method, err)
	}
	if err := writeFrame(c.conn, Request{Method: method, Args: argsJSON}); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := readFrame(c.r, &resp); err != nil {
		return Response{}, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("manager: %s: %s", method, resp.Error)
	}
	return resp, nil
}

// GetSlot fetches a slot's raw value. present is false if the slot has never
// been written.
func (c *Client) GetSlot(slot string) (value json.RawMessage, version uint64, present bool, err error) {
	resp, err := c.call(MethodGetSlot, GetSlotArgs{Slot: slot})
	if err != nil {
		return nil, 0, false, err
	}
	var data GetSlotData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, 0, false, err
	}
	return data.Value, data.Version, data.Present, nil
}

// GetSlotInto fetches a slot and decodes it into dst.
func (c *Client) GetSlotInto(slot string, dst interface{}) (present bool, err error) {
	value, _, present, err := c.GetSlot(slot)
	if err != nil || !present || len(value) == 0 {
		return present, err
	}
	return true, json.Unmarshal(value, dst)
}

// SetSlot overwrites a slot's value.
func (c *Client) SetSlot(slot string, value interface{}) (version uint64, err error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	resp, err := c.call(MethodSetSlot, SetSlotArgs{Slot: slot, Value: payload})
	if err != nil {
		return 0, err
	}
	var data SetSlotData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, err
	}
	return data.Version, nil
}

// AppendSlot atomically appends entry to a list-valued slot at the server.
func (c *Client) AppendSlot(slot string, entry interface{}) (length int, err error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}
	resp, err := c.call(MethodAppendSlot, AppendSlotArgs{Slot: slot, Entry: payload})
	if err != nil {
		return 0, err
	}
	var data AppendSlotData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, err
	}
	return data.Length, nil
}

// Log appends a structured log entry to the logs slot, the Go equivalent of
// the original Client.log(msg, lvl).
func (c *Client) Log(msg, level string, timeSeconds float64) error {
	_, err := c.AppendSlot("logs", map[string]interface{}{
		"msg": msg, "level": level, "time_seconds": timeSeconds,
	})
	return err
}

// Close announces disconnection and closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_, _ = c.callLocked(MethodOnDisconnect, HookArgs{ClientName: c.name})
	return c.conn.Close()
}
