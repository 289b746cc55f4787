package rpcmanager

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jihwankim/windctl/internal/logging"
	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/namespace"
)

// Server hosts the shared namespace and accepts authenticated TCP sessions.
// Connection handling follows the one-goroutine-per-connection,
// semaphore-bounded pattern used by the retrieved beads RPC daemon.
type Server struct {
	key           []byte
	store         *store
	connSemaphore chan struct{}
	activeConns   int32

	logger  *logging.Logger
	metrics *metrics.Registry

	listener net.Listener
}

// DefaultMaxConns bounds concurrent sessions absent an explicit override.
const DefaultMaxConns = 64

// NewServer constructs a Server authenticating with key.
func NewServer(key []byte, maxConns int, logger *logging.Logger, reg *metrics.Registry) *Server {
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	return &Server{
		key:           key,
		store:         newStore(),
		connSemaphore: make(chan struct{}, maxConns),
		logger:        logger,
		metrics:       reg,
	}
}

// Listen binds addr without serving yet, so callers (tests especially) can
// learn the actual bound address before Serve starts accepting.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("manager: listen %q: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound listener address. Valid after Listen succeeds.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until the listener is closed (via Close) or a
// fatal accept error occurs. Call Listen first.
func (s *Server) Serve() error {
	s.logger.Info("manager listening", "addr", s.listener.Addr().String())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}

		select {
		case s.connSemaphore <- struct{}{}:
			go s.handleConn(conn)
		default:
			s.logger.Warn("manager: connection limit reached, rejecting", "addr", conn.RemoteAddr().String())
			conn.Close()
		}
	}
}

// ListenAndServe binds addr and serves connections until the listener is
// closed (via Close) or a fatal accept error occurs.
func (s *Server) ListenAndServe(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		<-s.connSemaphore
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	clientName, ok := s.authenticate(conn, r)
	if !ok {
		return
	}
	connID := uuid.NewString()

	atomic.AddInt32(&s.activeConns, 1)
	if s.metrics != nil {
		s.metrics.ManagerConnections.Inc()
	}
	s.store.ensureInitialized(namespace.SlotLogs, json.RawMessage("[]"))

	defer func() {
		atomic.AddInt32(&s.activeConns, -1)
		if s.metrics != nil {
			s.metrics.ManagerConnections.Dec()
		}
		s.logger.Info("client disconnected", "client", clientName, "conn_id", connID)
	}()

	for {
		var req Request
		if err := readFrame(r, &req); err != nil {
			return // EOF or transport error: client is gone
		}
		resp := s.dispatch(clientName, connID, req)
		if err := writeFrame(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) authenticate(conn net.Conn, r *bufio.Reader) (clientName string, ok bool) {
	nonce, err := newNonce()
	if err != nil {
		s.logger.Error("manager: nonce generation failed", "error", err.Error())
		return "", false
	}
	if err := writeFrame(conn, Challenge{Nonce: nonce}); err != nil {
		return "", false
	}

	var resp AuthResponse
	if err := readFrame(r, &resp); err != nil {
		return "", false
	}

	if !verifyNonce(s.key, nonce, resp.HMAC) {
		writeFrame(conn, AuthResult{Success: false, Error: "auth_failed"})
		if s.metrics != nil {
			s.metrics.ManagerAuthFailures.Inc()
		}
		s.logger.Warn("manager: rejected client", "client", resp.ClientName, "addr", conn.RemoteAddr().String())
		return "", false
	}

	if err := writeFrame(conn, AuthResult{Success: true}); err != nil {
		return "", false
	}
	s.logger.Info("client authenticated", "client", resp.ClientName)
	return resp.ClientName, true
}

func (s *Server) dispatch(clientName, connID string, req Request) Response {
	switch req.Method {
	case MethodGetNamespace:
		return s.handleGetNamespace()
	case MethodGetSlot:
		return s.handleGetSlot(req.Args)
	case MethodSetSlot:
		return s.handleSetSlot(req.Args)
	case MethodAppendSlot:
		return s.handleAppendSlot(req.Args)
	case MethodOnConnect:
		s.logger.Info("on_connect_hook", "client", clientName, "conn_id", connID)
		return Response{Success: true}
	case MethodOnDisconnect:
		s.logger.Info("on_disconnect_hook", "client", clientName, "conn_id", connID)
		return Response{Success: true}
	default:
		return errResponse(fmt.Errorf("unknown method %q", req.Method))
	}
}

func (s *Server) handleGetNamespace() Response {
	snap := s.store.snapshot()
	out := make(map[string]json.RawMessage, len(snap))
	for slot, v := range snap {
		out[string(slot)] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return errResponse(err)
	}
	return Response{Success: true, Data: data}
}

func (s *Server) handleGetSlot(args json.RawMessage) Response {
	var a GetSlotArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errResponse(err)
	}
	slot := namespace.Slot(a.Slot)
	if !namespace.Known(slot) {
		return errResponse(fmt.Errorf("unknown slot %q", a.Slot))
	}
	value, version, present := s.store.get(slot)
	data, err := json.Marshal(GetSlotData{Present: present, Value: value, Version: version})
	if err != nil {
		return errResponse(err)
	}
	return Response{Success: true, Data: data}
}

func (s *Server) handleSetSlot(args json.RawMessage) Response {
	var a SetSlotArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errResponse(err)
	}
	slot := namespace.Slot(a.Slot)
	if !namespace.Known(slot) {
		return errResponse(fmt.Errorf("unknown slot %q", a.Slot))
	}
	version := s.store.set(slot, a.Value)
	if s.metrics != nil {
		s.metrics.SlotWrites.WithLabelValues(a.Slot).Inc()
	}
	data, err := json.Marshal(SetSlotData{Version: version})
	if err != nil {
		return errResponse(err)
	}
	return Response{Success: true, Data: data}
}

func (s *Server) handleAppendSlot(args json.RawMessage) Response {
	var a AppendSlotArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return errResponse(err)
	}
	slot := namespace.Slot(a.Slot)
	if !namespace.Known(slot) {
		return errResponse(fmt.Errorf("unknown slot %q", a.Slot))
	}
	length, err := s.store.append(slot, a.Entry)
	if err != nil {
		return errResponse(err)
	}
	if s.metrics != nil {
		s.metrics.SlotWrites.WithLabelValues(a.Slot).Inc()
	}
	data, err := json.Marshal(AppendSlotData{Length: length})
	if err != nil {
		return errResponse(err)
	}
	return Response{Success: true, Data: data}
}

func errResponse(err error) Response {
	return Response{Success: false, Error: err.Error()}
}
