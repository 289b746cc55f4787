// Package gateway implements the API Gateway: a thin, read-through HTTP
// view of the shared namespace plus the disable/enable/add-fault command
// surface. It owns no simulation state of
// its own beyond the idle-override store.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/jihwankim/windctl/internal/config"
	"github.com/jihwankim/windctl/internal/idlestore"
	"github.com/jihwankim/windctl/internal/logging"
	"github.com/jihwankim/windctl/internal/namespace"
)

// ManagerClient is the subset of rpcmanager.Client the Gateway needs.
type ManagerClient interface {
	GetSlotInto(slot string, dst interface{}) (present bool, err error)
	AppendSlot(slot string, entry interface{}) (length int, err error)
}

// Server serves the read-through HTTP API.
type Server struct {
	client         ManagerClient
	store          *idlestore.Store
	logger         *logging.Logger
	allowedOrigins []string
}

// New builds a Server. allowedOrigins of nil/empty defaults to "*" (local
// development)
func New(client ManagerClient, store *idlestore.Store, logger *logging.Logger, allowedOrigins []string) *Server {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Server{client: client, store: store, logger: logger, allowedOrigins: allowedOrigins}
}

// Handler returns the fully routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readings", s.handleReadings)
	mux.HandleFunc("GET /wind-turbines", s.handleWindTurbines)
	mux.HandleFunc("GET /wind-turbines/{id}", s.handleWindTurbineDetail)
	mux.HandleFunc("GET /env-sensors", s.handleEnvSensors)
	mux.HandleFunc("GET /map", s.handleMap)
	mux.HandleFunc("GET /drones", s.handleDrones)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("POST /wind-turbines/{id}/disable", s.handleSetOverride(true))
	mux.HandleFunc("POST /wind-turbines/{id}/enable", s.handleSetOverride(false))
	mux.HandleFunc("POST /add-fault/{id}", s.handleAddFault)
	return s.withCORS(mux)
}

// withCORS applies the operator-configured origin allowlist to every
// response, short-circuiting preflight OPTIONS requests.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.resolveOrigin(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) resolveOrigin(requestOrigin string) string {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if allowed == requestOrigin {
			return requestOrigin
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"msg": "Not found"})
}

// writeDownstreamMissing implements "plain 5xx without
// body when a downstream slot is missing".
func writeDownstreamMissing(w http.ResponseWriter) {
	w.WriteHeader(http.StatusBadGateway)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	present, err := s.client.GetSlotInto(string(namespace.SlotReadingsQueue), &raw)
	if err != nil {
		s.logger.Error("reading readings_queue failed", "error", err.Error())
		writeDownstreamMissing(w)
		return
	}
	if !present {
		writeJSON(w, http.StatusOK, []interface{}{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleEnvSensors(w http.ResponseWriter, r *http.Request) {
	var ticks []wireTick
	present, err := s.client.GetSlotInto(string(namespace.SlotReadingsQueue), &ticks)
	if err != nil {
		s.logger.Error("reading readings_queue failed", "error", err.Error())
		writeDownstreamMissing(w)
		return
	}
	if !present || len(ticks) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, ticks[len(ticks)-1].Env)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var mc config.MapConfig
	present, err := s.client.GetSlotInto(string(namespace.SlotMapConfig), &mc)
	if err != nil {
		s.logger.Error("reading map_cfg failed", "error", err.Error())
		writeDownstreamMissing(w)
		return
	}
	if !present {
		writeDownstreamMissing(w)
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

func (s *Server) handleDrones(w http.ResponseWriter, r *http.Request) {
	var positions []namespace.DronePosition
	present, err := s.client.GetSlotInto(string(namespace.SlotDronePositions), &positions)
	if err != nil {
		s.logger.Error("reading drone_positions failed", "error", err.Error())
		writeDownstreamMissing(w)
		return
	}
	if !present {
		positions = []namespace.DronePosition{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var entries []namespace.LogEntry
	present, err := s.client.GetSlotInto(string(namespace.SlotLogs), &entries)
	if err != nil {
		s.logger.Error("reading logs failed", "error", err.Error())
		writeDownstreamMissing(w)
		return
	}
	if !present {
		entries = []namespace.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleWindTurbines(w http.ResponseWriter, r *http.Request) {
	var mc config.MapConfig
	present, err := s.client.GetSlotInto(string(namespace.SlotMapConfig), &mc)
	if err != nil || !present {
		writeDownstreamMissing(w)
		return
	}

	latest, _ := s.latestTurbineReadings()

	out := make([]turbineSummary, 0, len(mc.Turbines))
	for _, t := range mc.Turbines {
		out = append(out, s.summarize(t, latest[t.ID]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWindTurbineDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var mc config.MapConfig
	present, err := s.client.GetSlotInto(string(namespace.SlotMapConfig), &mc)
	if err != nil || !present {
		writeDownstreamMissing(w)
		return
	}

	var turbine *config.Turbine
	for i := range mc.Turbines {
		if mc.Turbines[i].ID == id {
			turbine = &mc.Turbines[i]
			break
		}
	}
	if turbine == nil {
		writeNotFound(w)
		return
	}

	latest, _ := s.latestTurbineReadings()
	writeJSON(w, http.StatusOK, s.summarize(*turbine, latest[id]))
}

type turbineSummary struct {
	ID       string                 `json:"id"`
	Model    string                 `json:"model"`
	Lat      float64                `json:"lat"`
	Lng      float64                `json:"lng"`
	Status   string                 `json:"status"`
	Readings map[string]interface{} `json:"readings,omitempty"`
}

func (s *Server) summarize(t config.Turbine, reading map[string]interface{}) turbineSummary {
	status := "running"
	if disabled, err := s.store.IsDisabled(t.ID); err == nil && disabled {
		status = "idle"
	} else if faults, ok := reading["_faults"].([]interface{}); ok && len(faults) > 0 {
		status = "warning"
	}
	return turbineSummary{
		ID:       t.ID,
		Model:    t.Model,
		Lat:      float64(t.Lat),
		Lng:      float64(t.Lng),
		Status:   status,
		Readings: reading,
	}
}

// wireTick is the generic shape of one published readings_queue entry, kept
// loose (map[string]interface{} per-turbine) since the Gateway only needs
// to look fields up by turbine ID, not interpret every reading field.
type wireTick struct {
	Ticks    int64                    `json:"ticks"`
	UptimeS  float64                  `json:"uptime"`
	Env      map[string]interface{}   `json:"env"`
	Turbines []map[string]interface{} `json:"wts"`
}

func (s *Server) latestTurbineReadings() (map[string]map[string]interface{}, error) {
	var ticks []wireTick
	present, err := s.client.GetSlotInto(string(namespace.SlotReadingsQueue), &ticks)
	if err != nil || !present || len(ticks) == 0 {
		return map[string]map[string]interface{}{}, err
	}
	last := ticks[len(ticks)-1]
	out := make(map[string]map[string]interface{}, len(last.Turbines))
	for _, wt := range last.Turbines {
		if id, ok := wt["wt_id"].(string); ok {
			out[id] = wt
		}
	}
	return out, nil
}

func (s *Server) handleSetOverride(disabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := s.store.SetDisabled(id, disabled); err != nil {
			s.logger.Error("setting idle override failed", "wt_id", id, "error", err.Error())
			writeDownstreamMissing(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "disabled": disabled})
	}
}

func (s *Server) handleAddFault(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.client.AppendSlot(string(namespace.SlotAddFaults), id); err != nil {
		s.logger.Error("appending add_faults failed", "wt_id", id, "error", err.Error())
		writeDownstreamMissing(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
