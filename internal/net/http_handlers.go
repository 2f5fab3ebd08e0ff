package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"time"

	"street-sprint/engine/internal/catalog"
	"street-sprint/engine/internal/net/ws"
	"street-sprint/engine/internal/pool"
	"street-sprint/engine/internal/scheduler"
	"street-sprint/engine/internal/sim"
	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/logging"
)

// Deps are the engine services the HTTP surface exposes.
type Deps struct {
	RunID     string
	Runner    *sim.Runner
	Scheduler *scheduler.Scheduler
	Pools     *pool.Registry
	Catalog   *catalog.Catalog
	Router    *logging.Router
	Hub       *ws.Hub
}

type HTTPHandlerConfig struct {
	Logger         telemetry.Logger
	MetricsHandler nethttp.Handler
}

func NewHTTPHandler(deps Deps, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string             `json:"status"`
			RunID      string             `json:"runId,omitempty"`
			ServerTime int64              `json:"serverTime"`
			Runner     sim.Snapshot       `json:"runner"`
			Window     scheduler.Snapshot `json:"window"`
			Pools      []pool.PoolStats   `json:"pools"`
			Catalog    catalogInfo        `json:"catalog"`
			Logging    any                `json:"logging,omitempty"`
			Observers  int                `json:"observers"`
		}{
			Status:     "ok",
			RunID:      deps.RunID,
			ServerTime: time.Now().UnixMilli(),
			Runner:     deps.Runner.Snapshot(),
			Window:     deps.Scheduler.Snapshot(),
			Pools:      deps.Pools.Stats(),
			Catalog: catalogInfo{
				Version:  deps.Catalog.Version(),
				Path:     deps.Catalog.Path(),
				Segments: deps.Catalog.Len(),
				Valid:    deps.Catalog.Validate(),
			},
		}
		if deps.Router != nil {
			payload.Logging = deps.Router.Stats()
		}
		if deps.Hub != nil {
			payload.Observers = deps.Hub.Count()
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/control/recycling", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Paused bool `json:"paused"`
		}
		if !decodeControl(w, r, logger, &req) {
			return
		}
		enqueueControl(w, deps.Runner, sim.Command{Type: sim.CommandPauseRecycling, Paused: req.Paused})
	})

	mux.HandleFunc("/control/reload", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if !decodeControl(w, r, logger, &req) {
			return
		}
		enqueueControl(w, deps.Runner, sim.Command{Type: sim.CommandReloadCatalog, Path: req.Path})
	})

	mux.HandleFunc("/control/clear", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Distance float64 `json:"distance"`
		}
		if !decodeControl(w, r, logger, &req) {
			return
		}
		if req.Distance <= 0 {
			httpError(w, "distance must be positive", nethttp.StatusBadRequest)
			return
		}
		enqueueControl(w, deps.Runner, sim.Command{Type: sim.CommandClearNearGoal, Distance: req.Distance})
	})

	if deps.Hub != nil {
		mux.HandleFunc("/ws", deps.Hub.Handle)
	}
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	return mux
}

type catalogInfo struct {
	Version  string `json:"version"`
	Path     string `json:"path"`
	Segments int    `json:"segments"`
	Valid    bool   `json:"valid"`
}

func decodeControl(w nethttp.ResponseWriter, r *nethttp.Request, logger telemetry.Logger, dst any) bool {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return false
	}
	body, err := io.ReadAll(nethttp.MaxBytesReader(w, r.Body, 1<<16))
	if err != nil {
		httpError(w, "failed to read body", nethttp.StatusBadRequest)
		return false
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			logger.Printf("http: malformed control body: %v", err)
			httpError(w, "malformed JSON body", nethttp.StatusBadRequest)
			return false
		}
	}
	return true
}

func enqueueControl(w nethttp.ResponseWriter, runner *sim.Runner, cmd sim.Command) {
	if !runner.Enqueue(cmd) {
		httpError(w, "command buffer full", nethttp.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(nethttp.StatusAccepted)
	w.Write([]byte(`{"status":"queued"}`))
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("http: failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	nethttp.Error(w, message, status)
}
