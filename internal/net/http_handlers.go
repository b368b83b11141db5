package net

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/google/uuid"

	"auravfx/server/internal/config"
	"auravfx/server/internal/net/ws"
	"auravfx/server/internal/observability"
	"auravfx/server/internal/rigs"
	"auravfx/server/internal/runtime"
	"auravfx/server/internal/telemetry"
	"auravfx/server/logging"
)

const maxBodyBytes = 1 << 16

// Service is the runtime surface the HTTP layer exposes. *runtime.Runtime
// implements it.
type Service interface {
	Diagnostics() runtime.Diagnostics
	Audit() runtime.AuditReport
	Density(ctx context.Context, player uuid.UUID) (runtime.DensityReport, error)
	SpawnDebugRig(ctx context.Context, player uuid.UUID, modelAssetID string) (rigs.DebugSpawnResult, error)
	SetModelVFX(option string, value int) (string, config.ModelVFX, error)
}

// CatalogInfo describes the loaded cosmetic catalog for diagnostics.
type CatalogInfo interface {
	Summary() string
	Issues() []string
}

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Metrics       *logging.Metrics
	Router        *logging.Router
	Catalog       CatalogInfo
	Observability observability.Config
	Clock         logging.Clock
	// RequestTimeout bounds operator calls that wait on a world executor.
	RequestTimeout time.Duration
}

type debugRigRequest struct {
	Player string `json:"player"`
	Model  string `json:"model"`
}

type modelVFXRequest struct {
	Option string          `json:"option"`
	Value  json.RawMessage `json:"value"`
}

type modelVFXResponse struct {
	Status   string          `json:"status"`
	Key      string          `json:"key"`
	ModelVFX config.ModelVFX `json:"modelVfx"`
}

type telemetrySnapshot struct {
	Runtime runtime.Diagnostics  `json:"runtime"`
	Metrics map[string]uint64    `json:"metrics,omitempty"`
	Logging *logging.RouterStats `json:"logging,omitempty"`
}

func NewHTTPHandler(svc Service, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	obs := cfg.Observability.Normalize()

	snapshot := func() telemetrySnapshot {
		out := telemetrySnapshot{Runtime: svc.Diagnostics(), Metrics: cfg.Metrics.Snapshot()}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			out.Logging = &stats
		}
		return out
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string   `json:"status"`
			ServerTime int64    `json:"serverTime"`
			Catalog    string   `json:"catalog,omitempty"`
			Issues     []string `json:"catalogIssues,omitempty"`
			telemetrySnapshot
		}{
			Status:            "ok",
			ServerTime:        clock.Now().UnixMilli(),
			telemetrySnapshot: snapshot(),
		}
		if cfg.Catalog != nil {
			payload.Catalog = cfg.Catalog.Summary()
			payload.Issues = cfg.Catalog.Issues()
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/audit", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, svc.Audit())
	})

	mux.HandleFunc("/density", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		player, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("player")))
		if err != nil {
			httpError(w, "invalid player id", nethttp.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		report, err := svc.Density(ctx, player)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, report)
	})

	mux.HandleFunc("/debug/rig", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req debugRigRequest
		if !decodeBody(w, r, &req) {
			return
		}
		player, err := uuid.Parse(strings.TrimSpace(req.Player))
		if err != nil {
			httpError(w, "invalid player id", nethttp.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		result, err := svc.SpawnDebugRig(ctx, player, req.Model)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		logger.Printf("debug rig for %s: requested=%q resolved=%q success=%t", player, req.Model, result.ResolvedAssetID, result.Success)
		writeJSON(w, nethttp.StatusOK, result)
	})

	mux.HandleFunc("/modelvfx", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			writeJSON(w, nethttp.StatusOK, svc.Diagnostics().Config.ModelVFX)
			return
		case nethttp.MethodPost:
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req modelVFXRequest
		if !decodeBody(w, r, &req) {
			return
		}
		value, err := runtime.ParseModelVFXValue(strings.Trim(string(req.Value), `"`))
		if err != nil {
			httpError(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		key, settings, err := svc.SetModelVFX(req.Option, value)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, modelVFXResponse{Status: "ok", Key: key, ModelVFX: settings})
	})

	stream := ws.NewHandler(func() any { return snapshot() }, ws.HandlerConfig{
		Logger:   logger,
		Interval: obs.TelemetryStreamInterval(),
		Clock:    clock,
	})
	mux.HandleFunc("/ws/telemetry", stream.Handle)

	if obs.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, dst any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpError(w, "failed to read body", nethttp.StatusBadRequest)
		return false
	}
	if len(data) == 0 {
		httpError(w, "empty body", nethttp.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		httpError(w, "invalid JSON", nethttp.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeServiceError(w nethttp.ResponseWriter, err error) {
	switch {
	case errors.Is(err, runtime.ErrPlayerNotFound):
		httpError(w, err.Error(), nethttp.StatusNotFound)
	case errors.Is(err, config.ErrInvalid):
		httpError(w, err.Error(), nethttp.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		httpError(w, "timed out waiting for world", nethttp.StatusGatewayTimeout)
	default:
		httpError(w, err.Error(), nethttp.StatusInternalServerError)
	}
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
