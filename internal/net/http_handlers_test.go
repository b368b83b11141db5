package net

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"auravfx/server/internal/config"
	"auravfx/server/internal/observability"
	"auravfx/server/internal/rigs"
	"auravfx/server/internal/runtime"
	"auravfx/server/logging"
)

type fakeService struct {
	player   uuid.UUID
	settings config.ModelVFX
	lastRig  string
}

func (f *fakeService) Diagnostics() runtime.Diagnostics {
	cfg := config.Default()
	cfg.ModelVFX = f.settings
	return runtime.Diagnostics{Rigs: 7, RigPlayers: 2, Config: cfg}
}

func (f *fakeService) Audit() runtime.AuditReport {
	return runtime.AuditReport{ModelCosmetics: 1, PartChecks: 2, Resolved: 1, Missing: 1, Shown: 2, Lines: []string{"a", "b"}}
}

func (f *fakeService) Density(_ context.Context, player uuid.UUID) (runtime.DensityReport, error) {
	if player != f.player {
		return runtime.DensityReport{}, runtime.ErrPlayerNotFound
	}
	return runtime.DensityReport{World: "default", Nearby: 2, Total: 5, Radius: 24}, nil
}

func (f *fakeService) SpawnDebugRig(_ context.Context, player uuid.UUID, model string) (rigs.DebugSpawnResult, error) {
	if player != f.player {
		return rigs.DebugSpawnResult{}, runtime.ErrPlayerNotFound
	}
	f.lastRig = model
	return rigs.DebugSpawnResult{Success: true, ResolvedAssetID: model}, nil
}

func (f *fakeService) SetModelVFX(option string, value int) (string, config.ModelVFX, error) {
	key, err := f.settings.Set(option, value)
	if err != nil {
		return "", f.settings, err
	}
	f.settings = f.settings.Normalize()
	return key, f.settings, nil
}

func newTestHandler(t *testing.T, obs observability.Config) (http.Handler, *fakeService) {
	t.Helper()
	svc := &fakeService{player: uuid.New(), settings: config.Default().ModelVFX}
	metrics := &logging.Metrics{}
	metrics.TelemetryAdd("rigs_spawned", 3)
	return NewHTTPHandler(svc, HTTPHandlerConfig{Metrics: metrics, Observability: obs}), svc
}

func serve(handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload %s: %v", resp.Body.String(), err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	handler, _ := newTestHandler(t, observability.Default())
	resp := serve(handler, http.MethodGet, "/health", nil)
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsIncludesRuntimeAndMetrics(t *testing.T) {
	handler, _ := newTestHandler(t, observability.Default())
	resp := serve(handler, http.MethodGet, "/diagnostics", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	payload := decode(t, resp)
	if payload["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", payload["status"])
	}
	runtimePayload, ok := payload["runtime"].(map[string]any)
	if !ok || runtimePayload["rigs"] != float64(7) {
		t.Fatalf("expected runtime rigs=7, got %v", payload["runtime"])
	}
	metrics, ok := payload["metrics"].(map[string]any)
	if !ok || metrics["rigs_spawned"] != float64(3) {
		t.Fatalf("expected rigs_spawned metric, got %v", payload["metrics"])
	}
}

func TestAuditEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, observability.Default())
	payload := decode(t, serve(handler, http.MethodGet, "/audit", nil))
	if payload["missing"] != float64(1) || payload["partChecks"] != float64(2) {
		t.Fatalf("unexpected audit payload %v", payload)
	}
}

func TestDensityEndpoint(t *testing.T) {
	handler, svc := newTestHandler(t, observability.Default())

	resp := serve(handler, http.MethodGet, "/density?player="+svc.player.String(), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if payload := decode(t, resp); payload["nearby"] != float64(2) || payload["total"] != float64(5) {
		t.Fatalf("unexpected density payload %v", payload)
	}

	if resp := serve(handler, http.MethodGet, "/density?player=nope", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", resp.Code)
	}
	if resp := serve(handler, http.MethodGet, "/density?player="+uuid.NewString(), nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown player, got %d", resp.Code)
	}
}

func TestDebugRigEndpoint(t *testing.T) {
	handler, svc := newTestHandler(t, observability.Default())

	if resp := serve(handler, http.MethodGet, "/debug/rig", nil); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}

	body, _ := json.Marshal(debugRigRequest{Player: svc.player.String(), Model: "Server/Models/Orb.json"})
	resp := serve(handler, http.MethodPost, "/debug/rig", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if payload := decode(t, resp); payload["success"] != true {
		t.Fatalf("expected success, got %v", payload)
	}
	if svc.lastRig != "Server/Models/Orb.json" {
		t.Fatalf("expected model to reach the runtime, got %q", svc.lastRig)
	}

	if resp := serve(handler, http.MethodPost, "/debug/rig", []byte("{")); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", resp.Code)
	}
}

func TestModelVFXEndpoint(t *testing.T) {
	handler, svc := newTestHandler(t, observability.Default())

	resp := serve(handler, http.MethodPost, "/modelvfx", []byte(`{"option":"budget","value":"8"}`))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if payload := decode(t, resp); payload["key"] != "maxRigsPerPlayer" {
		t.Fatalf("unexpected key in %v", payload)
	}
	if svc.settings.MaxRigsPerPlayer != 8 {
		t.Fatalf("expected budget 8, got %d", svc.settings.MaxRigsPerPlayer)
	}

	if resp := serve(handler, http.MethodPost, "/modelvfx", []byte(`{"option":"radius","value":500}`)); resp.Code != http.StatusOK {
		t.Fatalf("expected numeric value to be accepted, got %d", resp.Code)
	}
	if svc.settings.LodNearbyRadius != config.MaxLodNearbyRadius {
		t.Fatalf("expected radius clamped to %d, got %d", config.MaxLodNearbyRadius, svc.settings.LodNearbyRadius)
	}

	if resp := serve(handler, http.MethodPost, "/modelvfx", []byte(`{"option":"warp","value":1}`)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown option, got %d", resp.Code)
	}
	if resp := serve(handler, http.MethodPost, "/modelvfx", []byte(`{"option":"lod","value":"many"}`)); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer value, got %d", resp.Code)
	}

	payload := decode(t, serve(handler, http.MethodGet, "/modelvfx", nil))
	if payload["lodNearbyRadius"] != float64(config.MaxLodNearbyRadius) {
		t.Fatalf("expected current settings, got %v", payload)
	}
}

func TestPprofIsOptIn(t *testing.T) {
	handler, _ := newTestHandler(t, observability.Default())
	if resp := serve(handler, http.MethodGet, "/debug/pprof/", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be disabled, got %d", resp.Code)
	}

	handler, _ = newTestHandler(t, observability.Config{EnablePprofTrace: true})
	if resp := serve(handler, http.MethodGet, "/debug/pprof/", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", resp.Code)
	}
}
