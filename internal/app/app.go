package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"auravfx/server/internal/assets"
	"auravfx/server/internal/catalog"
	"auravfx/server/internal/config"
	"auravfx/server/internal/host/memhost"
	servernet "auravfx/server/internal/net"
	"auravfx/server/internal/permissions"
	"auravfx/server/internal/players"
	"auravfx/server/internal/render"
	"auravfx/server/internal/rigs"
	"auravfx/server/internal/runtime"
	"auravfx/server/internal/telemetry"
	"auravfx/server/logging"
	loggingSinks "auravfx/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	// Logger is the process logger. Defaults to a logrus logger configured
	// from LOG_FORMAT and LOG_LEVEL.
	Logger *logrus.Logger
	// ConfigPath overrides AURAVFX_CONFIG.
	ConfigPath string
	// EnvFiles are loaded before anything reads the environment. Missing
	// files are ignored.
	EnvFiles []string
}

func Run(ctx context.Context, cfg Config) error {
	envFiles := cfg.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	envErr := loadEnvFiles(envFiles)

	logrusCfg := logging.LogrusConfig{Format: os.Getenv("LOG_FORMAT"), Level: os.Getenv("LOG_LEVEL")}
	processLogger := cfg.Logger
	if processLogger == nil {
		processLogger = newProcessLogger(logrusCfg)
	}
	telemetryLogger := telemetry.WrapLogrus(processLogger)
	if envErr != nil {
		telemetryLogger.Printf("failed to load env file: %v", envErr)
	}

	configPath := cfg.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("AURAVFX_CONFIG")
	}
	if configPath == "" {
		configPath = "config/auravfx.json"
	}
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	settings = settings.ApplyEnv(os.LookupEnv, telemetryLogger)

	metrics := &logging.Metrics{}
	router, jsonSink, err := newRouter(processLogger, logrusCfg, settings, metrics)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		if jsonSink != nil {
			_ = jsonSink.Close()
		}
	}()
	publisher := logging.WithFields(router, map[string]any{"service": "auravfx"})

	catalogPaths := settings.CatalogPaths
	if len(catalogPaths) == 0 {
		catalogPaths = catalog.DefaultPaths()
	}
	cosmetics, err := catalog.Load(catalogPaths...)
	if err != nil {
		return fmt.Errorf("failed to load cosmetic catalog: %w", err)
	}
	telemetryLogger.Printf("catalog loaded: %s", cosmetics.Summary())
	for _, issue := range cosmetics.Issues() {
		telemetryLogger.Printf("warn: catalog: %s", issue)
	}

	particleRegistry := assets.NewMapRegistry()
	modelRegistry := assets.NewMapRegistry()
	syncRegistries(cosmetics, particleRegistry, modelRegistry)

	models := assets.NewResolver(modelRegistry, assets.ModelOptions(), telemetryLogger)
	particles := assets.NewResolver(particleRegistry, assets.ParticleOptions(), telemetryLogger)
	engine := rigs.NewEngine(rigs.Options{
		Models:    models,
		Logger:    telemetryLogger,
		Publisher: publisher,
		Metrics:   telemetry.WrapMetrics(metrics),
	})

	universe := memhost.NewUniverse(telemetryLogger)
	defer universe.Close()
	store := players.NewMemoryStore()

	rt := runtime.New(settings, runtime.Deps{
		Universe:    universe,
		Catalog:     cosmetics,
		Players:     store,
		Permissions: permissions.NewCache(permissions.AllowAll(), settings.PermissionTTL(), logging.SystemClock{}),
		Particles:   particles,
		Rigs:        engine,
		Renderer:    render.NewRenderer(telemetryLogger),
		Logger:      telemetryLogger,
		Publisher:   publisher,
		Metrics:     telemetry.WrapMetrics(metrics),
	})

	demoPlayers := 4
	if raw := os.Getenv("AURAVFX_DEMO_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			demoPlayers = value
		} else {
			telemetryLogger.Printf("invalid AURAVFX_DEMO_PLAYERS=%q: %v", raw, err)
		}
	}
	demo := newDemo(universe, store, cosmetics, rt, telemetryLogger)
	if err := demo.populate(settings, demoPlayers); err != nil {
		return fmt.Errorf("failed to populate demo worlds: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go demo.run(runCtx)
	rt.Start(runCtx)
	defer rt.Stop()

	handler := servernet.NewHTTPHandler(rt, servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Metrics:       metrics,
		Router:        router,
		Catalog:       cosmetics,
		Observability: settings.Observability,
	})

	srv := &http.Server{Addr: settings.HTTPAddr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	telemetryLogger.Printf("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func loadEnvFiles(paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func newProcessLogger(cfg logging.LogrusConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// newRouter wires the console sink and, when LOG_JSON_PATH is set, a
// newline-delimited JSON file sink.
func newRouter(processLogger *logrus.Logger, logrusCfg logging.LogrusConfig, settings config.Config, metrics *logging.Metrics) (*logging.Router, *os.File, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Logrus = logrusCfg
	if severity, ok := logging.ParseSeverity(strings.ToLower(logrusCfg.Level)); ok {
		logCfg.MinimumSeverity = severity
	}
	if settings.Debug {
		logCfg.MinimumSeverity = logging.SeverityDebug
	}

	if path := strings.TrimSpace(os.Getenv("LOG_JSON_PATH")); path != "" {
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
		logCfg.JSON.FilePath = path
	}

	var named []logging.NamedSink
	if logCfg.HasSink("logrus") {
		named = append(named, logging.NamedSink{Name: "logrus", Sink: loggingSinks.NewLogrusFrom(processLogger)})
	}
	var file *os.File
	if logCfg.HasSink("json") {
		f, err := os.OpenFile(logCfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", logCfg.JSON.FilePath, err)
		}
		file = f
		named = append(named, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(f, logCfg.JSON.FlushInterval)})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, processLogger, named, logging.WithMetrics(metrics))
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, nil, err
	}
	return router, file, nil
}

// syncRegistries publishes every asset the catalog references. Model rigs
// also get their per-part sub-assets.
func syncRegistries(cosmetics *catalog.Catalog, particleRegistry, modelRegistry *assets.MapRegistry) {
	particleAssets := make([]assets.Asset, 0)
	for _, id := range cosmetics.EffectIDs() {
		particleAssets = append(particleAssets, assets.Asset{ID: id})
	}
	particleRegistry.Replace(particleAssets)

	animations := []string{"Idle", "Loop", "Action"}
	modelAssets := make([]assets.Asset, 0)
	for _, def := range cosmetics.All() {
		if !def.IsEnabled() || !def.IsModel() {
			continue
		}
		modelAssets = append(modelAssets, assets.Asset{ID: assets.Normalize(def.ModelAssetID), Animations: animations})
		for _, part := range def.Profile.Parts() {
			if part.Suffix == "" {
				continue
			}
			modelAssets = append(modelAssets, assets.Asset{ID: rigs.AppendSuffix(def.ModelAssetID, part.Suffix), Animations: animations})
		}
	}
	modelRegistry.Replace(modelAssets)
}
