package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	nethttp "net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"street-sprint/engine/internal/catalog"
	"street-sprint/engine/internal/metrics"
	servernet "street-sprint/engine/internal/net"
	"street-sprint/engine/internal/net/ws"
	"street-sprint/engine/internal/policy"
	"street-sprint/engine/internal/pool"
	"street-sprint/engine/internal/scheduler"
	"street-sprint/engine/internal/sim"
	"street-sprint/engine/internal/telemetry"
	"street-sprint/engine/internal/variant"
	"street-sprint/engine/logging"
	loggingSinks "street-sprint/engine/logging/sinks"
)

type Config struct {
	Addr        string
	CatalogPath string
	Logger      telemetry.Logger

	Sim       sim.Config
	Scheduler scheduler.Config
	Policy    policy.Config
	Logging   logging.Config
}

func DefaultConfig() Config {
	logCfg := logging.DefaultConfig()
	logCfg.EnabledSinks = []string{"console", "broadcast"}
	return Config{
		Addr:        ":8080",
		CatalogPath: "config/segments/definitions.json",
		Sim:         sim.DefaultConfig(),
		Scheduler:   scheduler.DefaultConfig(),
		Policy:      policy.DefaultConfig(),
		Logging:     logCfg,
	}
}

// Run wires the engine together and serves it until the listener fails or the
// context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	applyEnvOverrides(&cfg, telemetryLogger)

	runID := uuid.NewString()
	logCfg := cfg.Logging
	logCfg.RunID = runID
	if logCfg.JSON.FilePath != "" && !logCfg.HasSink("json") {
		logCfg.EnabledSinks = append(append([]string(nil), logCfg.EnabledSinks...), "json")
	}

	hub := ws.NewHub(telemetryLogger)
	namedSinks, err := buildSinks(logCfg, hub)
	if err != nil {
		return err
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	recorder := metrics.NewRecorder()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	cat, err := catalog.Load(catalog.NewFileSource(cfg.CatalogPath), rng, telemetryLogger)
	if err != nil {
		return fmt.Errorf("failed to load segment catalog: %w", err)
	}
	telemetryLogger.Printf("catalog %s loaded: version=%s segments=%d",
		cfg.CatalogPath, cat.Version(), cat.Len())

	pools := pool.NewRegistry(telemetryLogger, recorder)
	warmup := pool.NewWarmup(pools, poolPlan(cat, cfg.Scheduler))

	sched := scheduler.New(scheduler.Deps{
		Catalog:   cat,
		Variants:  variant.NewTable(telemetryLogger),
		Lanes:     variant.NewLaneValidator(rng),
		Pools:     pools,
		Policy:    policy.New(cfg.Policy),
		Logger:    telemetryLogger,
		Metrics:   recorder,
		Publisher: router,
		Rand:      rng,
	}, cfg.Scheduler)
	defer sched.Shutdown()

	runner := sim.NewRunner(sim.Deps{
		Scheduler: sched,
		Catalog:   cat,
		Warmup:    warmup,
		Logger:    telemetryLogger,
		Metrics:   recorder,
	}, cfg.Sim)

	stop := make(chan struct{})
	go runner.Run(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(servernet.Deps{
		RunID:     runID,
		Runner:    runner,
		Scheduler: sched,
		Pools:     pools,
		Catalog:   cat,
		Router:    router,
		Hub:       hub,
	}, servernet.HTTPHandlerConfig{
		Logger:         telemetryLogger,
		MetricsHandler: metrics.Handler(),
	})

	srv := &nethttp.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	telemetryLogger.Printf("engine run %s listening on %s", runID, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// buildSinks constructs the sinks named by the logging config. The JSON sink
// additionally requires a file path; enabling it without one is a
// configuration error rather than a silent skip.
func buildSinks(cfg logging.Config, hub *ws.Hub) ([]logging.NamedSink, error) {
	var namedSinks []logging.NamedSink
	if cfg.HasSink("console") {
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "console", Sink: loggingSinks.NewConsole(os.Stdout),
		})
	}
	if cfg.HasSink("broadcast") && hub != nil {
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "broadcast", Sink: ws.NewSink(hub),
		})
	}
	if cfg.HasSink("json") {
		path := cfg.JSON.FilePath
		if path == "" {
			return nil, fmt.Errorf("json sink enabled without a file path")
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
		}
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json", Sink: loggingSinks.NewJSON(file, cfg.JSON.FlushInterval),
		})
	}
	return namedSinks, nil
}

func applyEnvOverrides(cfg *Config, logger telemetry.Logger) {
	if raw := os.Getenv("ADDR"); raw != "" {
		cfg.Addr = raw
	}
	if raw := os.Getenv("CATALOG_PATH"); raw != "" {
		cfg.CatalogPath = raw
	}
	if raw := os.Getenv("EVENT_LOG_PATH"); raw != "" {
		cfg.Logging.JSON.FilePath = raw
	}
	if raw := os.Getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Sim.TickRate = value
		} else {
			logger.Printf("invalid TICK_RATE=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("GOAL_DISTANCE"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Policy.GoalDistance = value
		} else {
			logger.Printf("invalid GOAL_DISTANCE=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("LOOK_AHEAD"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.Scheduler.LookAhead = value
		} else {
			logger.Printf("invalid LOOK_AHEAD=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("MAX_WINDOW"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Scheduler.MaxWindow = value
		} else {
			logger.Printf("invalid MAX_WINDOW=%q: %v", raw, err)
		}
	}
}

// poolPlan sizes each variant pool from the catalog: the largest per-segment
// demand for a category, times the number of segments that can be live at
// once. One extra segment covers the spawn-before-recycle overlap within a
// tick.
func poolPlan(cat *catalog.Catalog, cfg scheduler.Config) map[string]int {
	live := cfg.MaxWindow + 1
	if live < 2 {
		live = 2
	}

	maxPerSegment := make(map[string]int)
	maxCoins := 0
	maxSupport := 0
	for _, def := range cat.Definitions() {
		perSegment := make(map[string]int)
		for _, placement := range def.Obstacles {
			if placement.Category == "" {
				continue
			}
			perSegment[placement.Category]++
		}
		for category, count := range perSegment {
			if count > maxPerSegment[category] {
				maxPerSegment[category] = count
			}
		}
		coins := 0
		for _, group := range def.CoinGroups {
			coins += group.Count
		}
		if coins > maxCoins {
			maxCoins = coins
		}
		if len(def.SupportItems) > maxSupport {
			maxSupport = len(def.SupportItems)
		}
	}

	plan := make(map[string]int, len(maxPerSegment)+1+len(cfg.SupportItems))
	for category, count := range maxPerSegment {
		plan[category] = count * live
	}
	if maxCoins > 0 {
		plan[cfg.CoinKey] = maxCoins * live
	}
	if maxSupport > 0 {
		for _, item := range cfg.SupportItems {
			plan[item.Key] = maxSupport * live
		}
	}
	return plan
}
