// cmd/driftline/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/driftline/engine/internal/api"
	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/config"
	"github.com/driftline/engine/internal/dispatcher"
	"github.com/driftline/engine/internal/game"
	"github.com/driftline/engine/internal/handlers"
	"github.com/driftline/engine/internal/input"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/monitor"
	intOtel "github.com/driftline/engine/internal/otel"
	"github.com/driftline/engine/internal/parser"
	"github.com/driftline/engine/internal/session"
	"github.com/driftline/engine/internal/storage"
	"github.com/driftline/engine/internal/telemetry"
	"github.com/driftline/engine/internal/worker"
	"github.com/driftline/engine/pkg/hostbridge"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentEngineVersion string = "0.1.0"
	BuildDate            string = "unknown"

	ExtensionName string = "driftline"
)

// file paths
var (
	// WorkDir is where the binary runs; config, logs and courses are
	// resolved against it.
	WorkDir string

	EngineLogFilePath string
	EngineLogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the zerolog-based packages (database, telemetry)
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// TelemetryManager ships samples and host metrics to InfluxDB
	TelemetryManager *telemetry.Manager

	// Session is the shared run/track/phase context
	Session *session.Context = session.NewContext()

	// BestTimes is the warm record cache shared by the race machine and the
	// :BEST: handler
	BestTimes *cache.BestTimeCache = cache.NewBestTimeCache()

	// FrameCounter counts ticks for the monitor's rate derivation
	FrameCounter *cache.SafeCounter = &cache.SafeCounter{}

	SessionStartTime time.Time = time.Now()

	// Services
	gameEngine      *game.Game
	handlerService  *handlers.Service
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	queues          *worker.Queues
	eventDispatcher *dispatcher.Dispatcher
	apiClient       *api.Client

	// Storage backend (optional until :INIT: or service start)
	storageBackend storage.Backend
)

// init wires the global managers before main dispatches a mode.
func init() {
	var err error

	WorkDir, err = os.Getwd()
	if err != nil {
		WorkDir = "."
	}

	// Bootstrap logging to stdout until the log file is open
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	// load config
	if err = config.Load(WorkDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	// create logs dir if it doesn't exist
	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	EngineLogFilePath = filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", ExtensionName, SessionStartTime.Format("20060102_150405")),
	)
	EngineLogFile, err = os.OpenFile(EngineLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", EngineLogFilePath)
	}

	// GELF must be dialed before Setup attaches sinks
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		if err := SlogManager.SetupGELF(graylogCfg.Address); err != nil {
			Logger.Warn("Failed to dial graylog", "error", err, "address", graylogCfg.Address)
		}
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    EngineLogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(EngineLogFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", EngineLogFilePath)

	// Every record carries the live track/phase/run context
	SlogManager.ContextAttrs = Session.Attrs

	var logSink = os.Stdout
	if EngineLogFile != nil {
		logSink = EngineLogFile
	}
	ZLogger = zerolog.New(logSink).With().Timestamp().Logger()

	if err := setupBridge(); err != nil {
		Logger.Error("Failed to set up host bridge!", "error", err)
		panic(err)
	}
}

// setupBridge creates the dispatcher and registers the lifecycle commands so
// :VERSION: and :INIT: answer immediately.
func setupBridge() error {
	hostbridge.SetVersion(CurrentEngineVersion)

	dispatcherLogger := logging.NewDispatcherLogger(Logger)
	d, err := dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	registerLifecycleHandlers(d)
	hostbridge.SetDispatcher(d)
	eventDispatcher = d

	Logger.Info("Dispatcher initialized with lifecycle handlers")
	return nil
}

// initExtension sends the ready handshake to the host, including the
// registered command set so the host can feature-detect across versions.
func initExtension() {
	hostbridge.WriteCallback(ExtensionName, ":ENGINE:READY:", "")
	hostbridge.WriteCallback(ExtensionName, ":VERSION:", CurrentEngineVersion)
	if commands, err := json.Marshal(eventDispatcher.Commands()); err == nil {
		hostbridge.WriteCallback(ExtensionName, ":COMMANDS:", string(commands))
	}
}

var engineOnce sync.Once

// startEngine assembles the game, handlers, storage, workers and monitor.
// Reached from the :INIT: command or directly by a CLI mode; a second call
// is a no-op so a host re-sending :INIT: cannot rebuild a live engine.
func startEngine() error {
	var err error
	engineOnce.Do(func() { err = buildEngine() })
	return err
}

func buildEngine() error {
	functionName := ":INIT:"

	queues = worker.NewQueues()

	apiCfg := config.GetAPIConfig()
	apiClient = api.New(apiCfg.ServerURL, apiCfg.APIKey)

	var bindings input.Bindings
	if raw := config.GetInputBindings(); len(raw) > 0 {
		var err error
		bindings, err = input.ParseBindings(raw)
		if err != nil {
			SlogManager.WriteLog(functionName, fmt.Sprintf(`Invalid input bindings, using defaults: %v`, err), "WARN")
			bindings = nil
		}
	}

	telemetryCfg := config.GetTelemetryConfig()
	sampleEvery := 0
	if telemetryCfg.Enabled {
		sampleEvery = telemetryCfg.SampleEvery
	}

	trackCfg := config.GetTrackConfig()
	gameEngine = game.New(game.Dependencies{
		Logger:       Logger,
		Session:      Session,
		Queues:       queues,
		BestTimes:    BestTimes,
		Emit:         func(ev game.Event) { handlerService.HandleGameEvent(ev) },
		FrameCounter: FrameCounter,
		Tuning:       config.GetVehicleTuning(),
		Geometry:     config.GetVehicleGeometry(),
		Camera:       config.GetCameraTuning(),
		Bindings:     bindings,
		TrackDir:     trackCfg.Dir,
		SampleEvery:  sampleEvery,
	})

	handlerService = handlers.NewService(handlers.Dependencies{
		Game:          gameEngine,
		Session:       Session,
		BestTimes:     BestTimes,
		LogManager:    SlogManager,
		Parser:        parser.NewParser(Logger),
		APIClient:     apiClient,
		ExtensionName: ExtensionName,
		EngineVersion: CurrentEngineVersion,
		GhostDir:      viper.GetString("storage.memory.outputDir"),
	})

	// InfluxDB metrics sink; falls back to a gzip line-protocol file when
	// the server is unreachable.
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("metrics_%s.lp.gz", SessionStartTime.Format("20060102_150405")))
		TelemetryManager = telemetry.NewManager(ZLogger, backupPath)
		if err := TelemetryManager.Connect(); err != nil {
			SlogManager.WriteLog(functionName, fmt.Sprintf(`InfluxDB unavailable: %v`, err), "WARN")
		}
	}

	if err := initStorage(); err != nil {
		return err
	}

	registerCommandHandlers(eventDispatcher)
	workerManager.RegisterHandlers(eventDispatcher)

	monitorService = monitor.NewService(monitor.Dependencies{
		LogManager:      SlogManager,
		Session:         Session,
		WorkerManager:   workerManager,
		Queues:          queues,
		Backend:         queueLengthsProvider(),
		FrameCounter:    FrameCounter,
		StatusDir:       viper.GetString("logsDir"),
		IsDatabaseValid: func() bool { return storageBackend != nil },
	})
	if !monitorService.IsRunning() {
		if err := monitorService.Start(); err != nil {
			Logger.Error("Failed to start monitor service", "error", err)
		}
	}

	go checkServerStatus()

	Logger.Info("Engine started", "version", CurrentEngineVersion, "storage", config.GetStorageConfig().Type)
	return nil
}

// initStorage creates the configured backend and the worker that drains the
// telemetry queues into it.
func initStorage() error {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	storageBackend = backend
	handlerService.SetBackend(backend)

	workerManager = worker.NewManager(worker.Dependencies{
		Backend:    backend,
		Telemetry:  TelemetryManager,
		Queues:     queues,
		Session:    Session,
		LogManager: SlogManager,
	})
	workerManager.Start()

	hostbridge.WriteCallback(ExtensionName, ":STORAGE:OK:", storageCfg.Type)
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return nil
}

// createStorageBackend builds a backend from config. Database backends dial
// their own connections and fall back internally.
func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	apiCfg := config.GetAPIConfig()
	dumpPath := filepath.Join(WorkDir,
		fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))

	return storage.NewBackend(storageCfg, storage.Dependencies{
		BestTimes:    BestTimes,
		LogManager:   SlogManager,
		Session:      Session,
		DumpPath:     dumpPath,
		StreamURL:    httpToWS(apiCfg.ServerURL) + "/api",
		StreamSecret: apiCfg.APIKey,
	})
}

// queueLengthsProvider exposes the backend's internal queue depths to the
// monitor when the backend tracks them.
func queueLengthsProvider() monitor.QueueLengthsProvider {
	if p, ok := storageBackend.(monitor.QueueLengthsProvider); ok {
		return p
	}
	return nil
}

func checkServerStatus() {
	if err := apiClient.Healthcheck(); err != nil {
		Logger.Info("Leaderboard server is offline")
	} else {
		Logger.Info("Leaderboard server is online")
	}
}

// registerLifecycleHandlers registers system/lifecycle command handlers with
// the dispatcher.
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		go func() {
			if err := startEngine(); err != nil {
				Logger.Error("Engine initialization failed", "error", err)
				return
			}
			initExtension()
		}()
		return "ok", nil
	})

	// Simple queries - sync return is sufficient, no callback needed
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentEngineVersion, BuildDate}, nil
	})

	d.Register(":HOST:VERSION:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) > 0 && handlerService != nil {
			handlerService.SetHostVersion(e.Args[0])
			Logger.Info("Host version", "version", handlerService.HostVersion())
		}
		return "ok", nil
	})

	d.Register(":SHUTDOWN:", func(e dispatcher.Event) (any, error) {
		go shutdown()
		return "ok", nil
	})
}

// registerCommandHandlers registers the game command set. Requires the
// handler service, so this runs after startEngine has built it.
func registerCommandHandlers(d *dispatcher.Dispatcher) {
	d.Register(":TRACK:LOAD:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.LoadTrack(e.Args)
	})

	d.Register(":RACE:START:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.StartRace(e.Args)
	})

	d.Register(":RACE:COUNTDOWN:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.CountdownTick(e.Args)
	})

	d.Register(":RACE:RESTART:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.RestartRace(e.Args)
	})

	d.Register(":FREEROAM:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.EnterFreeRoam(e.Args)
	})

	// Hot path: one call per keystroke edge.
	d.Register(":INPUT:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.SetInput(e.Args)
	})

	d.Register(":INPUT:SYNC:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.SyncInput(e.Args)
	})

	// Hot path: one call per rendered frame.
	d.Register(":TICK:", func(e dispatcher.Event) (any, error) {
		return nil, handlerService.Tick(e.Args)
	})

	d.Register(":STATE:", func(e dispatcher.Event) (any, error) {
		return handlerService.State(e.Args)
	})

	d.Register(":BEST:", func(e dispatcher.Event) (any, error) {
		return handlerService.BestTime(e.Args)
	})

	d.Register(":GHOST:", func(e dispatcher.Event) (any, error) {
		return handlerService.Ghost(e.Args)
	})
}

// shutdown drains the workers and closes every sink.
func shutdown() {
	Logger.Info("Shutting down")

	if monitorService != nil {
		monitorService.Stop()
	}
	if workerManager != nil {
		workerManager.Stop()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Error closing storage backend", "error", err)
		}
	}
	if TelemetryManager != nil {
		TelemetryManager.Close()
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := SlogManager.Flush(flushCtx); err != nil {
		Logger.Warn("Failed to flush logs", "error", err)
	}
	if EngineLogFile != nil {
		EngineLogFile.Close()
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
