package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"enferd/internal/activity"
	"enferd/internal/config"
	"enferd/internal/httpapi"
	"enferd/internal/registry"
	"enferd/internal/serving"
	"enferd/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath   string
		logLevel  string
		corsAllow bool
	)
	cfg := config.Config{}

	cmd := &cobra.Command{
		Use:           "enferd",
		Short:         "Edge inference-serving daemon with batching and admission control",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fileCfg := config.Config{}
			if cfgPath != "" {
				var err error
				fileCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			}
			merged := mergeConfig(cmd, fileCfg, cfg)
			return run(merged, logLevel, corsAllow)
		},
	}

	defaultAddr := ":8080"
	if v := os.Getenv("ENFERD_ADDR"); v != "" {
		defaultAddr = v
	}
	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "Path to config file (.toml, .yaml, .json)")
	f.StringVar(&cfg.Addr, "addr", defaultAddr, "HTTP listen address, e.g. :8080")
	f.StringVar(&cfg.ModelsDir, "models-dir", "", "Directory to scan for *.onnx model files with sidecar metadata")
	f.IntVar(&cfg.MaxBatchWaitMS, "max-batch-wait-ms", 10, "Max time the oldest queued request waits before dispatch")
	f.IntVar(&cfg.SessionAcquireTimeoutMS, "session-acquire-timeout-ms", 2000, "Max time a batch waits for a free session")
	f.IntVar(&cfg.QueueDepthCeiling, "queue-depth-ceiling", 32, "Per-model pending-request limit")
	f.Int64Var(&cfg.MemoryBudgetBytes, "memory-budget-bytes", 0, "Global budget for queued request payloads (0=unlimited)")
	f.IntVar(&cfg.DefaultMaxBatchSize, "max-batch-size", 8, "Default max batch size for models without one")
	f.IntVar(&cfg.DefaultSessionPoolSize, "session-pool-size", 1, "Default session pool size for models without one")
	f.StringVar(&cfg.OnnxLibraryPath, "onnx-lib", "", "Path to the ONNX Runtime shared library")
	f.StringVar(&cfg.ActivityDBPath, "activity-db", "", "SQLite path for the request activity log (empty=disabled)")
	f.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVar(&corsAllow, "cors", false, "Enable permissive CORS for browser clients")
	return cmd
}

// mergeConfig overlays flag values onto the config file: flags the user set
// explicitly win, otherwise the file value is kept when present.
func mergeConfig(cmd *cobra.Command, file, flags config.Config) config.Config {
	out := file
	set := cmd.Flags().Changed
	if out.Addr == "" || set("addr") {
		out.Addr = flags.Addr
	}
	if out.ModelsDir == "" || set("models-dir") {
		out.ModelsDir = flags.ModelsDir
	}
	if out.MaxBatchWaitMS == 0 || set("max-batch-wait-ms") {
		out.MaxBatchWaitMS = flags.MaxBatchWaitMS
	}
	if out.SessionAcquireTimeoutMS == 0 || set("session-acquire-timeout-ms") {
		out.SessionAcquireTimeoutMS = flags.SessionAcquireTimeoutMS
	}
	if out.QueueDepthCeiling == 0 || set("queue-depth-ceiling") {
		out.QueueDepthCeiling = flags.QueueDepthCeiling
	}
	if out.MemoryBudgetBytes == 0 || set("memory-budget-bytes") {
		out.MemoryBudgetBytes = flags.MemoryBudgetBytes
	}
	if out.DefaultMaxBatchSize == 0 || set("max-batch-size") {
		out.DefaultMaxBatchSize = flags.DefaultMaxBatchSize
	}
	if out.DefaultSessionPoolSize == 0 || set("session-pool-size") {
		out.DefaultSessionPoolSize = flags.DefaultSessionPoolSize
	}
	if out.OnnxLibraryPath == "" || set("onnx-lib") {
		out.OnnxLibraryPath = flags.OnnxLibraryPath
	}
	if out.ActivityDBPath == "" || set("activity-db") {
		out.ActivityDBPath = flags.ActivityDBPath
	}
	return out
}

func run(cfg config.Config, logLevel string, corsAllow bool) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()

	// The ONNX runtime environment is process-wide; initialize it once here
	// so backends only have to open sessions.
	if cfg.OnnxLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.OnnxLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		log.Warn().Err(err).Msg("onnx runtime unavailable; only sim-backend models will load")
	} else {
		defer func() { _ = ort.DestroyEnvironment() }()
	}

	hub := serving.NewHub()
	engine := serving.New(serving.Config{
		MaxBatchWait:           time.Duration(cfg.MaxBatchWaitMS) * time.Millisecond,
		SessionAcquireTimeout:  time.Duration(cfg.SessionAcquireTimeoutMS) * time.Millisecond,
		QueueDepthCeiling:      cfg.QueueDepthCeiling,
		MemoryBudgetBytes:      cfg.MemoryBudgetBytes,
		DefaultMaxBatchSize:    cfg.DefaultMaxBatchSize,
		DefaultSessionPoolSize: cfg.DefaultSessionPoolSize,
		Logger:                 log,
		Publisher:              hub,
	})
	defer func() { _ = engine.Close() }()

	for _, m := range startupModels(cfg, log) {
		if err := engine.Register(m); err != nil {
			log.Error().Str("model", m.ID).Err(err).Msg("register failed")
			continue
		}
	}

	if cfg.ActivityDBPath != "" {
		alog, err := activity.Open(cfg.ActivityDBPath)
		if err != nil {
			return fmt.Errorf("open activity log: %w", err)
		}
		defer func() { _ = alog.Close() }()
		httpapi.SetActivityLog(alog)
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	defer baseCancel()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	if corsAllow {
		httpapi.SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "DELETE"}, []string{"Content-Type"})
	}

	mux := httpapi.NewMux(engine, hub)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Msg("enferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	baseCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// startupModels merges discovered artifacts with models declared in config;
// config entries win on id collision.
func startupModels(cfg config.Config, log zerolog.Logger) []types.Model {
	byID := make(map[string]types.Model)
	var order []string
	if cfg.ModelsDir != "" {
		found, err := registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			log.Warn().Str("dir", cfg.ModelsDir).Err(err).Msg("model scan failed")
		}
		for _, m := range found {
			byID[m.ID] = m
			order = append(order, m.ID)
		}
	}
	for _, mc := range cfg.Models {
		m := types.Model{
			ID:              mc.ID,
			Name:            mc.Name,
			Path:            mc.Path,
			Backend:         mc.Backend,
			InputShape:      mc.InputShape,
			OutputShape:     mc.OutputShape,
			InputName:       mc.InputName,
			OutputName:      mc.OutputName,
			MaxBatchSize:    mc.MaxBatchSize,
			SessionPoolSize: mc.SessionPoolSize,
		}
		if _, seen := byID[m.ID]; !seen {
			order = append(order, m.ID)
		}
		byID[m.ID] = m
	}
	out := make([]types.Model, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}
