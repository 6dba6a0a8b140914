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

	"inferd/internal/compare"
	"inferd/internal/config"
	"inferd/internal/coordinator"
	"inferd/internal/engine"
	"inferd/internal/httpapi"
	"inferd/internal/registry"
	"inferd/internal/supervisor"
)

type serveOptions struct {
	addr         string
	configPath   string
	modelsDir    string
	defaultModel string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Local model-worker orchestration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newModelsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address, e.g. :8080 (overrides config)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a .yaml/.json/.toml config file")
	cmd.Flags().StringVar(&opts.modelsDir, "models-dir", "", "Directory to scan for *.gguf model files (overrides config)")
	cmd.Flags().StringVar(&opts.defaultModel, "default-model", "", "Default model id when a request omits one")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	return cmd
}

// newModelsCmd lists the models a serve run would register.
func newModelsCmd() *cobra.Command {
	var modelsDir string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models discovered in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadDir(modelsDir)
			if err != nil {
				return err
			}
			for _, m := range reg {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", m.ID, m.Quant, m.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelsDir, "models-dir", "~/models/llm", "Directory to scan for *.gguf model files")
	return cmd
}

func runServe(opts serveOptions) error {
	log := newLogger(opts.logLevel)

	cfg := config.Config{}
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}
	if opts.modelsDir != "" {
		cfg.ModelsDir = opts.modelsDir
	}
	if opts.defaultModel != "" {
		cfg.DefaultModel = opts.defaultModel
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "~/models/llm"
	}

	reg, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	coord := coordinator.New(coordinator.Config{
		Registry:     reg,
		DefaultModel: cfg.DefaultModel,
		DrainTimeout: time.Duration(cfg.DrainTimeoutSec) * time.Second,
		NewEngine: func() (engine.Engine, error) {
			return engine.New(engine.Config{
				CtxSize:   cfg.Engine.CtxSize,
				Threads:   cfg.Engine.Threads,
				GPULayers: cfg.Engine.GPULayers,
			}), nil
		},
		Logger: log,
	})
	sup := supervisor.New(coord, supervisor.Config{
		InactivityTimeout: time.Duration(cfg.Supervisor.InactivityTimeoutSec) * time.Second,
		MaxAttempts:       cfg.Supervisor.MaxAttempts,
		Detector: supervisor.DetectorConfig{
			TailWindow: cfg.Supervisor.RepetitionTailWindow,
			MaxPattern: cfg.Supervisor.RepetitionMaxPattern,
		},
		Logger: log,
	})
	orch := compare.New(sup, log)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)

	mux := httpapi.NewMux(coord, sup, orch)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", len(reg)).Msg("inferd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := coord.UnloadAll(ctx); err != nil {
		log.Warn().Err(err).Msg("unload on shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
