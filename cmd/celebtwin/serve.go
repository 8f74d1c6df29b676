package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aldr4GO/celebtwin/internal/config"
	"github.com/aldr4GO/celebtwin/internal/invoker"
	logpkg "github.com/aldr4GO/celebtwin/internal/logger"
	"github.com/aldr4GO/celebtwin/internal/metrics"
	"github.com/aldr4GO/celebtwin/internal/staging"
	chiTransport "github.com/aldr4GO/celebtwin/internal/transport/chi"
	healthuc "github.com/aldr4GO/celebtwin/internal/usecase/health"
	matchuc "github.com/aldr4GO/celebtwin/internal/usecase/match"
	"github.com/aldr4GO/celebtwin/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the celebtwin HTTP API server.
Configuration is read from config/<ENV>.yaml (ENV defaults to "local")
or from the file given with --config.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("config", "", "Path to a config file (overrides ENV lookup)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides http.port)")
}

func loadConfig(cmd *cobra.Command, env string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := mustGetString(cmd, "config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.HTTP.Port = port
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	env := config.GetEnv()

	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting celebtwin API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("staging_dir", cfg.Staging.Dir),
		zap.String("inference_workdir", cfg.Inference.Workdir),
		zap.Duration("inference_timeout", cfg.Inference.Timeout()),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	stager, err := staging.New(cfg.Staging.Dir, logger)
	if err != nil {
		return fmt.Errorf("failed to prepare staging directory: %w", err)
	}
	// Files older than any possible request were left by a crashed process.
	if n, err := stager.Sweep(2 * cfg.Inference.Timeout()); err != nil {
		logger.Warn("Failed to sweep staging directory", zap.String("dir", stager.Dir()), zap.Error(err))
	} else if n > 0 {
		logger.Info("Removed stale staged files", zap.String("dir", stager.Dir()), zap.Int("count", n))
	}

	matchSvc := matchuc.New(stager, invoker.New(logger), matchuc.Commands{
		Search:  matchuc.Command{Path: cfg.Inference.Search.Command, Args: cfg.Inference.Search.Args},
		Compare: matchuc.Command{Path: cfg.Inference.Compare.Command, Args: cfg.Inference.Compare.Args},
	}, matchuc.Limits{
		Workdir:   cfg.Inference.Workdir,
		Env:       cfg.Inference.Env,
		Timeout:   cfg.Inference.Timeout(),
		MaxOutput: cfg.Inference.MaxOutputBytes,
	}, logger)

	healthSvc := healthuc.New(stager, healthuc.PathResolver{Workdir: cfg.Inference.Workdir}, map[string]string{
		"search_command":  cfg.Inference.Search.Command,
		"compare_command": cfg.Inference.Compare.Command,
	})

	server := chiTransport.NewServer(matchSvc, healthSvc, cfg.HTTP.MaxUploadBytes(), logger)
	router := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, logger)

	if len(cfg.Auth.APIKeys) == 0 {
		logger.Warn("API key authentication is disabled")
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	// In-flight requests finish their invocation and cleanup before exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
