package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/soundcheck/internal/asr"
	"github.com/felixgeelhaar/soundcheck/internal/bench"
	"github.com/felixgeelhaar/soundcheck/internal/config"
	"github.com/felixgeelhaar/soundcheck/internal/log"
	"github.com/felixgeelhaar/soundcheck/internal/ux"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local bench page",
	Long: `Start the local bench web server. It serves a browser recorder page,
accepts recorded or uploaded audio as JSON, proxies it to the upstream
transcription server, and reports per-request timing.

Endpoints:
  GET  /               - recorder page
  GET  /health         - {"ok": true}
  POST /api/transcribe - {"wav_base64": ..., "filename": ...}

The server drains connections gracefully on SIGINT/SIGTERM.

Examples:
  # Bench against the configured upstream
  soundcheck serve

  # Different upstream and a pinned model
  soundcheck serve --upstream http://127.0.0.1:9000 --bench-model whisper-large-v3`,
	RunE: runServe,
}

var (
	serveListen          string
	serveUpstream        string
	serveModel           string
	serveMaxUploadMiB    int
	serveRequestTimeout  time.Duration
	serveShutdownTimeout time.Duration
)

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveListen, "listen", "", "bench server bind address")
	f.StringVar(&serveUpstream, "upstream", "", "upstream transcription server base URL")
	f.StringVar(&serveModel, "bench-model", "", "pin the model id sent upstream (default: resolve from /v1/models)")
	f.IntVar(&serveMaxUploadMiB, "max-upload-mib", 0, "request body cap in MiB")
	f.DurationVar(&serveRequestTimeout, "request-timeout", 0, "upstream transcription timeout")
	f.DurationVar(&serveShutdownTimeout, "shutdown-timeout", bench.DefaultShutdownTimeout, "connection drain budget on shutdown")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	cfg, err := cmdCtx.LoadConfig()
	if err != nil {
		return ux.FormatError(err, "loading configuration")
	}

	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Bench.Listen = serveListen
	}
	if f.Changed("upstream") {
		cfg.Bench.Upstream = serveUpstream
	}
	if f.Changed("bench-model") {
		cfg.Bench.Model = serveModel
	}
	if f.Changed("max-upload-mib") {
		cfg.Bench.MaxUploadMiB = serveMaxUploadMiB
	}
	if f.Changed("request-timeout") {
		cfg.Bench.RequestTimeout = config.Duration(serveRequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The bench is a long-running server: JSON logs on stdout.
	logger := log.Server()
	log.SetDefaultLogger(logger)

	srv := bench.New(bench.Options{
		Listen: cfg.Bench.Listen,
		Client: asr.New(asr.Config{
			BaseURL:        cfg.Bench.Upstream,
			RequestTimeout: cfg.Bench.RequestTimeout.Std(),
		}),
		Model:           cfg.Bench.Model,
		MaxUploadMiB:    cfg.Bench.MaxUploadMiB,
		ShutdownTimeout: serveShutdownTimeout,
		Logger:          logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return ux.FormatError(err, "bench server")
		}
		return nil

	case <-cmd.Context().Done():
		logger.Info("shutting down bench server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}
