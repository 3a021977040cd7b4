package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/weavekit/weaver/internal/config"
	"github.com/weavekit/weaver/internal/feedback"
	"github.com/weavekit/weaver/internal/orchestrator"
	"github.com/weavekit/weaver/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the generation service",
		Long: `Serve runs the pipeline as a long-lived service: an HTTP endpoint for
generation requests, Prometheus metrics, and a NATS subscription that feeds
deployment failures back into the repair loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigFromFile(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTelemetry(ctx, "weaver", cfg.Telemetry.Endpoint)
		if err != nil {
			log.Printf("[Serve] Telemetry disabled: %v", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					log.Printf("[Serve] Telemetry shutdown: %v", err)
				}
			}()
		}
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	if cfg.Library.TemplateDir != "" {
		stopWatch, err := app.library.Watch(cfg.Library.TemplateDir)
		if err != nil {
			log.Printf("[Serve] Template hot reload disabled: %v", err)
		} else {
			defer stopWatch()
		}
	}

	if cfg.NATS.URL != "" {
		bridge, err := feedback.NewBridge(feedback.BridgeConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
		}, app.loop)
		if err != nil {
			return fmt.Errorf("failed to start failure bridge: %w", err)
		}
		defer bridge.Close()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGenerate(app, w, r)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Serve] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Flush library stats on a slow cadence so restarts keep learned rates.
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Serve] Shutting down")
			app.persistStats()
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		case err := <-errCh:
			return fmt.Errorf("http server failed: %w", err)
		case <-ticker.C:
			app.persistStats()
		}
	}
}

func handleGenerate(app *app, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Intent == "" {
		http.Error(w, "intent is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result := app.orchestrator.Generate(ctx, req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("[Serve] Failed to write response: %v", err)
	}
}
