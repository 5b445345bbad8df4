// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/trackerbridge/internal/action"
	"github.com/tombee/trackerbridge/internal/action/steps"
	"github.com/tombee/trackerbridge/internal/config"
	"github.com/tombee/trackerbridge/internal/log"
	"github.com/tombee/trackerbridge/internal/metrics"
	"github.com/tombee/trackerbridge/internal/queue"
	"github.com/tombee/trackerbridge/internal/retry"
	"github.com/tombee/trackerbridge/internal/runner"
	"github.com/tombee/trackerbridge/internal/tracing"
	"github.com/tombee/trackerbridge/internal/webhook"
	"github.com/tombee/trackerbridge/pkg/secrets"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
	"github.com/tombee/trackerbridge/pkg/targettracker"
)

// Version information (injected via ldflags at build time).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		listenAddr  = flag.String("listen", ":8080", "Address the webhook intake and metrics server listens on")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("trackerbridged %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	bootstrapLogger := log.New(log.FromEnv())

	cfg, err := config.Load()
	if err != nil {
		bootstrapLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	masker := secrets.NewMasker()
	masker.AddSecret(cfg.Bugzilla.APIKey)
	masker.AddSecret(cfg.Jira.APIKey)
	logger := log.NewRedacting(log.FromEnv(), masker)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.OTLPEndpoint != "" {
		shutdown, err := tracing.InitTracerProvider(ctx, version)
		if err != nil {
			logger.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	registry, err := action.Load(cfg.Actions.Path)
	if err != nil {
		logger.Error("failed to load action registry", "error", err)
		os.Exit(1)
	}

	source, err := sourcetracker.NewHTTPClient(sourcetracker.Config{
		BaseURL: cfg.Bugzilla.BaseURL,
		APIKey:  cfg.Bugzilla.APIKey,
	})
	if err != nil {
		logger.Error("failed to build source tracker client", "error", err)
		os.Exit(1)
	}

	target, err := targettracker.NewHTTPClient(targettracker.Config{
		BaseURL:  cfg.Jira.BaseURL,
		Username: cfg.Jira.Username,
		APIKey:   cfg.Jira.APIKey,
	})
	if err != nil {
		logger.Error("failed to build target tracker client", "error", err)
		os.Exit(1)
	}

	targetHost := ""
	if u, err := url.Parse(cfg.Jira.BaseURL); err == nil {
		targetHost = u.Host
	}

	queueBackend, err := queue.NewFileBackend(cfg.Queue.DSN)
	if err != nil {
		logger.Error("failed to open dead-letter queue", "error", err)
		os.Exit(1)
	}

	r := runner.Runner{
		Registry:   registry,
		TargetHost: targetHost,
		Logger:     logger,
		Clients: steps.Clients{
			Source:     source,
			Target:     target,
			TargetHost: targetHost,
			FaviconURL: cfg.Bugzilla.BaseURL + "/favicon.ico",
			Logger:     logger,
		},
	}

	worker := &retry.Worker{
		Queue:         queueBackend,
		RetryTimeout:  cfg.Queue.RetryTimeout,
		ConstantRetry: cfg.Queue.ConstantRetry,
		Logger:        logger,
		Run: func(ctx context.Context, item queue.Item) error {
			_, _, err := r.Execute(ctx, item.Payload)
			return err
		},
	}
	worker.Start(ctx)
	defer worker.Stop()

	handler := &webhook.Handler{
		Queue:        queueBackend,
		SharedSecret: cfg.Webhook.SharedSecret,
		Logger:       logger,
		Process: func(req *http.Request, request sourcetracker.WebhookRequest) error {
			_, _, err := r.Execute(req.Context(), request)
			return err
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/webhook", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              *listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trackerbridged listening", "addr", *listenAddr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
