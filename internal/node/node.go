// Copyright 2025 Blink Labs Software
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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tallyforge/formvault"
	"github.com/tallyforge/formvault/history"
	"github.com/tallyforge/formvault/internal/config"
)

// Run serves formvault with cfg until SIGINT or SIGTERM
func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout, err := cfg.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}

	opts := []formvault.ConfigOptionFunc{
		formvault.WithLogger(logger),
		formvault.WithDataDir(cfg.DataDir),
		formvault.WithBlobPlugin(cfg.BlobPlugin),
		formvault.WithMetadataPlugin(cfg.MetadataPlugin),
		formvault.WithListenAddress(cfg.ListenAddress()),
		formvault.WithUserHeader(cfg.UserHeader),
		formvault.WithAuthorDirectory(AuthorDirectory(cfg)),
		formvault.WithMaxIDAttempts(cfg.MaxIDAttempts),
		formvault.WithShutdownTimeout(shutdownTimeout),
		formvault.WithTracing(cfg.Tracing),
		formvault.WithTracingStdout(cfg.TracingStdout),
		formvault.WithTracingEndpoint(cfg.TracingEndpoint),
		// Enable metrics with default prometheus registry
		formvault.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}

	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error(
					fmt.Sprintf("failed to start metrics listener: %s", err),
					"component", "node",
				)
			}
		}()
	} else {
		opts = append(opts, formvault.WithMetricsHandler(promhttp.Handler()))
	}

	srv, err := formvault.New(formvault.NewConfig(opts...))
	if err != nil {
		return err
	}

	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	runErr := srv.Run(signalCtx)
	if runErr != nil {
		logger.Error("server error", "error", runErr)
	} else {
		logger.Info("shutdown complete")
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}
	return runErr
}

// AuthorDirectory builds the author directory from the config's authors
// section, nil when it is empty
func AuthorDirectory(cfg *config.Config) history.AuthorDirectory {
	if len(cfg.Authors) == 0 {
		return nil
	}
	ret := make(history.StaticAuthorDirectory, len(cfg.Authors))
	for id, author := range cfg.Authors {
		ret[id] = history.Author{
			ID:          id,
			DisplayName: author.DisplayName,
			Email:       author.Email,
		}
	}
	return ret
}
