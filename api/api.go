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

// Package api serves the form history service over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tallyforge/formvault/history"
)

const (
	DefaultListenAddress = ":8080"

	// maxBodyBytes bounds request bodies, schemas included
	maxBodyBytes = 4 << 20
)

// Config holds the API server settings
type Config struct {
	// MetricsHandler is mounted on GET /metrics when set
	MetricsHandler http.Handler
	Users          UserResolver
	Owners         OwnerAuthorizer
	ListenAddress  string
}

// Server is the form history REST API server
type Server struct {
	users      UserResolver
	owners     OwnerAuthorizer
	history    *history.Service
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	config     Config
	mu         sync.Mutex
}

// New creates an API server for svc. Without a UserResolver the caller is
// read from the X-User-Id header, and without an OwnerAuthorizer form
// ownership is taken from the form's creator.
func New(
	cfg Config,
	svc *history.Service,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.Users == nil {
		cfg.Users = HeaderUserResolver{}
	}
	if cfg.Owners == nil {
		cfg.Owners = NewCreatorAuthorizer(svc)
	}
	return &Server{
		config:  cfg,
		logger:  logger,
		history: svc,
		users:   cfg.Users,
		owners:  cfg.Owners,
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.config.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.config.MetricsHandler)
	}
	mux.HandleFunc("POST /api/v1/forms", s.handleCreateForm)
	mux.HandleFunc(
		"GET /api/v1/forms/{formId}",
		s.ownerOnly(s.handleGetForm),
	)
	mux.HandleFunc(
		"POST /api/v1/forms/{formId}/submissions",
		s.handleRecordSubmission,
	)
	mux.HandleFunc(
		"GET /api/v1/forms/{formId}/submissions/{submissionId}",
		s.ownerOnly(s.handleGetSubmission),
	)
	mux.HandleFunc(
		"GET /api/v1/forms/{formId}/archive",
		s.ownerOnly(s.handleListArchive),
	)
	mux.HandleFunc(
		"GET /api/v1/forms/{formId}/versions",
		s.ownerOnly(s.handleListVersions),
	)
	mux.HandleFunc(
		"POST /api/v1/forms/{formId}/versions",
		s.ownerOnly(s.handleCreateVersion),
	)
	mux.HandleFunc(
		"GET /api/v1/forms/{formId}/versions/published",
		s.ownerOnly(s.handleGetPublishedVersion),
	)
	mux.HandleFunc(
		"GET /api/v1/forms/{formId}/versions/{versionId}",
		s.ownerOnly(s.handleGetVersion),
	)
	mux.HandleFunc(
		"PATCH /api/v1/forms/{formId}/versions/{versionId}",
		s.ownerOnly(s.handleUpdateVersion),
	)
	mux.HandleFunc(
		"DELETE /api/v1/forms/{formId}/versions/{versionId}",
		s.ownerOnly(s.handleDeleteVersion),
	)
	mux.HandleFunc(
		"POST /api/v1/forms/{formId}/versions/{versionId}/publish",
		s.ownerOnly(s.handlePublish),
	)
	mux.HandleFunc(
		"POST /api/v1/forms/{formId}/versions/{versionId}/force-reset",
		s.ownerOnly(s.handleRevert(history.StrategyForceReset)),
	)
	mux.HandleFunc(
		"POST /api/v1/forms/{formId}/versions/{versionId}/make-live",
		s.ownerOnly(s.handleRevert(history.StrategyMakeLive)),
	)
	mux.HandleFunc(
		"POST /api/v1/forms/{formId}/versions/{versionId}/make-latest",
		s.ownerOnly(s.handleRevert(history.StrategyMakeLatest)),
	)
	return mux
}

// Start starts the HTTP server in a background goroutine. The server is
// shut down when ctx is cancelled or Stop is called.
func (s *Server) Start(
	ctx context.Context,
) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              s.config.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	s.mu.Unlock()

	ln, err := s.startServer(server)
	if err != nil {
		s.mu.Lock()
		s.httpServer = nil
		s.mu.Unlock()
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info(
		"API listener started on " + ln.Addr().String(),
	)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		srv := s.httpServer
		s.httpServer = nil
		s.mu.Unlock()

		if srv != nil {
			s.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(
	ctx context.Context,
) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv != nil {
		s.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer binds the listening socket first so port conflicts are
// reported by Start, then serves in a background goroutine.
func (s *Server) startServer(
	server *http.Server,
) (net.Listener, error) {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return ln, nil
}
