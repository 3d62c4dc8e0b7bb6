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

package formvault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tallyforge/formvault/api"
	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/event"
	"github.com/tallyforge/formvault/history"
	"go.opentelemetry.io/otel"
)

// Server wires the stores, the history service and the HTTP API together
type Server struct {
	db            *database.Database
	eventBus      *event.EventBus
	history       *history.Service
	api           *api.Server
	shutdownFuncs []func(context.Context) error
	config        Config
	ready         chan struct{}
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &Server{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	return s, nil
}

// Run opens the stores and serves the API until ctx is cancelled or Stop is
// called
func (s *Server) Run(ctx context.Context) error {
	if s.config.tracing {
		if err := s.setupTracing(ctx); err != nil {
			return err
		}
	}
	db, err := database.New(s.config.DatabaseConfig())
	// A commit timestamp mismatch still returns the opened stores
	s.db = db
	if err != nil {
		var tsErr database.CommitTimestampError
		if errors.As(err, &tsErr) {
			s.config.logger.Error(
				"metadata and blob stores are out of sync",
				"error", err,
			)
		}
		_ = s.Stop()
		return fmt.Errorf("failed to open database: %w", err)
	}
	if !db.ArchiveEnabled() {
		s.config.logger.Warn("version archive disabled, force resets will not keep pruned versions")
	}
	svc, err := history.New(
		db,
		history.WithLogger(s.config.logger),
		history.WithPromRegistry(s.config.promRegistry),
		history.WithEventBus(s.eventBus),
		history.WithAuthorDirectory(s.config.authors),
		history.WithTracerProvider(otel.GetTracerProvider()),
		history.WithMaxIDAttempts(s.config.maxIDAttempts),
	)
	if err != nil {
		_ = s.Stop()
		return fmt.Errorf("failed to create history service: %w", err)
	}
	s.history = svc
	s.subscribeAuditLog()

	s.api = api.New(
		api.Config{
			ListenAddress:  s.config.listenAddress,
			MetricsHandler: s.config.metricsHandler,
			Users:          api.HeaderUserResolver{Header: s.config.userHeader},
		},
		svc,
		s.config.logger,
	)
	if err := s.api.Start(ctx); err != nil {
		_ = s.Stop()
		return fmt.Errorf("failed to start API server: %w", err)
	}
	close(s.ready)

	select {
	case <-ctx.Done():
		s.config.logger.Info("context cancelled, stopping server")
		if err := s.Stop(); err != nil {
			return err
		}
	case <-s.done:
	}
	return nil
}

// Ready is closed once the API is accepting requests
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the API listen address, nil until the server is ready
func (s *Server) Addr() net.Addr {
	if s.api == nil {
		return nil
	}
	return s.api.Addr()
}

// History returns the history service, nil until the server is ready
func (s *Server) History() *history.Service {
	return s.history
}

// EventBus returns the bus carrying history events
func (s *Server) EventBus() *event.EventBus {
	return s.eventBus
}

func (s *Server) Stop() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Server) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if s.config.shutdownTimeout > 0 {
		shutdownTimeout = s.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	s.config.logger.Debug("starting graceful shutdown")

	if s.api != nil {
		if stopErr := s.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if s.eventBus != nil {
		s.eventBus.Stop()
	}
	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}
	err = errors.Join(err, s.runShutdownFuncs(ctx))

	s.config.logger.Debug("graceful shutdown complete")
	close(s.done)
	return err
}

func (s *Server) runShutdownFuncs(ctx context.Context) error {
	var err error
	for _, fn := range s.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	s.shutdownFuncs = nil
	return err
}
