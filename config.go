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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/api"
	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/plugin"
	"github.com/tallyforge/formvault/history"
)

const (
	defaultBlobPlugin     = "badger"
	defaultMetadataPlugin = "sqlite"
)

type Config struct {
	promRegistry   prometheus.Registerer
	logger         *slog.Logger
	authors        history.AuthorDirectory
	metricsHandler http.Handler
	dataDir        string
	blobPlugin     string
	metadataPlugin string
	listenAddress  string
	userHeader     string
	// tracingEndpoint overrides the OTLP endpoint from the environment
	tracingEndpoint string
	shutdownTimeout time.Duration
	maxIDAttempts   int
	tracing         bool
	tracingStdout   bool
}

func (c *Config) validate() error {
	if c.listenAddress == "" {
		return errors.New("no listen address defined")
	}
	if c.maxIDAttempts < 0 {
		return errors.New("max ID attempts must not be negative")
	}
	if c.shutdownTimeout < 0 {
		return errors.New("shutdown timeout must not be negative")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the
// Formvault config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new formvault config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		listenAddress: api.DefaultListenAddress,
		maxIDAttempts: history.DefaultMaxIDAttempts,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDataDir specifies the persistent data directory to use. The default
// is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin selects the blob store plugin that holds the version
// archive. "none" disables the archive
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin selects the relational store plugin
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log
// output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithListenAddress specifies the address the HTTP API listens on
func WithListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.listenAddress = addr
	}
}

// WithUserHeader specifies the request header that carries the caller's
// user ID
func WithUserHeader(header string) ConfigOptionFunc {
	return func(c *Config) {
		c.userHeader = header
	}
}

// WithAuthorDirectory specifies where version author display names come from
func WithAuthorDirectory(authors history.AuthorDirectory) ConfigOptionFunc {
	return func(c *Config) {
		c.authors = authors
	}
}

// WithMetricsHandler mounts handler on GET /metrics of the API listener
func WithMetricsHandler(handler http.Handler) ConfigOptionFunc {
	return func(c *Config) {
		c.metricsHandler = handler
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add
// metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s)
// endpoint using OTLP. This can be configured using the OTEL_EXPORTER_OTLP_*
// env vars documented in the otlptracehttp package
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires
// tracing to be enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithTracingEndpoint specifies the OTLP endpoint URL for spans
func WithTracingEndpoint(endpoint string) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingEndpoint = endpoint
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight requests
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithMaxIDAttempts bounds the inserts tried when a new version ID collides
func WithMaxIDAttempts(attempts int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxIDAttempts = attempts
	}
}

// DatabaseConfig returns the store settings. The default stores are opened
// directly so they share the configured logger and registry. Other plugins
// come from the plugin registry with data-dir pointed at the configured
// directory.
func (c *Config) DatabaseConfig() *database.Config {
	cfg := &database.Config{
		DataDir:      c.dataDir,
		Logger:       c.logger,
		PromRegistry: c.promRegistry,
	}
	switch c.metadataPlugin {
	case "", defaultMetadataPlugin:
	default:
		cfg.MetadataPlugin = c.metadataPlugin
		c.setPluginDataDir(plugin.PluginTypeMetadata, cfg.MetadataPlugin)
	}
	switch c.blobPlugin {
	case "", defaultBlobPlugin:
	default:
		cfg.BlobPlugin = c.blobPlugin
		if cfg.BlobPlugin != database.BlobPluginNone {
			c.setPluginDataDir(plugin.PluginTypeBlob, cfg.BlobPlugin)
		}
	}
	return cfg
}

func (c *Config) setPluginDataDir(pluginType plugin.PluginType, name string) {
	if c.dataDir == "" {
		return
	}
	if err := plugin.SetPluginOption(pluginType, name, "data-dir", c.dataDir); err != nil {
		c.logger.Debug(
			"plugin data-dir not set",
			"plugin", name,
			"error", err,
		)
	}
}
