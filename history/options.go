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

package history

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/event"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIDAttempts bounds the inserts tried when a generated version ID
// collides with an existing one
const DefaultMaxIDAttempts = 5

type ServiceOptionFunc func(*Service)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ServiceOptionFunc {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) ServiceOptionFunc {
	return func(s *Service) {
		s.promRegistry = registry
	}
}

// WithEventBus specifies the bus that receives history events after commit
func WithEventBus(eventBus *event.EventBus) ServiceOptionFunc {
	return func(s *Service) {
		s.eventBus = eventBus
	}
}

// WithAuthorDirectory specifies where author display fields come from
func WithAuthorDirectory(authors AuthorDirectory) ServiceOptionFunc {
	return func(s *Service) {
		s.authors = authors
	}
}

// WithTracerProvider specifies the provider for service spans. The global
// provider is used by default.
func WithTracerProvider(provider trace.TracerProvider) ServiceOptionFunc {
	return func(s *Service) {
		s.tracerProvider = provider
	}
}

// WithIDGenerator replaces NewVersionID
func WithIDGenerator(newID func() (string, error)) ServiceOptionFunc {
	return func(s *Service) {
		s.newID = newID
	}
}

// WithClock replaces time.Now for timestamps written by the service
func WithClock(now func() time.Time) ServiceOptionFunc {
	return func(s *Service) {
		s.now = now
	}
}

// WithMaxIDAttempts sets how many inserts are tried per new version
func WithMaxIDAttempts(attempts int) ServiceOptionFunc {
	return func(s *Service) {
		s.maxIDAttempts = attempts
	}
}
