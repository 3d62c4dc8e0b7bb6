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

// Package history implements form version control: the version store, the
// version factory, the publish coordinator and the revert engine.
//
// Every mutating operation runs in one transaction that starts by locking the
// form row. Events are published only after the transaction commits. Callers
// are expected to have authenticated the user and checked form ownership.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tallyforge/formvault/history"

// Version is the caller-facing view of a stored version
type Version struct {
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PublishedAt      *time.Time
	FirstPublishedAt *time.Time
	Author           *Author
	Metadata         models.VersionMetadata
	Schema           json.RawMessage
	ID               string
	Description      string
	CreatedBy        string
	FormID           uint
	IsPublished      bool
}

// ParentVersionID returns the parent's ID, empty for an initial version
func (v *Version) ParentVersionID() string {
	if v.Metadata.ParentVersionID == nil {
		return ""
	}
	return *v.Metadata.ParentVersionID
}

func newVersion(v *models.FormVersion) *Version {
	return &Version{
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
		PublishedAt:      v.PublishedAt,
		FirstPublishedAt: v.FirstPublishedAt,
		Metadata:         v.Metadata.Data(),
		Schema:           json.RawMessage(v.Schema),
		ID:               v.VersionID,
		Description:      v.Description,
		CreatedBy:        v.CreatedBy,
		FormID:           v.FormID,
		IsPublished:      v.IsPublished,
	}
}

type Service struct {
	db             *database.Database
	eventBus       *event.EventBus
	authors        AuthorDirectory
	logger         *slog.Logger
	promRegistry   prometheus.Registerer
	metrics        *historyMetrics
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	newID          func() (string, error)
	now            func() time.Time
	maxIDAttempts  int
}

// New returns a Service backed by db
func New(db *database.Database, opts ...ServiceOptionFunc) (*Service, error) {
	if db == nil {
		return nil, errors.New("history: database is required")
	}
	s := &Service{
		db:            db,
		newID:         NewVersionID,
		now:           time.Now,
		maxIDAttempts: DefaultMaxIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "history")
	if s.promRegistry != nil {
		s.metrics = newHistoryMetrics(s.promRegistry)
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	s.tracer = s.tracerProvider.Tracer(tracerName)
	if s.maxIDAttempts < 1 {
		s.maxIDAttempts = 1
	}
	return s, nil
}

// ArchiveEnabled reports whether force resets keep a copy of pruned versions
func (s *Service) ArchiveEnabled() bool {
	return s.db.ArchiveEnabled()
}

// run executes fn in a transaction bound to ctx. Any error rolls the whole
// transaction back and is returned as an *Error.
func (s *Service) run(
	ctx context.Context,
	op string,
	readWrite bool,
	attrs []attribute.KeyValue,
	fn func(ctx context.Context, txn *database.Txn) error,
) error {
	ctx, span := s.tracer.Start(
		ctx,
		"history."+op,
		trace.WithAttributes(attrs...),
	)
	defer span.End()
	start := time.Now()
	err := s.runTxn(ctx, readWrite, fn)
	if err != nil {
		herr, logCause := classify(op, err)
		if logCause {
			s.logger.Error(
				"history operation failed",
				"op", op,
				"error", err,
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, herr.Error())
		err = herr
	}
	if s.metrics != nil {
		s.metrics.observe(op, start, err)
	}
	return err
}

func (s *Service) runTxn(
	ctx context.Context,
	readWrite bool,
	fn func(ctx context.Context, txn *database.Txn) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn, err := s.db.BeginTxn(ctx, readWrite)
	if err != nil {
		txn.Release()
		return err
	}
	if !readWrite {
		defer txn.Release()
		return fn(ctx, txn)
	}
	return txn.Do(func(txn *database.Txn) error {
		return fn(ctx, txn)
	})
}

// lockForm takes the per-form lock that serializes every mutation of the
// form's history
func (s *Service) lockForm(formID uint, txn *database.Txn) (*models.Form, error) {
	form, err := s.db.LockForm(formID, txn)
	if err != nil {
		if errors.Is(err, models.ErrFormNotFound) {
			return nil, newError(KindNotFound, "", ErrFormNotFound)
		}
		return nil, err
	}
	return form, nil
}

func (s *Service) publishEvent(eventType event.EventType, data any) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func formAttrs(formID uint, versionID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64("form.id", int64(formID)), //nolint:gosec // form IDs fit in int64
	}
	if versionID != "" {
		attrs = append(attrs, attribute.String("version.id", versionID))
	}
	return attrs
}
