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

// Package gormstore holds the query layer shared by the relational metadata
// plugins. Each plugin opens its own connection and describes its SQL
// dialect, and gets the full metadata store in return.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/types"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var errTxnFromOtherStore = errors.New("transaction from different store")

// Config returns the gorm configuration used by every metadata plugin
func Config() *gorm.Config {
	return &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Store implements the metadata store on top of a gorm connection
type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	dialect Dialect
}

// New wraps an open gorm connection. Call Migrate before use.
func New(db *gorm.DB, dialect Dialect, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("install tracing plugin: %w", err)
	}
	return &Store{
		db:      db,
		logger:  logger,
		dialect: dialect,
	}, nil
}

// Migrate creates or updates the schema, including the index that allows
// only one published version per form
func (s *Store) Migrate() error {
	for _, model := range models.MigrateModels {
		s.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	if s.dialect.CreateLiveIndex != nil {
		if err := s.dialect.CreateLiveIndex(s.db); err != nil {
			return fmt.Errorf("create live version index: %w", err)
		}
	}
	return nil
}

// DB returns the database handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Dialect returns the SQL dialect description
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}

// Transaction starts a transaction with a background context
func (s *Store) Transaction() types.Txn {
	txn, _ := s.BeginTxn(context.Background()) //nolint:errcheck // the error is kept in the txn
	return txn
}

// BeginTxn starts a transaction bound to ctx. Cancelling ctx aborts the
// transaction's statements.
func (s *Store) BeginTxn(ctx context.Context) (types.Txn, error) {
	db := s.db.WithContext(ctx).Begin()
	if db.Error != nil {
		s.logger.Error(
			"failed to begin transaction",
			"error", db.Error,
		)
		return &gormTxn{store: s, beginErr: db.Error}, db.Error
	}
	return &gormTxn{store: s, db: db}, nil
}

// gormTxn wraps a gorm transaction and implements types.Txn
type gormTxn struct {
	store    *Store
	db       *gorm.DB
	beginErr error
	finished bool
}

func (t *gormTxn) Commit() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	t.finished = true
	return t.db.Commit().Error
}

func (t *gormTxn) Rollback() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	t.finished = true
	return t.db.Rollback().Error
}

// resolveDB returns the handle for txn, or the shared handle when txn is nil.
// Callers holding a transaction must always pass it: the sqlite plugin runs a
// single connection and a nil txn would wait on the caller's own transaction.
func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	t, ok := txn.(*gormTxn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if t.beginErr != nil {
		return nil, t.beginErr
	}
	if t.store != s {
		return nil, errTxnFromOtherStore
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	return t.db, nil
}

// Savepoint runs fn inside a savepoint of txn. When fn fails the work done
// since the savepoint is undone and the rest of the transaction stays usable.
func (s *Store) Savepoint(txn types.Txn, name string, fn func() error) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := db.SavePoint(name).Error; err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if rbErr := db.RollbackTo(name).Error; rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	return nil
}
