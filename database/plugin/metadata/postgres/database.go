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

package postgres

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/database/plugin/metadata/internal/gormstore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MetadataStorePostgres stores metadata in Postgres.
type MetadataStorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger

	host         string
	port         uint
	user         string
	password     string
	database     string
	sslMode      string
	timeZone     string
	dsn          string // Data source name (postgres connection string)
	advisoryLock bool
}

// New creates a new database
func New(
	host string,
	port uint,
	user string,
	password string,
	database string,
	sslMode string,
	timeZone string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStorePostgres, error) {
	return NewWithOptions(
		WithHost(host),
		WithPort(port),
		WithUser(user),
		WithPassword(password),
		WithDatabase(database),
		WithSSLMode(sslMode),
		WithTimeZone(timeZone),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new database with options. The connection is
// opened by Start.
func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	db := &MetadataStorePostgres{}

	for _, opt := range opts {
		opt(db)
	}

	// Set defaults after options are applied
	if db.host == "" {
		db.host = "localhost"
	}
	if db.port == 0 {
		db.port = 5432
	}
	if db.user == "" {
		db.user = "postgres"
	}
	if db.database == "" {
		db.database = "postgres"
	}
	if db.sslMode == "" {
		db.sslMode = "disable"
	}
	if db.timeZone == "" {
		db.timeZone = "UTC"
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	db.logger = db.logger.With("component", "database", "store", "postgres")
	return db, nil
}

// AdvisoryLock reports whether publishes and reverts take a per-form
// advisory lock
func (d *MetadataStorePostgres) AdvisoryLock() bool {
	return d.advisoryLock
}

// DSN returns the connection string used by Start
func (d *MetadataStorePostgres) DSN() string {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		return dsn
	}
	parts := []string{
		"host=" + d.host,
		"user=" + d.user,
		"password=" + d.password,
		"dbname=" + d.database,
		"port=" + strconv.FormatUint(uint64(d.port), 10),
		"sslmode=" + d.sslMode,
	}
	if d.timeZone != "" {
		parts = append(parts, "TimeZone="+d.timeZone)
	}
	return strings.Join(parts, " ")
}

func (d *MetadataStorePostgres) dialect() gormstore.Dialect {
	ret := gormstore.Dialect{
		Name:            "postgres",
		CreateLiveIndex: gormstore.PartialLiveIndex,
		RowLocks:        true,
	}
	if d.advisoryLock {
		ret.AdvisoryLock = gormstore.PostgresAdvisoryLock
	}
	return ret
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	if d.Store != nil {
		return nil
	}
	config := gormstore.Config()
	config.PrepareStmt = true
	metadataDb, err := gorm.Open(postgres.Open(d.DSN()), config)
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres metadata store",
		"host", d.host,
		"port", d.port,
		"database", d.database,
		"advisory_lock", d.advisoryLock,
	)
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store, err := gormstore.New(metadataDb, d.dialect(), d.logger)
	if err != nil {
		return errors.Join(err, sqlDB.Close())
	}
	if err := store.Migrate(); err != nil {
		return errors.Join(err, sqlDB.Close())
	}
	if d.promRegistry != nil {
		if err := gormstore.RegisterDBStats(d.promRegistry, metadataDb, "postgres"); err != nil {
			d.logger.Warn("failed to register database metrics", "error", err)
		}
	}
	d.Store = store
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

// Close closes the connection pool. It is safe to call before Start.
func (d *MetadataStorePostgres) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
