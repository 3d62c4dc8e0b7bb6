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

package sqlite

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/database/plugin/metadata/internal/gormstore"
	"gorm.io/gorm"
)

const (
	metadataFileName = "metadata.sqlite"
	vacuumInterval   = 24 * time.Hour
	// foreign keys are off by default in sqlite
	commonPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
)

// MetadataStoreSqlite is the default metadata store. It keeps a single open
// connection, so writers are serialized and row locks are unnecessary.
type MetadataStoreSqlite struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	timerVacuum  *time.Timer
	dataDir      string
	vacuumWG     sync.WaitGroup
	timerMutex   sync.Mutex
	closed       bool
}

// New creates a sqlite metadata store. An empty data directory gives a
// private in-memory database.
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	return NewWithOptions(
		WithDataDir(dataDir),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions opens and migrates the database
func NewWithOptions(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	d := &MetadataStoreSqlite{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database", "store", "sqlite")

	dsn, err := d.dsn()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormstore.Config())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection serializes writers. It also keeps an in-memory database
	// alive for the life of the store.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	store, err := gormstore.New(db, gormstore.Dialect{
		Name:            "sqlite",
		CreateLiveIndex: gormstore.PartialLiveIndex,
	}, d.logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	d.Store = store
	if err := d.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if d.promRegistry != nil {
		if err := gormstore.RegisterDBStats(d.promRegistry, db, "sqlite"); err != nil {
			d.logger.Warn("failed to register database metrics", "error", err)
		}
	}
	d.scheduleDailyVacuum()
	return d, nil
}

func (d *MetadataStoreSqlite) dsn() (string, error) {
	if d.dataDir == "" {
		// A unique name keeps separate in-memory stores apart
		return fmt.Sprintf(
			"file:%s?mode=memory&cache=shared&%s",
			uuid.NewString(),
			commonPragmas,
		), nil
	}
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&%s",
		filepath.Join(d.dataDir, metadataFileName),
		commonPragmas,
	), nil
}

func (d *MetadataStoreSqlite) runVacuum() error {
	d.timerMutex.Lock()
	if d.dataDir == "" || d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.vacuumWG.Add(1)
	d.timerMutex.Unlock()
	defer d.vacuumWG.Done()
	return d.DB().Exec("VACUUM").Error
}

// scheduleDailyVacuum reclaims space left by deleted versions
func (d *MetadataStoreSqlite) scheduleDailyVacuum() {
	d.timerMutex.Lock()
	defer d.timerMutex.Unlock()
	if d.closed || d.dataDir == "" {
		return
	}
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
	}
	d.timerVacuum = time.AfterFunc(vacuumInterval, func() {
		defer d.scheduleDailyVacuum()
		d.logger.Debug("running vacuum on sqlite metadata database")
		if err := d.runVacuum(); err != nil {
			d.logger.Error(
				"failed to free unused space in metadata store",
				"error", err,
			)
		}
	})
}

// Start implements the plugin.Plugin interface. The store is opened by New.
func (d *MetadataStoreSqlite) Start() error {
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

// Close stops the vacuum timer and closes the database
func (d *MetadataStoreSqlite) Close() error {
	d.timerMutex.Lock()
	if d.closed {
		d.timerMutex.Unlock()
		return nil
	}
	d.closed = true
	if d.timerVacuum != nil {
		d.timerVacuum.Stop()
		d.timerVacuum = nil
	}
	d.timerMutex.Unlock()
	d.vacuumWG.Wait()
	if err := d.Store.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// DataDir returns the configured data directory, empty for in-memory
func (d *MetadataStoreSqlite) DataDir() string {
	return d.dataDir
}
