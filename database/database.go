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

package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/database/plugin/blob"
	"github.com/tallyforge/formvault/database/plugin/blob/badger"
	"github.com/tallyforge/formvault/database/plugin/metadata"
	"github.com/tallyforge/formvault/database/plugin/metadata/sqlite"
)

// BlobPluginNone disables the blob store and with it the version archive
const BlobPluginNone = "none"

// Config selects the stores backing a Database.
//
// A store given directly wins over a plugin name. An empty plugin name opens
// the default store (sqlite or badger) in DataDir, or in memory when DataDir
// is empty. A named plugin is started from the plugin registry with the
// options gathered from flags, environment and config file.
type Config struct {
	PromRegistry   prometheus.Registerer
	Logger         *slog.Logger
	BlobStore      blob.BlobStore
	MetadataStore  metadata.MetadataStore
	BlobPlugin     string
	MetadataPlugin string
	DataDir        string
}

type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	config   *Config
}

// Blob returns the underlying blob store instance, nil when disabled
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// ArchiveEnabled reports whether pruned versions can be archived
func (d *Database) ArchiveEnabled() bool {
	return d.blob != nil
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() error {
	// Check commit timestamp
	if err := d.checkCommitTimestamp(); err != nil {
		return err
	}
	return nil
}

// New creates a new database instance from the provided config
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	db := &Database{
		logger: logger.With("component", "database"),
		config: config,
	}
	metadataDb, err := db.openMetadata()
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	db.metadata = metadataDb
	blobDb, err := db.openBlob()
	if err != nil {
		_ = metadataDb.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	db.blob = blobDb
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}

func (d *Database) openMetadata() (metadata.MetadataStore, error) {
	if d.config.MetadataStore != nil {
		return d.config.MetadataStore, nil
	}
	if d.config.MetadataPlugin != "" {
		return metadata.New(d.config.MetadataPlugin)
	}
	return sqlite.New(d.config.DataDir, d.config.Logger, d.config.PromRegistry)
}

func (d *Database) openBlob() (blob.BlobStore, error) {
	if d.config.BlobStore != nil {
		return d.config.BlobStore, nil
	}
	switch d.config.BlobPlugin {
	case BlobPluginNone:
		d.logger.Info("blob store disabled, pruned versions will not be archived")
		return nil, nil
	case "":
		return badger.New(
			badger.WithDataDir(d.config.DataDir),
			badger.WithLogger(d.config.Logger),
			badger.WithPromRegistry(d.config.PromRegistry),
		)
	default:
		return blob.New(d.config.BlobPlugin)
	}
}
