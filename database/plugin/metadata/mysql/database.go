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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/database/plugin/metadata/internal/gormstore"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// mysql error number for an unknown database
const errUnknownDatabase = 1049

// MetadataStoreMysql stores metadata in MySQL.
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger

	host     string
	port     uint
	user     string
	password string
	database string
	sslMode  string
	timeZone string
	dsn      string // Data source name (MySQL connection string)
	maxConns int
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
) (*MetadataStoreMysql, error) {
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
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	db := &MetadataStoreMysql{}

	for _, opt := range opts {
		opt(db)
	}

	// Set defaults after options are applied
	if db.host == "" {
		db.host = "localhost"
	}
	if db.port == 0 {
		db.port = 3306
	}
	if db.user == "" {
		db.user = "root"
	}
	if db.database == "" {
		db.database = "formvault"
	}
	if db.timeZone == "" {
		db.timeZone = "UTC"
	}
	if db.maxConns <= 0 {
		db.maxConns = 100
	}
	if db.logger == nil {
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	db.logger = db.logger.With("component", "database", "store", "mysql")
	return db, nil
}

// DSN returns the connection string used by Start and the database name it
// selects
func (d *MetadataStoreMysql) DSN() (string, string) {
	if dsn := strings.TrimSpace(d.dsn); dsn != "" {
		if parsedDB, ok := parseMysqlDatabaseFromDSN(dsn); ok {
			return dsn, parsedDB
		}
		return dsn, d.database
	}
	cfg := mysql.NewConfig()
	cfg.User = d.user
	cfg.Passwd = d.password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf(
		"%s:%s",
		d.host,
		strconv.FormatUint(uint64(d.port), 10),
	)
	cfg.DBName = d.database
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true
	if d.timeZone != "" {
		loc, err := time.LoadLocation(d.timeZone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Loc = loc
	}
	if d.sslMode != "" {
		cfg.TLSConfig = d.sslMode
	}
	return cfg.FormatDSN(), d.database
}

func (d *MetadataStoreMysql) open(dsn string) (*gorm.DB, error) {
	config := gormstore.Config()
	config.PrepareStmt = true
	return gorm.Open(gormmysql.Open(dsn), config)
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	if d.Store != nil {
		return nil
	}
	dsn, dbName := d.DSN()
	metadataDb, err := d.open(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != errUnknownDatabase {
			return err
		}
		created, createErr := d.ensureDatabaseExists(dsn, dbName)
		if createErr != nil {
			return errors.Join(err, createErr)
		}
		if !created {
			return err
		}
		if metadataDb, err = d.open(dsn); err != nil {
			return err
		}
	}
	d.logger.Info(
		"connected to mysql metadata store",
		"host", d.host,
		"port", d.port,
		"database", dbName,
	)
	sqlDB, err := metadataDb.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(d.maxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	store, err := gormstore.New(metadataDb, gormstore.Dialect{
		Name:            "mysql",
		CreateLiveIndex: gormstore.GeneratedColumnLiveIndex,
		RowLocks:        true,
	}, d.logger)
	if err != nil {
		return errors.Join(err, sqlDB.Close())
	}
	if err := store.Migrate(); err != nil {
		return errors.Join(err, sqlDB.Close())
	}
	if d.promRegistry != nil {
		if err := gormstore.RegisterDBStats(d.promRegistry, metadataDb, "mysql"); err != nil {
			d.logger.Warn("failed to register database metrics", "error", err)
		}
	}
	d.Store = store
	return nil
}

func (d *MetadataStoreMysql) ensureDatabaseExists(
	dsn string,
	dbName string,
) (bool, error) {
	if dbName == "" {
		return false, nil
	}
	adminDsn, ok := stripDatabaseFromDSN(dsn)
	if !ok {
		return false, nil
	}
	adminDb, err := d.open(adminDsn)
	if err != nil {
		return false, err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return false, err
	}
	defer sqlAdminDb.Close()
	d.logger.Info("creating missing database", "database", dbName)
	if result := adminDb.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName)); result.Error != nil {
		return false, result.Error
	}
	return true, nil
}

func parseMysqlDatabaseFromDSN(dsn string) (string, bool) {
	base := dsn
	if idx := strings.Index(base, "?"); idx >= 0 {
		base = base[:idx]
	}
	slash := strings.LastIndex(base, "/")
	if slash < 0 || slash == len(base)-1 {
		return "", false
	}
	return base[slash+1:], true
}

func stripDatabaseFromDSN(dsn string) (string, bool) {
	base := dsn
	params := ""
	if idx := strings.Index(dsn, "?"); idx >= 0 {
		base = dsn[:idx]
		params = dsn[idx+1:]
	}
	slash := strings.LastIndex(base, "/")
	if slash < 0 {
		return "", false
	}
	base = base[:slash+1]
	if params == "" {
		return base, true
	}
	return base + "?" + params, true
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

// Close closes the connection pool. It is safe to call before Start.
func (d *MetadataStoreMysql) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
