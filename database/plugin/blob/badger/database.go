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

package badger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tallyforge/formvault/database/types"
)

const (
	blobSubdir     = "archive"
	gcInterval     = 10 * time.Minute
	gcDiscardRatio = 0.5
)

// BlobStoreBadger keeps archived form versions in badger. With no data
// directory the store is in-memory and nothing survives Close.
type BlobStoreBadger struct {
	promRegistry   prometheus.Registerer
	metrics        *blobMetrics
	db             *badger.DB
	logger         *slog.Logger
	gcStopCh       chan struct{}
	dataDir        string
	gcWg           sync.WaitGroup
	blockCacheSize uint64
	indexCacheSize uint64
	closeOnce      sync.Once
	gcEnabled      bool
}

// New opens a badger store using the provided options
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	d := &BlobStoreBadger{
		gcEnabled:      true,
		blockCacheSize: DefaultBlockCacheSize,
		indexCacheSize: DefaultIndexCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	d.logger = d.logger.With("component", "database", "store", "badger")

	badgerOpts, err := d.badgerOptions()
	if err != nil {
		return nil, err
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	d.db = db
	if d.promRegistry != nil {
		d.metrics = newBlobMetrics(d.promRegistry)
	}
	// GC has nothing to reclaim without a value log on disk
	if d.gcEnabled && d.dataDir != "" {
		d.gcStopCh = make(chan struct{})
		d.gcWg.Add(1)
		go d.gcLoop()
	}
	return d, nil
}

func (d *BlobStoreBadger) badgerOptions() (badger.Options, error) {
	if d.dataDir == "" {
		return badger.DefaultOptions("").
			WithLogger(NewBadgerLogger(d.logger)).
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true), nil
	}
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return badger.Options{}, fmt.Errorf("failed to create data dir: %w", err)
	}
	return badger.DefaultOptions(filepath.Join(d.dataDir, blobSubdir)).
		WithLogger(NewBadgerLogger(d.logger)).
		WithLoggingLevel(badger.WARNING).
		WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec // bounded by config
		WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec // bounded by config
		WithCompression(options.Snappy), nil
}

func (d *BlobStoreBadger) gcLoop() {
	defer d.gcWg.Done()
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.runGc()
		case <-d.gcStopCh:
			return
		}
	}
}

// runGc rewrites value log files until badger reports nothing left to do
func (d *BlobStoreBadger) runGc() {
	for {
		err := d.db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			if d.metrics != nil {
				d.metrics.gcRuns.Inc()
			}
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) {
			d.logger.Warn("value log GC failed", "error", err)
		}
		return
	}
}

// Start implements the plugin.Plugin interface. The store is opened by New.
func (d *BlobStoreBadger) Start() error {
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *BlobStoreBadger) Stop() error {
	return d.Close()
}

// Close stops GC and closes the underlying database. It is safe to call more
// than once.
func (d *BlobStoreBadger) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.gcStopCh != nil {
			close(d.gcStopCh)
			d.gcWg.Wait()
		}
		err = d.db.Close()
	})
	return err
}

// DB returns the database handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

// NewTransaction starts a badger transaction
func (d *BlobStoreBadger) NewTransaction(update bool) types.Txn {
	return &badgerTxn{store: d, tx: d.db.NewTransaction(update)}
}

func (d *BlobStoreBadger) Get(txn types.Txn, key []byte) ([]byte, error) {
	bt, err := d.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	item, err := bt.tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	d.countOp("get")
	return item.ValueCopy(nil)
}

func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	bt, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if err := bt.tx.Set(key, val); err != nil {
		return err
	}
	d.countOp("set")
	if d.metrics != nil {
		d.metrics.bytesWritten.Add(float64(len(val)))
	}
	return nil
}

func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	bt, err := d.validateTxn(txn)
	if err != nil {
		return err
	}
	if err := bt.tx.Delete(key); err != nil {
		return err
	}
	d.countOp("delete")
	return nil
}

// NewIterator iterates keys within a transaction. Items must be read before
// the transaction finishes.
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	bt, err := d.validateTxn(txn)
	if err != nil {
		return &errorIterator{err: err}
	}
	return &badgerIterator{
		iter: bt.tx.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
			Prefix:         opts.Prefix,
			Reverse:        opts.Reverse,
		}),
	}
}

func (d *BlobStoreBadger) countOp(op string) {
	if d.metrics != nil {
		d.metrics.ops.WithLabelValues(op).Inc()
	}
}
