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

// Package objstore implements the blob store contract on top of an object
// storage bucket. Writes are staged in the transaction and uploaded on
// commit, so a rolled back transaction leaves the bucket untouched.
package objstore

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tallyforge/formvault/database/types"
)

// ErrObjectNotFound must be returned by a Backend when an object is missing
var ErrObjectNotFound = errors.New("object not found")

var errReadOnlyTxn = errors.New("transaction is read-only")

const (
	DefaultTimeout     = 60 * time.Second
	commitTimestampKey = "metadata_commit_timestamp"
)

// Backend is the subset of an object storage API used by Store
type Backend interface {
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, data []byte) error
	Remove(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Codec transforms object payloads on their way to and from the backend
type Codec interface {
	Seal(data []byte) ([]byte, error)
	Open(data []byte) ([]byte, error)
}

// Store maps binary blob keys onto hex encoded object names below a prefix
type Store struct {
	backend Backend
	codec   Codec
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
	mu      sync.RWMutex
}

func New(
	backend Backend,
	prefix string,
	timeout time.Duration,
	logger *slog.Logger,
) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Store{
		backend: backend,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
	}
}

// SetBackend swaps the backend once the underlying client has been started
func (s *Store) SetBackend(backend Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = backend
}

// SetCodec seals every payload written after the call
func (s *Store) SetCodec(codec Codec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codec = codec
}

func (s *Store) getBackend() (Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	if s.codec != nil {
		return sealedBackend{Backend: s.backend, codec: s.codec}, nil
	}
	return s.backend, nil
}

type sealedBackend struct {
	Backend
	codec Codec
}

func (b sealedBackend) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := b.Backend.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	plain, err := b.codec.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return plain, nil
}

func (b sealedBackend) Write(ctx context.Context, name string, data []byte) error {
	sealed, err := b.codec.Seal(data)
	if err != nil {
		return fmt.Errorf("seal %s: %w", name, err)
	}
	return b.Backend.Write(ctx, name, sealed)
}

func (s *Store) objectName(key []byte) string {
	return s.prefix + hex.EncodeToString(key)
}

func (s *Store) objectKey(name string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(name, s.prefix))
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// NewTransaction returns a staging transaction
func (s *Store) NewTransaction(update bool) types.Txn {
	return &stagedTxn{
		store:  s,
		update: update,
		writes: make(map[string][]byte),
	}
}

func (s *Store) validateTxn(txn types.Txn) (*stagedTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*stagedTxn)
	if !ok || t.store != s {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, types.ErrTxnFinished
	}
	return t, nil
}

func (s *Store) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := s.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	name := s.objectName(key)
	if val, ok := t.writes[name]; ok {
		if val == nil {
			return nil, types.ErrBlobKeyNotFound
		}
		return append([]byte(nil), val...), nil
	}
	backend, err := s.getBackend()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opContext()
	defer cancel()
	data, err := backend.Read(ctx, name)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, types.ErrBlobKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Store) Set(txn types.Txn, key, val []byte) error {
	t, err := s.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.update {
		return errReadOnlyTxn
	}
	// nil is reserved for staged deletes
	if val == nil {
		val = []byte{}
	}
	t.stage(s.objectName(key), append([]byte(nil), val...))
	return nil
}

func (s *Store) Delete(txn types.Txn, key []byte) error {
	t, err := s.validateTxn(txn)
	if err != nil {
		return err
	}
	if !t.update {
		return errReadOnlyTxn
	}
	t.stage(s.objectName(key), nil)
	return nil
}

// NewIterator lists the bucket once and merges staged writes from the
// transaction
func (s *Store) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	t, err := s.validateTxn(txn)
	if err != nil {
		return &iterator{err: err}
	}
	backend, err := s.getBackend()
	if err != nil {
		return &iterator{err: err}
	}
	ctx, cancel := s.opContext()
	defer cancel()
	prefix := s.objectName(opts.Prefix)
	names, err := backend.List(ctx, prefix)
	if err != nil {
		return &iterator{err: err}
	}
	seen := make(map[string]struct{}, len(names))
	keys := make([]string, 0, len(names))
	for _, name := range names {
		seen[name] = struct{}{}
		if val, ok := t.writes[name]; ok && val == nil {
			continue
		}
		keys = append(keys, name)
	}
	for name, val := range t.writes {
		if _, ok := seen[name]; ok || val == nil {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	if opts.Reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	}
	return &iterator{store: s, txn: t, names: keys, reverse: opts.Reverse}
}

func (s *Store) GetCommitTimestamp() (int64, error) {
	txn := s.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := s.Get(txn, []byte(commitTimestampKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt commit timestamp: %d bytes", len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil //nolint:gosec // round trip of an int64
}

func (s *Store) SetCommitTimestamp(timestamp int64, txn types.Txn) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(timestamp)) //nolint:gosec // round trip of an int64
	return s.Set(txn, []byte(commitTimestampKey), buf)
}
