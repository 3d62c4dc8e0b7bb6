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

package objstore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/plugin/blob/internal/objstore"
	"github.com/tallyforge/formvault/database/types"
)

// memBackend is an in-memory bucket
type memBackend struct {
	objects  map[string][]byte
	failName string
	mu       sync.Mutex
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (m *memBackend) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.objects[name]
	if !ok {
		return nil, objstore.ErrObjectNotFound
	}
	return append([]byte(nil), val...), nil
}

func (m *memBackend) Write(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == m.failName {
		return errors.New("write refused")
	}
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *memBackend) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return objstore.ErrObjectNotFound
	}
	delete(m.objects, name)
	return nil
}

func (m *memBackend) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			ret = append(ret, name)
		}
	}
	sort.Strings(ret)
	return ret, nil
}

func newTestStore(backend objstore.Backend) *objstore.Store {
	return objstore.New(
		backend,
		"formvault/",
		0,
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
}

func TestWritesStagedUntilCommit(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(backend)
	key := types.ArchiveBlobKey(3, "v1")

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, key, []byte("doc")))
	// Visible inside the transaction
	val, err := store.Get(txn, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), val)
	assert.Empty(t, backend.objects)

	require.NoError(t, txn.Commit())
	assert.Len(t, backend.objects, 1)
	for name := range backend.objects {
		assert.True(t, strings.HasPrefix(name, "formvault/"))
	}

	rtxn := store.NewTransaction(false)
	defer rtxn.Rollback() //nolint:errcheck
	val, err = store.Get(rtxn, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("doc"), val)
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(backend)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Rollback())
	assert.Empty(t, backend.objects)
	require.ErrorIs(t, store.Set(txn, []byte("k"), []byte("v")), types.ErrTxnFinished)
}

func TestReadOnlyTxn(t *testing.T) {
	store := newTestStore(newMemBackend())
	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	require.Error(t, store.Set(txn, []byte("k"), []byte("v")))
	require.Error(t, store.Delete(txn, []byte("k")))
	_, err := store.Get(txn, []byte("k"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestStagedDeleteHidesObject(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(backend)
	prefix := types.ArchiveBlobFormPrefix(9)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, types.ArchiveBlobKey(9, "a"), []byte("a")))
	require.NoError(t, store.Set(txn, types.ArchiveBlobKey(9, "b"), []byte("b")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, types.ArchiveBlobKey(9, "a")))
	require.NoError(t, store.Set(txn, types.ArchiveBlobKey(9, "c"), []byte("c")))
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
	var ids []string
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		_, versionID, err := types.ArchiveBlobKeyParse(iter.Item().Key())
		require.NoError(t, err)
		ids = append(ids, versionID)
	}
	require.NoError(t, iter.Err())
	iter.Close()
	assert.Equal(t, []string{"b", "c"}, ids)
	require.NoError(t, txn.Commit())
	assert.Len(t, backend.objects, 2)
}

func TestCommitFailureReported(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(backend)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("bad"), []byte("v")))
	backend.failName = "formvault/" + "626164"
	require.Error(t, txn.Commit())
}

func TestUnavailableBackend(t *testing.T) {
	store := newTestStore(nil)
	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err := store.Get(txn, []byte("k"))
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
	store.SetBackend(newMemBackend())
	_, err = store.Get(txn, []byte("k"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(newMemBackend())
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)
	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(42, txn))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)
}

// xorCodec flips every byte so sealed payloads differ from the plaintext
type xorCodec struct{}

func (xorCodec) Seal(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ 0xff
	}
	return out, nil
}

func (c xorCodec) Open(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}
	return c.Seal(data)
}

func TestCodecSealsPayloads(t *testing.T) {
	backend := newMemBackend()
	store := newTestStore(backend)
	store.SetCodec(xorCodec{})
	key := types.ArchiveBlobKey(1, "sealed")

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, key, []byte("secret")))
	require.NoError(t, txn.Commit())
	for _, data := range backend.objects {
		assert.NotEqual(t, []byte("secret"), data)
	}

	rtxn := store.NewTransaction(false)
	defer rtxn.Rollback() //nolint:errcheck
	val, err := store.Get(rtxn, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), val)

	it := store.NewIterator(rtxn, types.BlobIteratorOptions{Prefix: types.ArchiveBlobFormPrefix(1)})
	defer it.Close()
	it.Rewind()
	require.True(t, it.Valid())
	val, err = it.Item().ValueCopy(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), val)
}
