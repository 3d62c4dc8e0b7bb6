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

package badger_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/plugin/blob/badger"
	"github.com/tallyforge/formvault/database/types"
)

func newTestStore(t *testing.T, opts ...badger.BlobStoreBadgerOptionFunc) *badger.BlobStoreBadger {
	t.Helper()
	store, err := badger.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t)
	key := types.ArchiveBlobKey(1, "abc")

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, key, []byte("payload")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), val)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, key))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, key)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err := store.Get(txn, []byte("k"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestFinishedTxnRejected(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, txn.Commit())
	// Second commit is a no-op
	require.NoError(t, txn.Commit())
	err := store.Set(txn, []byte("k"), []byte("v"))
	require.ErrorIs(t, err, types.ErrTxnFinished)
	_, err = store.Get(nil, []byte("k"))
	require.ErrorIs(t, err, types.ErrNilTxn)
}

func TestForeignTxnRejected(t *testing.T) {
	store1 := newTestStore(t)
	store2 := newTestStore(t)
	txn := store1.NewTransaction(true)
	defer txn.Rollback() //nolint:errcheck
	require.Error(t, store2.Set(txn, []byte("k"), []byte("v")))
}

func TestIteratorPrefix(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(txn, types.ArchiveBlobKey(7, id), []byte(id)))
	}
	require.NoError(t, store.Set(txn, types.ArchiveBlobKey(8, "z"), []byte("z")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	prefix := types.ArchiveBlobFormPrefix(7)
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
	defer iter.Close()
	var ids []string
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		_, versionID, err := types.ArchiveBlobKeyParse(iter.Item().Key())
		require.NoError(t, err)
		ids = append(ids, versionID)
	}
	require.NoError(t, iter.Err())
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestIteratorInvalidTxn(t *testing.T) {
	store := newTestStore(t)
	iter := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	require.ErrorIs(t, iter.Err(), types.ErrNilTxn)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1760000000123, txn))
	require.NoError(t, txn.Commit())

	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1760000000123), ts)
	require.ErrorIs(t, store.SetCommitTimestamp(1, nil), types.ErrNilTxn)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	store := newTestStore(t, badger.WithPromRegistry(registry))
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("12345")))
	require.NoError(t, txn.Commit())

	count, err := testutil.GatherAndCount(registry, "formvault_blob_ops_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, testutil.GatherAndCompare(
		registry,
		strings.NewReader(`
# HELP formvault_blob_written_bytes_total Bytes written to the blob store
# TYPE formvault_blob_written_bytes_total counter
formvault_blob_written_bytes_total 5
`),
		"formvault_blob_written_bytes_total",
	))
}

func TestDiskStoreStopsGc(t *testing.T) {
	store, err := badger.New(
		badger.WithDataDir(t.TempDir()),
		badger.WithGc(true),
	)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	// Close is idempotent
	require.NoError(t, store.Close())
}
