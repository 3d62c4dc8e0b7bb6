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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/types"
)

// archiveIteratorBatchSize controls how many archive keys are fetched per
// pass over the blob store
const archiveIteratorBatchSize = 256

var ErrArchivedVersionNotFound = errors.New("archived version not found")

// ArchivedVersion is the full record of a version removed by a force reset.
// It is stored as JSON in the blob store under types.ArchiveBlobKey.
type ArchivedVersion struct {
	ArchivedAt       time.Time              `json:"archivedAt"`
	CreatedAt        time.Time              `json:"createdAt"`
	PublishedAt      *time.Time             `json:"publishedAt,omitempty"`
	FirstPublishedAt *time.Time             `json:"firstPublishedAt,omitempty"`
	Metadata         models.VersionMetadata `json:"metadata"`
	Schema           json.RawMessage        `json:"schema"`
	VersionID        string                 `json:"versionId"`
	Description      string                 `json:"description"`
	CreatedBy        string                 `json:"createdBy"`
	ResetTarget      string                 `json:"resetTarget"`
	FormID           uint                   `json:"formId"`
}

// NewArchivedVersion builds the archive record for a version that is about to
// be deleted by a reset to resetTarget
func NewArchivedVersion(
	version *models.FormVersion,
	resetTarget string,
	archivedAt time.Time,
) ArchivedVersion {
	schema := json.RawMessage(version.Schema)
	if len(schema) == 0 {
		schema = json.RawMessage("null")
	}
	return ArchivedVersion{
		ArchivedAt:       archivedAt.UTC(),
		CreatedAt:        version.CreatedAt.UTC(),
		PublishedAt:      version.PublishedAt,
		FirstPublishedAt: version.FirstPublishedAt,
		Metadata:         version.Metadata.Data(),
		Schema:           schema,
		VersionID:        version.VersionID,
		Description:      version.Description,
		CreatedBy:        version.CreatedBy,
		ResetTarget:      resetTarget,
		FormID:           version.FormID,
	}
}

// ArchiveVersions writes an archive record for each version into the blob
// side of txn. Nothing is written when the blob store is disabled.
func (d *Database) ArchiveVersions(
	txn *Txn,
	versions []models.FormVersion,
	resetTarget string,
	archivedAt time.Time,
) error {
	if txn == nil {
		return ErrTxnRequired
	}
	if d.blob == nil || len(versions) == 0 {
		return nil
	}
	if txn.Blob() == nil {
		return types.ErrBlobStoreUnavailable
	}
	for i := range versions {
		record := NewArchivedVersion(&versions[i], resetTarget, archivedAt)
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf(
				"encode archived version %s: %w",
				record.VersionID,
				err,
			)
		}
		key := types.ArchiveBlobKey(record.FormID, record.VersionID)
		if err := d.blob.Set(txn.Blob(), key, data); err != nil {
			return fmt.Errorf(
				"archive version %s: %w",
				record.VersionID,
				err,
			)
		}
	}
	d.logger.Debug(
		"archived versions",
		"count", len(versions),
		"reset_target", resetTarget,
	)
	return nil
}

// GetArchivedVersion returns ErrArchivedVersionNotFound when no archive record
// exists for the version
func (d *Database) GetArchivedVersion(
	formID uint,
	versionID string,
) (*ArchivedVersion, error) {
	if d.blob == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	txn := d.blob.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	data, err := d.blob.Get(txn, types.ArchiveBlobKey(formID, versionID))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, ErrArchivedVersionNotFound
		}
		return nil, err
	}
	var ret ArchivedVersion
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("decode archived version %s: %w", versionID, err)
	}
	return &ret, nil
}

// ListArchivedVersions returns every archived version of the form, most
// recently archived first
func (d *Database) ListArchivedVersions(formID uint) ([]ArchivedVersion, error) {
	if d.blob == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	iter := d.ArchivedVersions(formID)
	defer iter.Close()
	var ret []ArchivedVersion
	for {
		record, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if record == nil {
			break
		}
		ret = append(ret, *record)
	}
	slices.SortStableFunc(ret, func(a, b ArchivedVersion) int {
		if c := b.ArchivedAt.Compare(a.ArchivedAt); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return ret, nil
}

// ArchiveIterator walks the archived versions of one form in key order.
//
// Keys are fetched in batches so a form with a long reset history is never
// loaded into memory at once. Records are decoded on demand by Next.
type ArchiveIterator struct {
	db     *Database
	prefix []byte

	mu        sync.Mutex
	batch     [][]byte
	batchIdx  int
	exhausted bool
	closed    bool

	// resumeKey is the last key handed out, nil before the first batch
	resumeKey []byte
}

// ArchivedVersions returns an iterator over the archived versions of formID
func (d *Database) ArchivedVersions(formID uint) *ArchiveIterator {
	return &ArchiveIterator{
		db:     d,
		prefix: types.ArchiveBlobFormPrefix(formID),
	}
}

// Next returns the next archived version, or (nil, nil) when iteration is
// complete. Records deleted since their key was listed are skipped.
func (it *ArchiveIterator) Next() (*ArchivedVersion, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return nil, nil
	}
	for {
		if it.batchIdx >= len(it.batch) {
			if it.exhausted {
				return nil, nil
			}
			if err := it.fetchBatch(); err != nil {
				return nil, err
			}
			if len(it.batch) == 0 {
				it.exhausted = true
				return nil, nil
			}
		}
		key := it.batch[it.batchIdx]
		it.batchIdx++

		formID, versionID, err := types.ArchiveBlobKeyParse(key)
		if err != nil {
			it.db.logger.Warn(
				"archive iterator: skipping unparseable key",
				"error", err,
			)
			continue
		}
		record, err := it.db.GetArchivedVersion(formID, versionID)
		if err != nil {
			if errors.Is(err, ErrArchivedVersionNotFound) {
				continue
			}
			return nil, err
		}
		return record, nil
	}
}

// Close releases the iterator state. It is safe to call Close more than once.
func (it *ArchiveIterator) Close() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.closed = true
	it.batch = nil
	it.resumeKey = nil
}

// fetchBatch must be called with it.mu held
func (it *ArchiveIterator) fetchBatch() error {
	blob := it.db.Blob()
	if blob == nil {
		return types.ErrBlobStoreUnavailable
	}
	txn := blob.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	blobIter := blob.NewIterator(txn, types.BlobIteratorOptions{
		Prefix: it.prefix,
	})
	if blobIter == nil {
		return errors.New("blob iterator is nil")
	}
	defer blobIter.Close()

	seekKey := it.prefix
	if it.resumeKey != nil {
		seekKey = it.resumeKey
	}
	resuming := it.resumeKey != nil
	batch := make([][]byte, 0, archiveIteratorBatchSize)
	for blobIter.Seek(seekKey); blobIter.ValidForPrefix(it.prefix); blobIter.Next() {
		item := blobIter.Item()
		if item == nil {
			continue
		}
		key := item.Key()
		if key == nil {
			continue
		}
		// Seek lands on the resume key itself unless it was deleted
		if resuming {
			resuming = false
			if bytes.Equal(key, it.resumeKey) {
				continue
			}
		}
		batch = append(batch, bytes.Clone(key))
		if len(batch) >= archiveIteratorBatchSize {
			break
		}
	}
	if err := blobIter.Err(); err != nil {
		return fmt.Errorf("scanning archive keys: %w", err)
	}

	it.batch = batch
	it.batchIdx = 0
	if len(batch) > 0 {
		it.resumeKey = batch[len(batch)-1]
	}
	if len(batch) < archiveIteratorBatchSize {
		it.exhausted = true
	}
	return nil
}
