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

package database_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/plugin/blob/badger"
	"gorm.io/datatypes"
)

func newTestDB(t *testing.T, config *database.Config) *database.Database {
	t.Helper()
	db, err := database.New(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestForm(t *testing.T, db *database.Database) *models.Form {
	t.Helper()
	form := &models.Form{Name: "Survey", CreatedBy: "alice"}
	require.NoError(t, db.CreateForm(form, nil))
	return form
}

func newTestVersion(
	t *testing.T,
	db *database.Database,
	form *models.Form,
	versionID string,
	createdAt time.Time,
) *models.FormVersion {
	t.Helper()
	version := &models.FormVersion{
		FormID:    form.ID,
		VersionID: versionID,
		CreatedBy: form.CreatedBy,
		CreatedAt: createdAt,
		Schema:    datatypes.JSON(`{"title":"` + versionID + `"}`),
		Metadata: datatypes.NewJSONType(models.VersionMetadata{
			CreatedAt: createdAt,
			Operation: models.OperationInitial,
		}),
	}
	require.NoError(t, db.CreateVersion(version, nil))
	return version
}

func TestNewDefaultStores(t *testing.T) {
	db := newTestDB(t, nil)
	assert.NotNil(t, db.Metadata())
	assert.NotNil(t, db.Blob())
	assert.True(t, db.ArchiveEnabled())
	assert.Empty(t, db.DataDir())
}

func TestBlobPluginNone(t *testing.T) {
	db := newTestDB(t, &database.Config{BlobPlugin: database.BlobPluginNone})
	assert.Nil(t, db.Blob())
	assert.False(t, db.ArchiveEnabled())

	form := newTestForm(t, db)
	got, err := db.GetForm(form.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Survey", got.Name)

	_, err = db.ListArchivedVersions(form.ID)
	require.Error(t, err)
}

func TestFormNotFound(t *testing.T) {
	db := newTestDB(t, nil)
	_, err := db.GetForm(42, nil)
	require.ErrorIs(t, err, models.ErrFormNotFound)
}

func TestCommitTimestampCheck(t *testing.T) {
	dataDir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	newTestForm(t, db)
	metadataTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Positive(t, metadataTs)
	assert.Equal(t, metadataTs, blobTs)
	require.NoError(t, db.Close())

	// Reopening a consistent pair succeeds
	db, err = database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Move the blob timestamp behind the metadata one
	blobStore, err := badger.New(badger.WithDataDir(dataDir), badger.WithGc(false))
	require.NoError(t, err)
	txn := blobStore.NewTransaction(true)
	require.NoError(t, blobStore.SetCommitTimestamp(metadataTs-1, txn))
	require.NoError(t, txn.Commit())
	require.NoError(t, blobStore.Close())

	db, err = database.New(&database.Config{DataDir: dataDir})
	require.NotNil(t, db)
	defer db.Close()
	var tsErr database.CommitTimestampError
	require.True(t, errors.As(err, &tsErr))
	assert.Equal(t, metadataTs, tsErr.MetadataTimestamp)
	assert.Equal(t, metadataTs-1, tsErr.BlobTimestamp)
}

func TestVersionLifecycle(t *testing.T) {
	db := newTestDB(t, nil)
	form := newTestForm(t, db)
	base := time.Now().UTC().Add(-time.Hour)
	v1 := newTestVersion(t, db, form, "v1", base)
	v2 := newTestVersion(t, db, form, "v2", base.Add(time.Minute))

	versions, err := db.GetVersionsByForm(form.ID, nil)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].VersionID)

	published, err := db.GetPublishedVersion(form.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, published)

	txn := db.Transaction(true)
	err = txn.Do(func(txn *database.Txn) error {
		if _, err := db.LockForm(form.ID, txn); err != nil {
			return err
		}
		if _, err := db.UnpublishVersions(form.ID, v1.ID, txn); err != nil {
			return err
		}
		if err := db.PublishVersion(v1.ID, time.Now(), txn); err != nil {
			return err
		}
		return db.SetFormLiveVersion(form.ID, &v1.ID, txn)
	})
	require.NoError(t, err)

	published, err = db.GetPublishedVersion(form.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, "v1", published.VersionID)
	got, err := db.GetForm(form.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, got.LiveVersionID)
	assert.Equal(t, v1.ID, *got.LiveVersionID)

	after, err := db.GetVersionsCreatedAfter(v1, nil)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, v2.VersionID, after[0].VersionID)

	err = db.UpdateDraftVersion(form.ID, "v1", models.VersionUpdate{
		Schema: datatypes.JSON(`{}`),
	}, nil)
	require.ErrorIs(t, err, models.ErrVersionNotModifiable)
	err = db.DeleteDraftVersion(form.ID, "v1", nil)
	require.ErrorIs(t, err, models.ErrVersionNotModifiable)
	require.NoError(t, db.DeleteDraftVersion(form.ID, "v2", nil))
	_, err = db.GetVersion(form.ID, "v2", nil)
	require.ErrorIs(t, err, models.ErrVersionNotFound)
}

func TestLockFormRequiresTxn(t *testing.T) {
	db := newTestDB(t, nil)
	form := newTestForm(t, db)
	_, err := db.LockForm(form.ID, nil)
	require.ErrorIs(t, err, database.ErrTxnRequired)
}

func TestSubmissionsFollowReassignment(t *testing.T) {
	db := newTestDB(t, nil)
	form := newTestForm(t, db)
	base := time.Now().UTC().Add(-time.Hour)
	newTestVersion(t, db, form, "v1", base)
	newTestVersion(t, db, form, "v2", base.Add(time.Minute))
	sub := &models.Submission{
		FormID:    form.ID,
		VersionID: "v2",
		Data:      datatypes.JSON(`{"answer":1}`),
	}
	require.NoError(t, db.CreateSubmission(sub, nil))

	count, err := db.CountSubmissionsByVersion("v2", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	moved, err := db.ReassignSubmissions(form.ID, []string{"v2"}, "v1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	got, err := db.GetSubmission(sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.VersionID)
}
