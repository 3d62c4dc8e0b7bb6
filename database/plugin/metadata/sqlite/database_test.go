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

package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/plugin/metadata/internal/gormstore"
	"github.com/tallyforge/formvault/database/plugin/metadata/sqlite"
	"github.com/tallyforge/formvault/database/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *sqlite.MetadataStoreSqlite {
	t.Helper()
	store, err := sqlite.New("", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func newTestForm(t *testing.T, store *sqlite.MetadataStoreSqlite) *models.Form {
	t.Helper()
	form := &models.Form{Name: "Survey", CreatedBy: "alice"}
	require.NoError(t, store.CreateForm(form, nil))
	require.NotZero(t, form.ID)
	return form
}

func newTestVersion(
	t *testing.T,
	store *sqlite.MetadataStoreSqlite,
	formID uint,
	versionID string,
	createdAt time.Time,
) *models.FormVersion {
	t.Helper()
	version := &models.FormVersion{
		FormID:    formID,
		VersionID: versionID,
		CreatedBy: "alice",
		CreatedAt: createdAt,
		Schema:    datatypes.JSON(`{"fields":["` + versionID + `"]}`),
		Metadata: datatypes.NewJSONType(models.VersionMetadata{
			CreatedAt: createdAt,
			Operation: models.OperationInitial,
		}),
	}
	require.NoError(t, store.CreateVersion(version, nil))
	return version
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	first := newTestStore(t)
	second := newTestStore(t)
	newTestForm(t, first)
	_, err := second.GetForm(1, nil)
	require.ErrorIs(t, err, models.ErrFormNotFound)
	assert.Empty(t, second.DataDir())
}

func TestFileBackedStore(t *testing.T) {
	dataDir := t.TempDir()
	store, err := sqlite.NewWithOptions(
		sqlite.WithDataDir(dataDir),
		sqlite.WithPromRegistry(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	form := newTestForm(t, store)
	require.NoError(t, store.Close())
	// Closing twice is harmless
	require.NoError(t, store.Close())

	reopened, err := sqlite.New(dataDir, nil, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetForm(form.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Survey", got.Name)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)

	txn := store.Transaction()
	require.NoError(t, store.SetCommitTimestamp(42, txn))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(42), ts)

	txn = store.Transaction()
	require.NoError(t, store.SetCommitTimestamp(43, txn))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(43), ts)
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStore(t)
	txn, err := store.BeginTxn(context.Background())
	require.NoError(t, err)
	form := &models.Form{Name: "Draft", CreatedBy: "bob"}
	require.NoError(t, store.CreateForm(form, txn))
	require.NoError(t, txn.Rollback())

	_, err = store.GetForm(form.ID, nil)
	require.ErrorIs(t, err, models.ErrFormNotFound)

	// A finished transaction cannot be reused
	err = store.CreateForm(&models.Form{Name: "x", CreatedBy: "bob"}, txn)
	require.ErrorIs(t, err, types.ErrTxnFinished)
}

func TestLockFormRequiresTxn(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	_, err := store.LockForm(form.ID, nil)
	require.ErrorIs(t, err, types.ErrNilTxn)

	txn := store.Transaction()
	defer txn.Rollback() //nolint:errcheck
	got, err := store.LockForm(form.ID, txn)
	require.NoError(t, err)
	assert.Equal(t, form.ID, got.ID)
	// sqlite has no advisory lock, so this is a no-op
	require.NoError(t, store.AcquireFormLock(form.ID, txn))
	assert.Equal(t, "sqlite", store.Dialect().Name)
	assert.False(t, store.Dialect().RowLocks)

	_, err = store.LockForm(form.ID+100, txn)
	require.ErrorIs(t, err, models.ErrFormNotFound)
}

func TestVersionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestVersion(t, store, form.ID, "v1", base)
	newTestVersion(t, store, form.ID, "v2", base.Add(time.Minute))
	// Same timestamp as v2, inserted later
	newTestVersion(t, store, form.ID, "v3", base.Add(time.Minute))

	versions, err := store.GetVersionsByForm(form.ID, nil)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "v3", versions[0].VersionID)
	assert.Equal(t, "v2", versions[1].VersionID)
	assert.Equal(t, "v1", versions[2].VersionID)

	got, err := store.GetVersion(form.ID, "v1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields":["v1"]}`, string(got.Schema))
	assert.Equal(t, models.OperationInitial, got.Metadata.Data().Operation)
	assert.Empty(t, got.ParentVersionID())

	_, err = store.GetVersion(form.ID, "missing", nil)
	require.ErrorIs(t, err, models.ErrVersionNotFound)
	_, err = store.GetVersion(form.ID+1, "v1", nil)
	require.ErrorIs(t, err, models.ErrVersionNotFound)
}

func TestDuplicateVersionID(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	newTestVersion(t, store, form.ID, "dup", time.Now())
	err := store.CreateVersion(&models.FormVersion{
		FormID:    form.ID,
		VersionID: "dup",
		Schema:    datatypes.JSON(`{}`),
	}, nil)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestVersionsCreatedAfter(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	other := newTestForm(t, store)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestVersion(t, store, form.ID, "old", base.Add(-time.Hour))
	newTestVersion(t, store, form.ID, "target", base)
	newTestVersion(t, store, form.ID, "tie", base)
	newTestVersion(t, store, form.ID, "newer", base.Add(time.Hour))
	newTestVersion(t, store, other.ID, "elsewhere", base.Add(time.Hour))

	target, err := store.GetVersion(form.ID, "target", nil)
	require.NoError(t, err)
	after, err := store.GetVersionsCreatedAfter(target, nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(after))
	for _, v := range after {
		ids = append(ids, v.VersionID)
	}
	assert.Equal(t, []string{"newer", "tie"}, ids)
}

func TestPublishAndUnpublish(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	v1 := newTestVersion(t, store, form.ID, "v1", time.Now())
	v2 := newTestVersion(t, store, form.ID, "v2", time.Now())

	published, err := store.GetPublishedVersion(form.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, published)

	first := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.PublishVersion(v1.ID, first, nil))
	require.NoError(t, store.SetFormLiveVersion(form.ID, &v1.ID, nil))

	// A second published version breaks the live index
	err = store.PublishVersion(v2.ID, first, nil)
	require.Error(t, err)
	assert.True(t, gormstore.IsUniqueViolation(err))

	demoted, err := store.UnpublishVersions(form.ID, v2.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), demoted)
	require.NoError(t, store.PublishVersion(v2.ID, first.Add(time.Hour), nil))

	got, err := store.GetVersion(form.ID, "v1", nil)
	require.NoError(t, err)
	assert.False(t, got.IsPublished)
	assert.Nil(t, got.PublishedAt)
	require.NotNil(t, got.FirstPublishedAt)
	assert.True(t, got.Frozen())

	// Republishing keeps the first publication time
	_, err = store.UnpublishVersions(form.ID, v1.ID, nil)
	require.NoError(t, err)
	require.NoError(t, store.PublishVersion(v1.ID, first.Add(2*time.Hour), nil))
	got, err = store.GetVersion(form.ID, "v1", nil)
	require.NoError(t, err)
	require.NotNil(t, got.FirstPublishedAt)
	assert.True(t, got.FirstPublishedAt.Equal(first))

	published, err = store.GetPublishedVersion(form.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, "v1", published.VersionID)

	require.ErrorIs(t, store.PublishVersion(9999, first, nil), models.ErrVersionNotFound)
	require.ErrorIs(
		t,
		store.SetFormLiveVersion(9999, &v1.ID, nil),
		models.ErrFormNotFound,
	)
	require.NoError(t, store.SetFormLiveVersion(form.ID, nil, nil))
	gotForm, err := store.GetForm(form.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, gotForm.LiveVersionID)
}

func TestUpdateDraftVersion(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	v1 := newTestVersion(t, store, form.ID, "v1", time.Now())
	desc := "edited"
	require.NoError(t, store.UpdateDraftVersion(form.ID, "v1", models.VersionUpdate{
		Description: &desc,
		Schema:      datatypes.JSON(`{"fields":["edited"]}`),
	}, nil))
	got, err := store.GetVersion(form.ID, "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Description)
	assert.JSONEq(t, `{"fields":["edited"]}`, string(got.Schema))

	// Empty updates change nothing and succeed
	require.NoError(t, store.UpdateDraftVersion(form.ID, "v1", models.VersionUpdate{}, nil))

	require.NoError(t, store.PublishVersion(v1.ID, time.Now(), nil))
	err = store.UpdateDraftVersion(form.ID, "v1", models.VersionUpdate{
		Schema: datatypes.JSON(`{"fields":["late"]}`),
	}, nil)
	require.ErrorIs(t, err, models.ErrVersionNotModifiable)

	// Still frozen after being demoted
	_, err = store.UnpublishVersions(form.ID, 0, nil)
	require.NoError(t, err)
	err = store.UpdateDraftVersion(form.ID, "v1", models.VersionUpdate{
		Schema: datatypes.JSON(`{"fields":["late"]}`),
	}, nil)
	require.ErrorIs(t, err, models.ErrVersionNotModifiable)
	got, err = store.GetVersion(form.ID, "v1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields":["edited"]}`, string(got.Schema))

	err = store.UpdateDraftVersion(form.ID, "missing", models.VersionUpdate{
		Description: &desc,
	}, nil)
	require.ErrorIs(t, err, models.ErrVersionNotModifiable)
}

func TestSetVersionMetadata(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	v1 := newTestVersion(t, store, form.ID, "v1", time.Now())
	meta := v1.Metadata.Data()
	meta.AppendNote("first")
	meta.AppendNote("second")
	require.NoError(t, store.SetVersionMetadata(v1.ID, meta, nil))
	got, err := store.GetVersion(form.ID, "v1", nil)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", got.Metadata.Data().AuditDescription)
	require.ErrorIs(
		t,
		store.SetVersionMetadata(9999, meta, nil),
		models.ErrVersionNotFound,
	)
}

func TestDeleteDraftVersion(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	v1 := newTestVersion(t, store, form.ID, "v1", time.Now())
	newTestVersion(t, store, form.ID, "v2", time.Now())
	newTestVersion(t, store, form.ID, "v3", time.Now())
	require.NoError(t, store.PublishVersion(v1.ID, time.Now(), nil))

	require.ErrorIs(
		t,
		store.DeleteDraftVersion(form.ID, "v1", nil),
		models.ErrVersionNotModifiable,
	)
	require.NoError(t, store.DeleteDraftVersion(form.ID, "v2", nil))
	require.ErrorIs(
		t,
		store.DeleteDraftVersion(form.ID, "v2", nil),
		models.ErrVersionNotModifiable,
	)

	require.NoError(t, store.CreateSubmission(&models.Submission{
		FormID:    form.ID,
		VersionID: "v3",
		Data:      datatypes.JSON(`{"answer":1}`),
	}, nil))
	require.ErrorIs(
		t,
		store.DeleteDraftVersion(form.ID, "v3", nil),
		models.ErrVersionHasSubmissions,
	)
	_, err := store.GetVersion(form.ID, "v3", nil)
	require.NoError(t, err)
}

func TestSubmissionVersionForeignKey(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	v1 := newTestVersion(t, store, form.ID, "v1", time.Now())
	require.NoError(t, store.CreateSubmission(&models.Submission{
		FormID:    form.ID,
		VersionID: v1.VersionID,
	}, nil))

	assert.True(
		t,
		store.DB().Migrator().HasConstraint(&models.FormVersion{}, "Submissions"),
	)
	// Bypass the store checks so only the constraint stands in the way
	err := store.DB().
		Exec("DELETE FROM form_versions WHERE version_id = ?", v1.VersionID).
		Error
	require.Error(t, err)
	_, err = store.GetVersion(form.ID, v1.VersionID, nil)
	require.NoError(t, err)
}

func TestSubmissions(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	v1 := newTestVersion(t, store, form.ID, "v1", time.Now())
	v2 := newTestVersion(t, store, form.ID, "v2", time.Now())
	v3 := newTestVersion(t, store, form.ID, "v3", time.Now())

	sub := &models.Submission{
		FormID:    form.ID,
		VersionID: v2.VersionID,
		Data:      datatypes.JSON(`{"answer":"yes"}`),
	}
	require.NoError(t, store.CreateSubmission(sub, nil))
	require.NoError(t, store.CreateSubmission(&models.Submission{
		FormID:    form.ID,
		VersionID: v3.VersionID,
	}, nil))

	err := store.CreateSubmission(&models.Submission{
		FormID:    form.ID,
		VersionID: "nope",
	}, nil)
	require.ErrorIs(t, err, models.ErrVersionNotFound)

	count, err := store.CountSubmissionsByVersion(v2.VersionID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	moved, err := store.ReassignSubmissions(
		form.ID,
		[]string{v2.VersionID, v3.VersionID},
		v1.VersionID,
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	got, err := store.GetSubmission(sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, got.VersionID)
	assert.JSONEq(t, `{"answer":"yes"}`, string(got.Data))

	_, err = store.GetSubmission(9999, nil)
	require.ErrorIs(t, err, models.ErrSubmissionNotFound)

	// Nothing references v2 or v3 now
	deleted, err := store.DeleteVersions(form.ID, []uint{v2.ID, v3.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// v1 still has submissions
	_, err = store.DeleteVersions(form.ID, []uint{v1.ID}, nil)
	require.True(t, errors.Is(err, models.ErrVersionHasSubmissions))
}

func TestSavepoint(t *testing.T) {
	store := newTestStore(t)
	form := newTestForm(t, store)
	newTestVersion(t, store, form.ID, "taken", time.Now())

	require.ErrorIs(t, store.Savepoint(nil, "sp", func() error { return nil }), types.ErrNilTxn)

	txn := store.Transaction()
	err := store.Savepoint(txn, "attempt", func() error {
		return store.CreateVersion(&models.FormVersion{
			FormID:    form.ID,
			VersionID: "taken",
			Schema:    datatypes.JSON(`{}`),
		}, txn)
	})
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	// The transaction is still usable after the failed savepoint
	require.NoError(t, store.Savepoint(txn, "attempt", func() error {
		return store.CreateVersion(&models.FormVersion{
			FormID:    form.ID,
			VersionID: "fresh",
			Schema:    datatypes.JSON(`{}`),
		}, txn)
	}))
	require.NoError(t, txn.Commit())
	_, err = store.GetVersion(form.ID, "fresh", nil)
	require.NoError(t, err)
}
