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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/types"
)

func TestTxnDoRollsBackOnError(t *testing.T) {
	db := newTestDB(t, nil)
	errTest := errors.New("test error")
	var formID uint
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		form := &models.Form{Name: "Draft", CreatedBy: "alice"}
		if err := db.CreateForm(form, txn); err != nil {
			return err
		}
		formID = form.ID
		return errTest
	})
	require.ErrorIs(t, err, errTest)
	require.NotZero(t, formID)

	_, err = db.GetForm(formID, nil)
	require.ErrorIs(t, err, models.ErrFormNotFound)
}

func TestTxnFinishedIsRejected(t *testing.T) {
	db := newTestDB(t, nil)
	txn := db.Transaction(true)
	require.NoError(t, txn.Commit())
	// A second commit is a no-op
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.Rollback())

	err := db.CreateForm(&models.Form{Name: "Late", CreatedBy: "alice"}, txn)
	require.ErrorIs(t, err, types.ErrTxnFinished)
}

func TestTxnCancelledContext(t *testing.T) {
	db := newTestDB(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	txn, err := db.BeginTxn(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, ctx, txn.Context())
	cancel()
	err = txn.Commit()
	require.ErrorIs(t, err, context.Canceled)
}

func TestTxnReadOnlyRelease(t *testing.T) {
	db := newTestDB(t, nil)
	form := newTestForm(t, db)
	txn := db.Transaction(false)
	got, err := db.GetForm(form.ID, txn)
	require.NoError(t, err)
	assert.Equal(t, form.ID, got.ID)
	txn.Release()
	// Release after release is harmless
	txn.Release()
}

func TestTxnSavepoint(t *testing.T) {
	db := newTestDB(t, nil)
	form := newTestForm(t, db)
	now := time.Now().UTC()
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		first := &models.FormVersion{
			FormID:    form.ID,
			VersionID: "dup",
			CreatedBy: "alice",
			CreatedAt: now,
			Schema:    []byte(`{}`),
		}
		if err := db.CreateVersion(first, txn); err != nil {
			return err
		}
		// The failed insert only unwinds its savepoint
		err := txn.Savepoint("retry", func() error {
			return db.CreateVersion(&models.FormVersion{
				FormID:    form.ID,
				VersionID: "dup",
				CreatedBy: "alice",
				CreatedAt: now,
				Schema:    []byte(`{}`),
			}, txn)
		})
		if err == nil {
			return errors.New("expected duplicate version error")
		}
		return db.CreateVersion(&models.FormVersion{
			FormID:    form.ID,
			VersionID: "other",
			CreatedBy: "alice",
			CreatedAt: now,
			Schema:    []byte(`{}`),
		}, txn)
	})
	require.NoError(t, err)

	versions, err := db.GetVersionsByForm(form.ID, nil)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}
