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

package postgres_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/plugin/metadata/postgres"
	"gorm.io/datatypes"
)

// newLiveStore connects to the database named by POSTGRES_DSN, skipping the
// test when it is unset
func newLiveStore(t *testing.T) *postgres.MetadataStorePostgres {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set, skipping postgres integration test")
	}
	store, err := postgres.NewWithOptions(
		postgres.WithDSN(dsn),
		postgres.WithAdvisoryLock(true),
	)
	require.NoError(t, err)
	require.NoError(t, store.Start())
	t.Cleanup(func() {
		_ = store.Stop()
	})
	return store
}

func TestPostgresLiveIndexAndLocks(t *testing.T) {
	store := newLiveStore(t)
	form := &models.Form{Name: "pg", CreatedBy: "tester"}
	require.NoError(t, store.CreateForm(form, nil))

	suffix := time.Now().UTC().Format("150405.000000")
	versions := make([]*models.FormVersion, 0, 2)
	for _, id := range []string{"a" + suffix, "b" + suffix} {
		v := &models.FormVersion{
			FormID:    form.ID,
			VersionID: id,
			Schema:    datatypes.JSON(`{}`),
		}
		require.NoError(t, store.CreateVersion(v, nil))
		versions = append(versions, v)
	}

	txn := store.Transaction()
	_, err := store.LockForm(form.ID, txn)
	require.NoError(t, err)
	require.NoError(t, store.AcquireFormLock(form.ID, txn))
	require.NoError(t, store.PublishVersion(versions[0].ID, time.Now(), txn))
	require.NoError(t, txn.Commit())

	// The partial unique index rejects a second live version
	err = store.PublishVersion(versions[1].ID, time.Now(), nil)
	require.Error(t, err)

	published, err := store.GetPublishedVersion(form.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, versions[0].VersionID, published.VersionID)
}
