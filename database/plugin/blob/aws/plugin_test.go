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

package aws_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/plugin"
	"github.com/tallyforge/formvault/database/plugin/blob/aws"
	"github.com/tallyforge/formvault/database/types"
)

func TestRegistered(t *testing.T) {
	p := plugin.GetPlugin(plugin.PluginTypeBlob, "s3")
	require.NotNil(t, p)
	_, ok := p.(*aws.BlobStoreS3)
	assert.True(t, ok)
}

func TestStartRequiresBucket(t *testing.T) {
	store, err := aws.NewWithOptions(aws.WithBucket(""))
	require.NoError(t, err)
	require.Error(t, store.Start())
}

func TestUnstartedStoreUnavailable(t *testing.T) {
	store, err := aws.NewWithOptions(
		aws.WithBucket("archive"),
		aws.WithPrefix("forms"),
	)
	require.NoError(t, err)
	assert.Equal(t, "archive", store.Bucket())
	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("k"))
	require.ErrorIs(t, err, types.ErrBlobStoreUnavailable)
}

func TestEncryptionRequiresKeys(t *testing.T) {
	t.Setenv("FORMVAULT_GCP_KMS_RESOURCE_ID", "")
	t.Setenv("FORMVAULT_AWS_KMS_KEY_ARNS", "")
	_, err := aws.NewWithOptions(
		aws.WithBucket("archive"),
		aws.WithEncryption(true),
	)
	require.Error(t, err)
}
