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

package gcs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/plugin"
	"github.com/tallyforge/formvault/database/plugin/blob/gcs"
)

func TestCredentialValidation(t *testing.T) {
	tempDir := t.TempDir()
	existing := filepath.Join(tempDir, "credentials.json")
	if err := os.WriteFile(existing, []byte("{}"), 0o600); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	tests := []struct {
		name            string
		credentialsFile string
		errorMessage    string
		expectError     bool
	}{
		{
			name:            "valid credentials file",
			credentialsFile: existing,
		},
		{
			name:            "nonexistent credentials file",
			credentialsFile: filepath.Join(tempDir, "missing.json"),
			expectError:     true,
			errorMessage:    "GCS credentials file does not exist",
		},
		{
			name:            "empty credentials file path",
			credentialsFile: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gcs.ValidateCredentials(tt.credentialsFile)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorMessage)
				}
				if !strings.Contains(err.Error(), tt.errorMessage) {
					t.Errorf("expected error containing %q, got %q", tt.errorMessage, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %q", err.Error())
			}
		})
	}
}

func TestStartRequiresBucket(t *testing.T) {
	store, err := gcs.NewWithOptions()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := store.Start(); err == nil {
		t.Fatal("expected error starting without a bucket")
	}
}

func TestRegistered(t *testing.T) {
	if p := plugin.GetPlugin(plugin.PluginTypeBlob, "gcs"); p == nil {
		t.Fatal("gcs plugin not registered")
	}
}

func TestEncryptionRequiresKeys(t *testing.T) {
	t.Setenv("FORMVAULT_GCP_KMS_RESOURCE_ID", "")
	t.Setenv("FORMVAULT_AWS_KMS_KEY_ARNS", "")
	_, err := gcs.NewWithOptions(
		gcs.WithBucket("archive"),
		gcs.WithEncryption(true),
	)
	require.Error(t, err)
}
