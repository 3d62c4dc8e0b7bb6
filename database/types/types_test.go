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

package types_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tallyforge/formvault/database/types"
)

func TestArchiveBlobKeyRoundTrip(t *testing.T) {
	testDefs := []struct {
		formID    uint
		versionID string
	}{
		{formID: 1, versionID: "abcdefghijklmnopqrstuvwxyz"},
		{formID: 4294967296, versionID: "x"},
		{formID: 0, versionID: "2222222222222222222222222a"},
	}
	for _, testDef := range testDefs {
		key := types.ArchiveBlobKey(testDef.formID, testDef.versionID)
		if !bytes.HasPrefix(key, types.ArchiveBlobFormPrefix(testDef.formID)) {
			t.Fatalf("key %x does not start with form prefix", key)
		}
		formID, versionID, err := types.ArchiveBlobKeyParse(key)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if formID != testDef.formID || versionID != testDef.versionID {
			t.Fatalf(
				"did not get expected values: got %d/%q, expected %d/%q",
				formID,
				versionID,
				testDef.formID,
				testDef.versionID,
			)
		}
	}
}

func TestArchiveBlobFormPrefixIsolation(t *testing.T) {
	// Form 1's prefix must not match keys belonging to form 256
	key := types.ArchiveBlobKey(256, "v")
	if bytes.HasPrefix(key, types.ArchiveBlobFormPrefix(1)) {
		t.Fatalf("form prefixes overlap")
	}
}

func TestArchiveBlobKeyParseInvalid(t *testing.T) {
	testDefs := [][]byte{
		nil,
		[]byte("av"),
		[]byte("zz0000000version"),
		append([]byte("av"), types.ArchiveBlobKeyUint64ToBytes(7)...),
	}
	for _, key := range testDefs {
		if _, _, err := types.ArchiveBlobKeyParse(key); !errors.Is(
			err,
			types.ErrInvalidArchiveKey,
		) {
			t.Fatalf("expected ErrInvalidArchiveKey for %x, got %v", key, err)
		}
	}
}
