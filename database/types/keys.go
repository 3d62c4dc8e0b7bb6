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

package types

import (
	"encoding/binary"
	"errors"
)

const (
	ArchiveBlobKeyPrefix = "av"
	archiveFormIDLen     = 8
)

var ErrInvalidArchiveKey = errors.New("invalid archive blob key")

func ArchiveBlobKeyUint64ToBytes(input uint64) []byte {
	ret := make([]byte, archiveFormIDLen)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// ArchiveBlobFormPrefix returns the key prefix shared by every archived
// version of a form
func ArchiveBlobFormPrefix(formID uint) []byte {
	key := []byte(ArchiveBlobKeyPrefix)
	key = append(key, ArchiveBlobKeyUint64ToBytes(uint64(formID))...)
	return key
}

// ArchiveBlobKey returns the key for a single archived version
func ArchiveBlobKey(formID uint, versionID string) []byte {
	key := ArchiveBlobFormPrefix(formID)
	key = append(key, []byte(versionID)...)
	return key
}

// ArchiveBlobKeyParse splits an archive key into its form ID and version ID
func ArchiveBlobKeyParse(key []byte) (uint, string, error) {
	prefixLen := len(ArchiveBlobKeyPrefix)
	if len(key) <= prefixLen+archiveFormIDLen ||
		string(key[:prefixLen]) != ArchiveBlobKeyPrefix {
		return 0, "", ErrInvalidArchiveKey
	}
	formID := binary.BigEndian.Uint64(key[prefixLen : prefixLen+archiveFormIDLen])
	return uint(formID), string(key[prefixLen+archiveFormIDLen:]), nil
}
