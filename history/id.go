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

package history

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// VersionIDLength is the length of every generated version ID
const VersionIDLength = 26

var versionIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewVersionID returns a random version ID: the bytes of a v4 UUID encoded
// as lowercase unpadded base32. IDs are opaque and unrelated to the schema.
func NewVersionID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate version id: %w", err)
	}
	return strings.ToLower(versionIDEncoding.EncodeToString(u[:])), nil
}
