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

package models

import (
	"errors"
	"time"
)

var ErrFormNotFound = errors.New("form not found")

// Form is the owner of a version history.
//
// LiveVersionID caches the internal row ID of the published version so list
// views avoid a join. It is written only while publishing.
type Form struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LiveVersionID *uint  `gorm:"index"`
	Name          string `gorm:"size:255;not null"`
	Description   string
	CreatedBy     string `gorm:"size:64;index;not null"`
	ID            uint   `gorm:"primarykey"`
	IsPublic      bool   `gorm:"not null;default:false"`
}

func (Form) TableName() string {
	return "forms"
}

// OwnedBy reports whether the given user created the form
func (f *Form) OwnedBy(userID string) bool {
	return userID != "" && f.CreatedBy == userID
}
