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

	"gorm.io/datatypes"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// Submission is a response collected against a specific form version.
// VersionID references form_versions.version_id through the relation
// declared on FormVersion.
type Submission struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Form      *Form  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	VersionID string `gorm:"size:26;index;not null"`
	Data      datatypes.JSON
	ID        uint `gorm:"primarykey"`
	FormID    uint `gorm:"index;not null"`
}

func (Submission) TableName() string {
	return "submissions"
}
