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

var ErrVersionNotFound = errors.New("version not found")

// ErrVersionNotModifiable covers both a missing row and a row that has been
// published at some point
var ErrVersionNotModifiable = errors.New("version not found or not modifiable")

var ErrVersionPublished = errors.New("version is published")

var ErrVersionHasSubmissions = errors.New("version has submissions")

// Operation tags stored in version metadata
const (
	OperationInitial = "initial"
	OperationDerived = "derived"
)

// VersionMetadata is the audit record stored alongside each version
type VersionMetadata struct {
	CreatedAt        time.Time `json:"createdAt"`
	ParentVersionID  *string   `json:"parentVersionId"`
	AuditDescription string    `json:"auditDescription,omitempty"`
	Operation        string    `json:"operation"`
}

// AppendNote adds a line to the audit description
func (m *VersionMetadata) AppendNote(note string) {
	if note == "" {
		return
	}
	if m.AuditDescription == "" {
		m.AuditDescription = note
		return
	}
	m.AuditDescription += "\n" + note
}

// FormVersion is one snapshot of a form's schema.
//
// FirstPublishedAt is set the first time the version is published and is
// never cleared. Schema edits are refused once it is set, even after the
// version has been demoted again.
//
// Submissions restricts deletes, so a version cannot be removed while
// submissions still reference it.
type FormVersion struct {
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
	PublishedAt      *time.Time
	FirstPublishedAt *time.Time
	Form             *Form        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Submissions      []Submission `gorm:"foreignKey:VersionID;references:VersionID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Metadata         datatypes.JSONType[VersionMetadata]
	VersionID        string `gorm:"size:26;uniqueIndex;not null"`
	Description      string
	CreatedBy        string         `gorm:"size:64;index"`
	Schema           datatypes.JSON `gorm:"not null"`
	ID               uint           `gorm:"primarykey"`
	FormID           uint           `gorm:"index;not null"`
	IsPublished      bool           `gorm:"not null;default:false"`
}

func (FormVersion) TableName() string {
	return "form_versions"
}

// Frozen reports whether the schema and parent linkage can no longer change
func (v *FormVersion) Frozen() bool {
	return v.IsPublished || v.FirstPublishedAt != nil
}

// ParentVersionID returns the parent version ID, or an empty string for an
// initial version
func (v *FormVersion) ParentVersionID() string {
	parent := v.Metadata.Data().ParentVersionID
	if parent == nil {
		return ""
	}
	return *parent
}

// VersionUpdate holds the editable fields of a draft version. Nil fields are
// left unchanged.
type VersionUpdate struct {
	Description *string
	Schema      datatypes.JSON
}

// Empty reports whether the update would change nothing
func (u VersionUpdate) Empty() bool {
	return u.Description == nil && u.Schema == nil
}
