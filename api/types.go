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

package api

import (
	"encoding/json"
	"time"

	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/history"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy bool `json:"isHealthy"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	//nolint:tagliatelle
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type AuthorResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

type VersionMetadataResponse struct {
	CreatedAt        time.Time `json:"createdAt"`
	ParentVersionID  *string   `json:"parentVersionId"`
	AuditDescription string    `json:"auditDescription,omitempty"`
	Operation        string    `json:"operation"`
}

// VersionResponse represents a single form version.
type VersionResponse struct {
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
	PublishedAt      *time.Time              `json:"publishedAt"`
	FirstPublishedAt *time.Time              `json:"firstPublishedAt"`
	Author           *AuthorResponse         `json:"author,omitempty"`
	Metadata         VersionMetadataResponse `json:"metadata"`
	Schema           json.RawMessage         `json:"schema"`
	ID               string                  `json:"id"`
	Description      string                  `json:"description"`
	CreatedBy        string                  `json:"createdBy"`
	FormID           uint                    `json:"formId"`
	IsPublished      bool                    `json:"isPublished"`
}

func newVersionResponse(v *history.Version) *VersionResponse {
	if v == nil {
		return nil
	}
	ret := &VersionResponse{
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
		PublishedAt:      v.PublishedAt,
		FirstPublishedAt: v.FirstPublishedAt,
		Metadata: VersionMetadataResponse{
			CreatedAt:        v.Metadata.CreatedAt,
			ParentVersionID:  v.Metadata.ParentVersionID,
			AuditDescription: v.Metadata.AuditDescription,
			Operation:        v.Metadata.Operation,
		},
		Schema:      v.Schema,
		ID:          v.ID,
		Description: v.Description,
		CreatedBy:   v.CreatedBy,
		FormID:      v.FormID,
		IsPublished: v.IsPublished,
	}
	if v.Author != nil {
		ret.Author = &AuthorResponse{
			ID:          v.Author.ID,
			DisplayName: v.Author.DisplayName,
			Email:       v.Author.Email,
		}
	}
	return ret
}

// VersionListResponse is returned by GET .../versions. LiveVersionID is
// null when nothing is published.
type VersionListResponse struct {
	LiveVersionID *string            `json:"liveVersionId"`
	Versions      []*VersionResponse `json:"versions"`
}

// CreateVersionResponse is returned by POST .../versions.
type CreateVersionResponse struct {
	Version *VersionResponse `json:"version"`
	ID      string           `json:"id"`
}

// PublishedVersionResponse is returned by GET .../versions/published.
type PublishedVersionResponse struct {
	Version *VersionResponse `json:"version"`
}

// RevertResponse is returned by the three revert routes.
type RevertResponse struct {
	Version               *VersionResponse `json:"version"`
	Strategy              string           `json:"strategy"`
	DeletedVersionIDs     []string         `json:"deletedVersionIds"`
	ReassignedSubmissions int64            `json:"reassignedSubmissions"`
	Archived              bool             `json:"archived"`
	Changed               bool             `json:"changed"`
}

// ArchiveResponse is returned by GET .../archive.
type ArchiveResponse struct {
	Versions []database.ArchivedVersion `json:"versions"`
}

type FormResponse struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	ID          uint      `json:"id"`
	IsPublic    bool      `json:"isPublic"`
}

func newFormResponse(f *history.Form) *FormResponse {
	return &FormResponse{
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		Name:        f.Name,
		Description: f.Description,
		CreatedBy:   f.CreatedBy,
		ID:          f.ID,
		IsPublic:    f.IsPublic,
	}
}

type SubmissionResponse struct {
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
	VersionID string          `json:"versionId"`
	ID        uint            `json:"id"`
	FormID    uint            `json:"formId"`
}

func newSubmissionResponse(s *history.Submission) *SubmissionResponse {
	return &SubmissionResponse{
		CreatedAt: s.CreatedAt,
		Data:      s.Data,
		VersionID: s.VersionID,
		ID:        s.ID,
		FormID:    s.FormID,
	}
}

type CreateFormRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

type CreateVersionRequest struct {
	Schema          json.RawMessage `json:"schema"`
	Description     string          `json:"description"`
	ParentVersionID string          `json:"parentVersionId"`
	Publish         bool            `json:"publish"`
}

// UpdateVersionRequest leaves omitted fields unchanged.
type UpdateVersionRequest struct {
	Description *string         `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

type MakeLatestRequest struct {
	Description string `json:"description"`
}

type SubmissionRequest struct {
	Data json.RawMessage `json:"data"`
}
