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
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/tallyforge/formvault/history"
)

// decodeBody reads a JSON request body into v. An empty body is accepted
// when optional is set.
func decodeBody(
	w http.ResponseWriter,
	r *http.Request,
	v any,
	optional bool,
) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(
			w,
			http.StatusBadRequest,
			"Bad Request",
			"request body must be a JSON object",
		)
		return false
	}
	return true
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

// handleCreateForm handles POST /api/v1/forms. The caller becomes the
// form's owner.
func (s *Server) handleCreateForm(
	w http.ResponseWriter,
	r *http.Request,
) {
	userID, err := s.users.CurrentUser(r)
	if err != nil {
		writeError(
			w,
			http.StatusUnauthorized,
			"Unauthorized",
			ErrUnauthenticated.Error(),
		)
		return
	}
	var req CreateFormRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	form, err := s.history.CreateForm(
		r.Context(),
		userID,
		history.CreateFormInput{
			Name:        req.Name,
			Description: req.Description,
			IsPublic:    req.IsPublic,
		},
	)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFormResponse(form))
}

func (s *Server) handleGetForm(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	_ string,
) {
	form, err := s.history.GetForm(r.Context(), formID)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFormResponse(form))
}

// handleRecordSubmission handles POST /api/v1/forms/{formId}/submissions.
// Public forms take anonymous submissions; private forms only take them
// from the owner.
func (s *Server) handleRecordSubmission(
	w http.ResponseWriter,
	r *http.Request,
) {
	formID, ok := parseFormID(r)
	if !ok {
		writeNotFound(w, history.ErrFormNotFound)
		return
	}
	form, err := s.history.GetForm(r.Context(), formID)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	record := func(
		w http.ResponseWriter,
		r *http.Request,
		formID uint,
		_ string,
	) {
		var req SubmissionRequest
		if !decodeBody(w, r, &req, false) {
			return
		}
		sub, err := s.history.RecordSubmission(r.Context(), formID, req.Data)
		if err != nil {
			s.writeHistoryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSubmissionResponse(sub))
	}
	if form.IsPublic {
		record(w, r, formID, "")
		return
	}
	s.ownerOnly(record)(w, r)
}

func (s *Server) handleGetSubmission(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	_ string,
) {
	submissionID, err := strconv.ParseUint(r.PathValue("submissionId"), 10, 64)
	if err != nil {
		writeNotFound(w, history.ErrSubmissionNotFound)
		return
	}
	sub, err := s.history.GetSubmission(r.Context(), formID, uint(submissionID))
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubmissionResponse(sub))
}

// handleListArchive handles GET /api/v1/forms/{formId}/archive.
func (s *Server) handleListArchive(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	_ string,
) {
	archived, err := s.history.ListArchivedVersions(r.Context(), formID)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ArchiveResponse{Versions: archived})
}

// handleListVersions handles GET /api/v1/forms/{formId}/versions.
func (s *Server) handleListVersions(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	_ string,
) {
	list, err := s.history.ListVersions(r.Context(), formID)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	resp := VersionListResponse{
		Versions: make([]*VersionResponse, 0, len(list.Versions)),
	}
	for _, v := range list.Versions {
		resp.Versions = append(resp.Versions, newVersionResponse(v))
	}
	if list.LiveVersionID != "" {
		resp.LiveVersionID = &list.LiveVersionID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateVersion handles POST /api/v1/forms/{formId}/versions. The
// caller is recorded as the version's author.
func (s *Server) handleCreateVersion(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	userID string,
) {
	var req CreateVersionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	v, err := s.history.CreateVersion(
		r.Context(),
		formID,
		userID,
		history.CreateVersionInput{
			Schema:          req.Schema,
			Description:     req.Description,
			ParentVersionID: req.ParentVersionID,
			Publish:         req.Publish,
		},
	)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateVersionResponse{
		Version: newVersionResponse(v),
		ID:      v.ID,
	})
}

// handleGetPublishedVersion handles GET .../versions/published. A form
// with nothing published answers with a null version.
func (s *Server) handleGetPublishedVersion(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	_ string,
) {
	v, err := s.history.GetPublishedVersion(r.Context(), formID)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PublishedVersionResponse{
		Version: newVersionResponse(v),
	})
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	_ string,
) {
	v, err := s.history.GetVersion(r.Context(), formID, r.PathValue("versionId"))
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVersionResponse(v))
}

func (s *Server) handleUpdateVersion(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	userID string,
) {
	var req UpdateVersionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	v, err := s.history.UpdateVersion(
		r.Context(),
		formID,
		r.PathValue("versionId"),
		userID,
		history.UpdateVersionInput{
			Description: req.Description,
			Schema:      req.Schema,
		},
	)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVersionResponse(v))
}

func (s *Server) handleDeleteVersion(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	userID string,
) {
	err := s.history.DeleteVersion(
		r.Context(),
		formID,
		r.PathValue("versionId"),
		userID,
	)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePublish(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	userID string,
) {
	v, err := s.history.Publish(
		r.Context(),
		formID,
		r.PathValue("versionId"),
		userID,
	)
	if err != nil {
		s.writeHistoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newVersionResponse(v))
}

// handleRevert returns the handler for one revert strategy. Only make-latest
// reads a request body.
func (s *Server) handleRevert(name string) ownerHandlerFunc {
	return func(
		w http.ResponseWriter,
		r *http.Request,
		formID uint,
		userID string,
	) {
		var req MakeLatestRequest
		if name == history.StrategyMakeLatest &&
			!decodeBody(w, r, &req, true) {
			return
		}
		strategy, err := history.ParseStrategy(name, req.Description)
		if err != nil {
			s.writeHistoryError(w, err)
			return
		}
		result, err := s.history.Revert(
			r.Context(),
			formID,
			r.PathValue("versionId"),
			userID,
			strategy,
		)
		if err != nil {
			s.writeHistoryError(w, err)
			return
		}
		deleted := result.DeletedVersionIDs
		if deleted == nil {
			deleted = []string{}
		}
		status := http.StatusOK
		if name == history.StrategyMakeLatest {
			status = http.StatusCreated
		}
		writeJSON(w, status, RevertResponse{
			Version:               newVersionResponse(result.Version),
			Strategy:              result.Strategy,
			DeletedVersionIDs:     deleted,
			ReassignedSubmissions: result.ReassignedSubmissions,
			Archived:              result.Archived,
			Changed:               result.Changed,
		})
	}
}
