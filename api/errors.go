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
	"net/http"

	"github.com/tallyforge/formvault/history"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

func writeNotFound(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, "Not Found", err.Error())
}

// statusForKind maps history error kinds onto HTTP statuses
func statusForKind(kind history.Kind) int {
	switch kind {
	case history.KindNotFound:
		return http.StatusNotFound
	case history.KindConflict:
		return http.StatusConflict
	case history.KindValidationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeHistoryError reports a history service error. The message is the
// classified error without the operation name, so store failures surface
// only as the generic operation failure.
func (s *Server) writeHistoryError(w http.ResponseWriter, err error) {
	kind := history.KindOf(err)
	status := statusForKind(kind)
	message := history.ErrOperationFailed.Error()
	var herr *history.Error
	if errors.As(err, &herr) {
		message = herr.Err.Error()
	} else {
		s.logger.Error("unclassified error", "error", err)
	}
	writeError(w, status, http.StatusText(status), message)
}
