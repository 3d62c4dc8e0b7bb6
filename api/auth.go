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
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tallyforge/formvault/history"
)

// DefaultUserHeader carries the authenticated user ID set by the fronting
// session layer
const DefaultUserHeader = "X-User-Id"

var ErrUnauthenticated = errors.New("authentication required")

// UserResolver returns the ID of the user making a request
type UserResolver interface {
	CurrentUser(r *http.Request) (string, error)
}

// HeaderUserResolver reads the user ID from a request header
type HeaderUserResolver struct {
	// Header defaults to DefaultUserHeader
	Header string
}

func (h HeaderUserResolver) CurrentUser(r *http.Request) (string, error) {
	header := h.Header
	if header == "" {
		header = DefaultUserHeader
	}
	userID := strings.TrimSpace(r.Header.Get(header))
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// OwnerAuthorizer decides whether a user may manage a form. An unknown form
// is reported as not authorized.
type OwnerAuthorizer interface {
	AuthorizeFormOwner(
		ctx context.Context,
		formID uint,
		userID string,
	) (bool, error)
}

type formGetter interface {
	GetForm(ctx context.Context, formID uint) (*history.Form, error)
}

// CreatorAuthorizer treats the user who created a form as its only owner
type CreatorAuthorizer struct {
	forms formGetter
}

func NewCreatorAuthorizer(svc *history.Service) *CreatorAuthorizer {
	return &CreatorAuthorizer{forms: svc}
}

func (a *CreatorAuthorizer) AuthorizeFormOwner(
	ctx context.Context,
	formID uint,
	userID string,
) (bool, error) {
	form, err := a.forms.GetForm(ctx, formID)
	if err != nil {
		if history.KindOf(err) == history.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return form.CreatedBy == userID, nil
}

type ownerHandlerFunc func(
	w http.ResponseWriter,
	r *http.Request,
	formID uint,
	userID string,
)

// ownerOnly resolves the caller and checks form ownership before next runs.
// Forms the caller does not own are reported as missing.
func (s *Server) ownerOnly(next ownerHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		formID, ok := parseFormID(r)
		if !ok {
			writeNotFound(w, history.ErrFormNotFound)
			return
		}
		allowed, err := s.owners.AuthorizeFormOwner(r.Context(), formID, userID)
		if err != nil {
			s.logger.Error(
				"owner check failed",
				"form_id", formID,
				"error", err,
			)
			writeError(
				w,
				http.StatusInternalServerError,
				"Internal Server Error",
				history.ErrOperationFailed.Error(),
			)
			return
		}
		if !allowed {
			writeNotFound(w, history.ErrFormNotFound)
			return
		}
		next(w, r, formID, userID)
	}
}

func parseFormID(r *http.Request) (uint, bool) {
	formID, err := strconv.ParseUint(r.PathValue("formId"), 10, 64)
	if err != nil || formID == 0 {
		return 0, false
	}
	return uint(formID), true
}
