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
	"context"
	"errors"
	"fmt"

	"github.com/tallyforge/formvault/database/models"
	"gorm.io/gorm"
)

// Kind classifies a history error for callers that need to branch on it
type Kind int

const (
	KindOperationFailed Kind = iota
	KindNotFound
	KindConflict
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidationFailed:
		return "validation_failed"
	default:
		return "operation_failed"
	}
}

var (
	ErrFormNotFound    = errors.New("form not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrTargetNotFound  = errors.New("target version not found")
	ErrParentNotFound  = errors.New("parent version not found")
	ErrArchiveDisabled = errors.New("version archive is disabled")

	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrVersionNotModifiable does not say whether the version is missing or
	// frozen
	ErrVersionNotModifiable  = errors.New("version not found or not modifiable")
	ErrVersionPublished      = errors.New("version is published")
	ErrVersionHasSubmissions = errors.New("version has submissions")
	ErrPublishConflict       = errors.New("another version was published concurrently")
	ErrNoPublishedVersion    = errors.New("form has no published version")

	ErrAuthorRequired  = errors.New("author is required")
	ErrInvalidSchema   = errors.New("schema must be a JSON document")
	ErrSchemaRequired  = errors.New("schema is required")
	ErrSchemaNotParent = errors.New("derived version must copy its parent's schema")
	ErrEmptyUpdate     = errors.New("update changes nothing")
	ErrNameRequired    = errors.New("form name is required")
	ErrInvalidData     = errors.New("submission data must be a JSON document")
	ErrUnknownStrategy = errors.New("unknown revert strategy")

	// ErrOperationFailed stands in for store errors, which are logged but
	// never returned
	ErrOperationFailed = errors.New("operation failed")
)

// Error is the only error type returned by Service methods
type Error struct {
	Err  error
	Op   string
	Kind Kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a history error, KindOperationFailed for any
// other non-nil error
func KindOf(err error) Kind {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Kind
	}
	return KindOperationFailed
}

// classify converts err into an *Error and reports whether the cause was a
// store failure that needs logging
func classify(op string, err error) (*Error, bool) {
	var herr *Error
	if errors.As(err, &herr) {
		return &Error{Kind: herr.Kind, Op: op, Err: herr.Err}, false
	}
	switch {
	case errors.Is(err, models.ErrFormNotFound):
		return newError(KindNotFound, op, ErrFormNotFound), false
	case errors.Is(err, models.ErrVersionNotFound):
		return newError(KindNotFound, op, ErrVersionNotFound), false
	case errors.Is(err, models.ErrSubmissionNotFound):
		return newError(KindNotFound, op, ErrSubmissionNotFound), false
	case errors.Is(err, models.ErrVersionNotModifiable):
		return newError(KindConflict, op, ErrVersionNotModifiable), false
	case errors.Is(err, models.ErrVersionHasSubmissions):
		return newError(KindConflict, op, ErrVersionHasSubmissions), false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newError(KindConflict, op, ErrPublishConflict), true
	case errors.Is(err, context.DeadlineExceeded):
		return newError(
			KindOperationFailed,
			op,
			fmt.Errorf("%w: %w", ErrOperationFailed, context.DeadlineExceeded),
		), true
	case errors.Is(err, context.Canceled):
		return newError(
			KindOperationFailed,
			op,
			fmt.Errorf("%w: %w", ErrOperationFailed, context.Canceled),
		), true
	}
	return newError(KindOperationFailed, op, ErrOperationFailed), true
}
