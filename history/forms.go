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
	"encoding/json"
	"time"

	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"gorm.io/datatypes"
)

// Form is the caller-facing view of a form
type Form struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string
	Description string
	CreatedBy   string
	ID          uint
	IsPublic    bool
}

func newForm(f *models.Form) *Form {
	return &Form{
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		Name:        f.Name,
		Description: f.Description,
		CreatedBy:   f.CreatedBy,
		ID:          f.ID,
		IsPublic:    f.IsPublic,
	}
}

// CreateFormInput describes a new form
type CreateFormInput struct {
	Name        string
	Description string
	IsPublic    bool
}

// Submission is a recorded response and the version it was filled against
type Submission struct {
	CreatedAt time.Time
	Data      json.RawMessage
	VersionID string
	ID        uint
	FormID    uint
}

// CreateForm registers an empty form owned by ownerID
func (s *Service) CreateForm(
	ctx context.Context,
	ownerID string,
	input CreateFormInput,
) (*Form, error) {
	const op = "create_form"
	if ownerID == "" {
		return nil, newError(KindValidationFailed, op, ErrAuthorRequired)
	}
	if input.Name == "" {
		return nil, newError(KindValidationFailed, op, ErrNameRequired)
	}
	form := &models.Form{
		Name:        input.Name,
		Description: input.Description,
		CreatedBy:   ownerID,
		IsPublic:    input.IsPublic,
	}
	err := s.run(
		ctx,
		op,
		true,
		nil,
		func(ctx context.Context, txn *database.Txn) error {
			return s.db.CreateForm(form, txn)
		},
	)
	if err != nil {
		return nil, err
	}
	return newForm(form), nil
}

// GetForm returns a form by ID
func (s *Service) GetForm(ctx context.Context, formID uint) (*Form, error) {
	var ret *Form
	err := s.run(
		ctx,
		"get_form",
		false,
		formAttrs(formID, ""),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.db.GetForm(formID, txn)
			if err != nil {
				return err
			}
			ret = newForm(form)
			return nil
		},
	)
	return ret, err
}

// RecordSubmission stores a response against the form's published version.
// A form with nothing published cannot take submissions.
func (s *Service) RecordSubmission(
	ctx context.Context,
	formID uint,
	data json.RawMessage,
) (*Submission, error) {
	const op = "record_submission"
	if !json.Valid(data) {
		return nil, newError(KindValidationFailed, op, ErrInvalidData)
	}
	var ret *Submission
	err := s.run(
		ctx,
		op,
		true,
		formAttrs(formID, ""),
		func(ctx context.Context, txn *database.Txn) error {
			if _, err := s.db.GetForm(formID, txn); err != nil {
				return err
			}
			live, err := s.db.GetPublishedVersion(formID, txn)
			if err != nil {
				return err
			}
			if live == nil {
				return newError(KindConflict, "", ErrNoPublishedVersion)
			}
			sub := &models.Submission{
				FormID:    formID,
				VersionID: live.VersionID,
				Data:      datatypes.JSON(data),
			}
			if err := s.db.CreateSubmission(sub, txn); err != nil {
				return err
			}
			ret = &Submission{
				CreatedAt: sub.CreatedAt,
				Data:      json.RawMessage(sub.Data),
				VersionID: sub.VersionID,
				ID:        sub.ID,
				FormID:    sub.FormID,
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// GetSubmission returns a recorded submission of the form
func (s *Service) GetSubmission(
	ctx context.Context,
	formID uint,
	submissionID uint,
) (*Submission, error) {
	var ret *Submission
	err := s.run(
		ctx,
		"get_submission",
		false,
		formAttrs(formID, ""),
		func(ctx context.Context, txn *database.Txn) error {
			sub, err := s.db.GetSubmission(submissionID, txn)
			if err != nil {
				return err
			}
			if sub.FormID != formID {
				return newError(KindNotFound, "", ErrSubmissionNotFound)
			}
			ret = &Submission{
				CreatedAt: sub.CreatedAt,
				Data:      json.RawMessage(sub.Data),
				VersionID: sub.VersionID,
				ID:        sub.ID,
				FormID:    sub.FormID,
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
