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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/event"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateVersionInput describes a new version.
//
// With ParentVersionID set the version is derived from that parent and
// always copies its schema. A Schema given alongside a parent must match
// the parent's. Publish makes the new version live in the same transaction.
type CreateVersionInput struct {
	Schema          json.RawMessage
	Description     string
	ParentVersionID string
	AuditNote       string
	Publish         bool
}

// CreateVersion adds a version to a form
func (s *Service) CreateVersion(
	ctx context.Context,
	formID uint,
	authorID string,
	input CreateVersionInput,
) (*Version, error) {
	const op = "create_version"
	if err := validateCreateInput(authorID, input); err != nil {
		return nil, newError(KindValidationFailed, op, err)
	}
	var ret *Version
	var published bool
	err := s.run(
		ctx,
		op,
		true,
		formAttrs(formID, input.ParentVersionID),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.lockForm(formID, txn)
			if err != nil {
				return err
			}
			v, err := s.createVersion(txn, form, authorID, input)
			if err != nil {
				return err
			}
			if input.Publish {
				if published, err = s.publish(txn, form, v, ""); err != nil {
					return err
				}
				if v, err = s.db.GetVersion(formID, v.VersionID, txn); err != nil {
					return err
				}
			}
			ret = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	s.publishEvent(event.VersionCreatedEventType, versionEvent(authorID, ret))
	if published {
		s.publishEvent(event.VersionPublishedEventType, versionEvent(authorID, ret))
	}
	s.fillAuthors(ctx, ret)
	return ret, nil
}

func validateCreateInput(authorID string, input CreateVersionInput) error {
	if authorID == "" {
		return ErrAuthorRequired
	}
	if isNullSchema(input.Schema) {
		if input.ParentVersionID == "" {
			return ErrSchemaRequired
		}
		return nil
	}
	return validateSchema(input.Schema)
}

// isNullSchema reports whether no schema was given. A JSON null counts as
// absent.
func isNullSchema(schema json.RawMessage) bool {
	trimmed := bytes.TrimSpace(schema)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func validateSchema(schema json.RawMessage) error {
	if isNullSchema(schema) || !json.Valid(schema) {
		return ErrInvalidSchema
	}
	return nil
}

// sameSchema compares two schemas as decoded JSON, so formatting and key
// order do not matter
func sameSchema(a, b []byte) bool {
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}

// createVersion inserts a draft for a locked form. Each insert attempt runs
// in its own savepoint, so an ID collision only discards that attempt.
func (s *Service) createVersion(
	txn *database.Txn,
	form *models.Form,
	authorID string,
	input CreateVersionInput,
) (*models.FormVersion, error) {
	now := s.now().UTC()
	meta := models.VersionMetadata{
		CreatedAt: now,
		Operation: models.OperationInitial,
	}
	meta.AppendNote(input.AuditNote)
	var schema datatypes.JSON
	if !isNullSchema(input.Schema) {
		schema = datatypes.JSON(input.Schema)
	}
	if input.ParentVersionID != "" {
		parent, err := s.db.GetVersion(form.ID, input.ParentVersionID, txn)
		if err != nil {
			if errors.Is(err, models.ErrVersionNotFound) {
				return nil, newError(KindNotFound, "", ErrParentNotFound)
			}
			return nil, err
		}
		parentID := parent.VersionID
		meta.ParentVersionID = &parentID
		meta.Operation = models.OperationDerived
		if schema != nil && !sameSchema(schema, parent.Schema) {
			return nil, newError(KindValidationFailed, "", ErrSchemaNotParent)
		}
		schema = parent.Schema
	}
	for attempt := 1; attempt <= s.maxIDAttempts; attempt++ {
		versionID, err := s.newID()
		if err != nil {
			return nil, err
		}
		v := &models.FormVersion{
			CreatedAt:   now,
			FormID:      form.ID,
			VersionID:   versionID,
			Description: input.Description,
			CreatedBy:   authorID,
			Schema:      schema,
			Metadata:    datatypes.NewJSONType(meta),
		}
		err = txn.Savepoint(
			fmt.Sprintf("create_version_%d", attempt),
			func() error { return s.db.CreateVersion(v, txn) },
		)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		s.logger.Warn(
			"version id collision, retrying",
			"form_id", form.ID,
			"attempt", attempt,
		)
		if s.metrics != nil {
			s.metrics.idRetries.Inc()
		}
	}
	return nil, fmt.Errorf(
		"no unique version id after %d attempts",
		s.maxIDAttempts,
	)
}

func versionEvent(actorID string, v *Version) event.VersionEvent {
	return event.VersionEvent{
		ActorID:         actorID,
		VersionID:       v.ID,
		ParentVersionID: v.ParentVersionID(),
		Operation:       v.Metadata.Operation,
		FormID:          v.FormID,
	}
}
