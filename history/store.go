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
	"errors"

	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/event"
	"gorm.io/datatypes"
)

// VersionList is a form's history, newest first
type VersionList struct {
	Versions []*Version
	// LiveVersionID is empty when nothing is published
	LiveVersionID string
}

// UpdateVersionInput holds the editable fields of a draft. Nil fields are
// left unchanged.
type UpdateVersionInput struct {
	Description *string
	Schema      json.RawMessage
}

// ListVersions returns every version of a form, newest first, with author
// display fields filled in when an author directory is configured
func (s *Service) ListVersions(ctx context.Context, formID uint) (*VersionList, error) {
	ret := &VersionList{}
	err := s.run(
		ctx,
		"list_versions",
		false,
		formAttrs(formID, ""),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.db.GetForm(formID, txn)
			if err != nil {
				return err
			}
			versions, err := s.db.GetVersionsByForm(formID, txn)
			if err != nil {
				return err
			}
			ret.Versions = make([]*Version, 0, len(versions))
			for i := range versions {
				v := &versions[i]
				if form.LiveVersionID != nil && *form.LiveVersionID == v.ID {
					ret.LiveVersionID = v.VersionID
				}
				ret.Versions = append(ret.Versions, newVersion(v))
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	s.fillAuthors(ctx, ret.Versions...)
	return ret, nil
}

// GetVersion returns a single version of a form
func (s *Service) GetVersion(
	ctx context.Context,
	formID uint,
	versionID string,
) (*Version, error) {
	var ret *Version
	err := s.run(
		ctx,
		"get_version",
		false,
		formAttrs(formID, versionID),
		func(ctx context.Context, txn *database.Txn) error {
			v, err := s.db.GetVersion(formID, versionID, txn)
			if err != nil {
				return err
			}
			ret = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	s.fillAuthors(ctx, ret)
	return ret, nil
}

// GetPublishedVersion returns the form's published version, or nil without
// an error when nothing is published. It reads the version rows directly and
// does not trust the form's cached live pointer.
func (s *Service) GetPublishedVersion(ctx context.Context, formID uint) (*Version, error) {
	var ret *Version
	err := s.run(
		ctx,
		"get_published_version",
		false,
		formAttrs(formID, ""),
		func(ctx context.Context, txn *database.Txn) error {
			if _, err := s.db.GetForm(formID, txn); err != nil {
				return err
			}
			v, err := s.db.GetPublishedVersion(formID, txn)
			if err != nil || v == nil {
				return err
			}
			ret = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		s.fillAuthors(ctx, ret)
	}
	return ret, nil
}

// UpdateVersion edits a draft. A version that is missing or has ever been
// published is rejected with ErrVersionNotModifiable and left untouched.
func (s *Service) UpdateVersion(
	ctx context.Context,
	formID uint,
	versionID string,
	actorID string,
	input UpdateVersionInput,
) (*Version, error) {
	const op = "update_version"
	update := models.VersionUpdate{Description: input.Description}
	if input.Schema != nil {
		if err := validateSchema(input.Schema); err != nil {
			return nil, newError(KindValidationFailed, op, err)
		}
		update.Schema = datatypes.JSON(input.Schema)
	}
	if update.Empty() {
		return nil, newError(KindValidationFailed, op, ErrEmptyUpdate)
	}
	var ret *Version
	err := s.run(
		ctx,
		op,
		true,
		formAttrs(formID, versionID),
		func(ctx context.Context, txn *database.Txn) error {
			if _, err := s.lockForm(formID, txn); err != nil {
				return err
			}
			if err := s.db.UpdateDraftVersion(formID, versionID, update, txn); err != nil {
				return err
			}
			v, err := s.db.GetVersion(formID, versionID, txn)
			if err != nil {
				return err
			}
			ret = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	s.publishEvent(event.VersionUpdatedEventType, event.VersionEvent{
		ActorID:         actorID,
		VersionID:       ret.ID,
		ParentVersionID: ret.ParentVersionID(),
		Operation:       ret.Metadata.Operation,
		FormID:          formID,
	})
	return ret, nil
}

// DeleteVersion removes an unpublished version. Deleting the published
// version is a conflict and changes nothing. A draft that still has
// submissions cannot be deleted either.
func (s *Service) DeleteVersion(
	ctx context.Context,
	formID uint,
	versionID string,
	actorID string,
) error {
	var deleted *models.FormVersion
	err := s.run(
		ctx,
		"delete_version",
		true,
		formAttrs(formID, versionID),
		func(ctx context.Context, txn *database.Txn) error {
			if _, err := s.lockForm(formID, txn); err != nil {
				return err
			}
			v, err := s.db.GetVersion(formID, versionID, txn)
			if err != nil {
				return err
			}
			if v.IsPublished {
				return newError(KindConflict, "", ErrVersionPublished)
			}
			if err := s.db.DeleteDraftVersion(formID, versionID, txn); err != nil {
				// Lost a race with a publish between the read and the delete
				if errors.Is(err, models.ErrVersionNotModifiable) {
					return newError(KindConflict, "", ErrVersionPublished)
				}
				return err
			}
			deleted = v
			return nil
		},
	)
	if err != nil {
		return err
	}
	s.publishEvent(event.VersionDeletedEventType, event.VersionEvent{
		ActorID:         actorID,
		VersionID:       deleted.VersionID,
		ParentVersionID: deleted.ParentVersionID(),
		Operation:       deleted.Metadata.Data().Operation,
		FormID:          formID,
	})
	return nil
}

// ListArchivedVersions returns the versions removed from the form by force
// resets, most recently archived first
func (s *Service) ListArchivedVersions(
	ctx context.Context,
	formID uint,
) ([]database.ArchivedVersion, error) {
	if !s.db.ArchiveEnabled() {
		return nil, newError(KindNotFound, "list_archived_versions", ErrArchiveDisabled)
	}
	err := s.run(
		ctx,
		"list_archived_versions",
		false,
		formAttrs(formID, ""),
		func(ctx context.Context, txn *database.Txn) error {
			_, err := s.db.GetForm(formID, txn)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	ret, err := s.db.ListArchivedVersions(formID)
	if err != nil {
		herr, _ := classify("list_archived_versions", err)
		s.logger.Error(
			"reading version archive failed",
			"form_id", formID,
			"error", err,
		)
		return nil, herr
	}
	return ret, nil
}
