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

package gormstore

import (
	"errors"
	"time"

	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// newestFirst orders by creation time with insertion order breaking ties
const newestFirst = "created_at DESC, id DESC"

// CreateVersion inserts a new version. A duplicate version ID is returned as
// gorm.ErrDuplicatedKey so callers can retry with a fresh ID.
func (s *Store) CreateVersion(version *models.FormVersion, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := db.Create(version).Error; err != nil {
		if IsUniqueViolation(err) {
			return gorm.ErrDuplicatedKey
		}
		return err
	}
	return nil
}

// GetVersion returns models.ErrVersionNotFound when the version does not
// exist in the form
func (s *Store) GetVersion(
	formID uint,
	versionID string,
	txn types.Txn,
) (*models.FormVersion, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.FormVersion{}
	result := db.Where("form_id = ? AND version_id = ?", formID, versionID).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrVersionNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetPublishedVersion returns nil without an error when no version is
// published
func (s *Store) GetPublishedVersion(
	formID uint,
	txn types.Txn,
) (*models.FormVersion, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.FormVersion{}
	result := db.Where("form_id = ? AND is_published = ?", formID, true).
		Order(newestFirst).
		First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetVersionsByForm returns every version of a form, newest first
func (s *Store) GetVersionsByForm(
	formID uint,
	txn types.Txn,
) ([]models.FormVersion, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.FormVersion
	if result := db.Where("form_id = ?", formID).
		Order(newestFirst).
		Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetVersionsCreatedAfter returns the versions of a form created strictly
// after target, newest first. target must have been loaded from the store so
// its timestamp matches the stored precision.
func (s *Store) GetVersionsCreatedAfter(
	target *models.FormVersion,
	txn types.Txn,
) ([]models.FormVersion, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.FormVersion
	result := db.
		Where("form_id = ? AND id <> ?", target.FormID, target.ID).
		Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			target.CreatedAt,
			target.CreatedAt,
			target.ID,
		).
		Order(newestFirst).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// UpdateDraftVersion edits a version that has never been published. Missing
// and frozen versions both yield models.ErrVersionNotModifiable.
func (s *Store) UpdateDraftVersion(
	formID uint,
	versionID string,
	update models.VersionUpdate,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	updates := map[string]any{}
	if update.Description != nil {
		updates["description"] = *update.Description
	}
	if update.Schema != nil {
		updates["schema"] = update.Schema
	}
	if len(updates) == 0 {
		return nil
	}
	result := db.Model(&models.FormVersion{}).
		Where(
			"form_id = ? AND version_id = ? AND is_published = ? AND first_published_at IS NULL",
			formID,
			versionID,
			false,
		).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVersionNotModifiable
	}
	return nil
}

// SetVersionMetadata replaces the audit metadata of a version
func (s *Store) SetVersionMetadata(
	id uint,
	metadata models.VersionMetadata,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.FormVersion{}).
		Where("id = ?", id).
		Update("metadata", datatypes.NewJSONType(metadata))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVersionNotFound
	}
	return nil
}

// UnpublishVersions demotes every published version of a form except the
// one with exceptID (0 demotes all) and returns how many were demoted
func (s *Store) UnpublishVersions(
	formID uint,
	exceptID uint,
	txn types.Txn,
) (int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	result := db.Model(&models.FormVersion{}).
		Where("form_id = ? AND is_published = ? AND id <> ?", formID, true, exceptID).
		Updates(map[string]any{
			"is_published": false,
			"published_at": nil,
		})
	return result.RowsAffected, result.Error
}

// PublishVersion marks a version published. first_published_at is only set
// the first time.
func (s *Store) PublishVersion(
	id uint,
	publishedAt time.Time,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.FormVersion{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_published":       true,
			"published_at":       publishedAt,
			"first_published_at": gorm.Expr("COALESCE(first_published_at, ?)", publishedAt),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVersionNotFound
	}
	return nil
}

// DeleteDraftVersion removes an unpublished version. A published or missing
// version yields models.ErrVersionNotModifiable, and one still referenced by
// submissions yields models.ErrVersionHasSubmissions. References are checked
// explicitly as well as by the foreign key, which not every backend enforces.
func (s *Store) DeleteDraftVersion(
	formID uint,
	versionID string,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	referenced, err := hasSubmissions(
		db,
		db.Model(&models.FormVersion{}).
			Select("version_id").
			Where("form_id = ? AND version_id = ?", formID, versionID),
	)
	if err != nil {
		return err
	}
	if referenced {
		return models.ErrVersionHasSubmissions
	}
	result := db.
		Where("form_id = ? AND version_id = ? AND is_published = ?", formID, versionID, false).
		Delete(&models.FormVersion{})
	if result.Error != nil {
		if IsForeignKeyViolation(result.Error) {
			return models.ErrVersionHasSubmissions
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVersionNotModifiable
	}
	return nil
}

// DeleteVersions removes versions by row ID regardless of publish state and
// returns how many were removed. Versions still referenced by submissions
// are refused with models.ErrVersionHasSubmissions.
func (s *Store) DeleteVersions(
	formID uint,
	ids []uint,
	txn types.Txn,
) (int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, chunk := range chunk(ids) {
		referenced, err := hasSubmissions(
			db,
			db.Model(&models.FormVersion{}).
				Select("version_id").
				Where("form_id = ? AND id IN ?", formID, chunk),
		)
		if err != nil {
			return deleted, err
		}
		if referenced {
			return deleted, models.ErrVersionHasSubmissions
		}
		result := db.
			Where("form_id = ? AND id IN ?", formID, chunk).
			Delete(&models.FormVersion{})
		if result.Error != nil {
			if IsForeignKeyViolation(result.Error) {
				return deleted, models.ErrVersionHasSubmissions
			}
			return deleted, result.Error
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}

// hasSubmissions reports whether any submission references a version ID
// selected by versionIDs
func hasSubmissions(db *gorm.DB, versionIDs *gorm.DB) (bool, error) {
	var count int64
	result := db.Model(&models.Submission{}).
		Where("version_id IN (?)", versionIDs).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}
