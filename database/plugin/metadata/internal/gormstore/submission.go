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

	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/types"
	"gorm.io/gorm"
)

func (s *Store) CreateSubmission(
	submission *models.Submission,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	if err := db.Create(submission).Error; err != nil {
		if IsForeignKeyViolation(err) {
			return models.ErrVersionNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetSubmission(
	id uint,
	txn types.Txn,
) (*models.Submission, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Submission{}
	if result := db.First(ret, id); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrSubmissionNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) CountSubmissionsByVersion(
	versionID string,
	txn types.Txn,
) (int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var count int64
	result := db.Model(&models.Submission{}).
		Where("version_id = ?", versionID).
		Count(&count)
	return count, result.Error
}

// ReassignSubmissions moves submissions of a form from the given versions to
// another version and returns how many rows moved
func (s *Store) ReassignSubmissions(
	formID uint,
	fromVersionIDs []string,
	toVersionID string,
	txn types.Txn,
) (int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var moved int64
	for _, chunk := range chunk(fromVersionIDs) {
		result := db.Model(&models.Submission{}).
			Where("form_id = ? AND version_id IN ?", formID, chunk).
			Update("version_id", toVersionID)
		if result.Error != nil {
			return moved, result.Error
		}
		moved += result.RowsAffected
	}
	return moved, nil
}
