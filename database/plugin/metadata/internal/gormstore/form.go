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

func (s *Store) CreateForm(form *models.Form, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(form).Error
}

// GetForm returns models.ErrFormNotFound when the form does not exist
func (s *Store) GetForm(formID uint, txn types.Txn) (*models.Form, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	return firstForm(db, formID)
}

// LockForm loads the form row and holds it until the transaction ends.
// Backends without row locks rely on their writer serialization instead.
func (s *Store) LockForm(formID uint, txn types.Txn) (*models.Form, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	return firstForm(s.dialect.lockClause(db), formID)
}

// AcquireFormLock takes the optional advisory lock for a form
func (s *Store) AcquireFormLock(formID uint, txn types.Txn) error {
	if s.dialect.AdvisoryLock == nil {
		return nil
	}
	if txn == nil {
		return types.ErrNilTxn
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return s.dialect.AdvisoryLock(db, formID)
}

// SetFormLiveVersion updates the cached pointer to the published version
func (s *Store) SetFormLiveVersion(
	formID uint,
	liveVersionID *uint,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Form{}).
		Where("id = ?", formID).
		Update("live_version_id", liveVersionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFormNotFound
	}
	return nil
}

func firstForm(db *gorm.DB, formID uint) (*models.Form, error) {
	ret := &models.Form{}
	if result := db.First(ret, formID); result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrFormNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}
