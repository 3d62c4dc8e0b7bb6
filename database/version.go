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

package database

import (
	"time"

	"github.com/tallyforge/formvault/database/models"
)

func (d *Database) CreateVersion(version *models.FormVersion, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.CreateVersion(version, txn.Metadata())
	})
}

// GetVersion returns models.ErrVersionNotFound when the form has no version
// with that ID
func (d *Database) GetVersion(
	formID uint,
	versionID string,
	txn *Txn,
) (*models.FormVersion, error) {
	var ret *models.FormVersion
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetVersion(formID, versionID, txn.Metadata())
		return err
	})
	return ret, err
}

// GetPublishedVersion returns nil without an error when nothing is published
func (d *Database) GetPublishedVersion(
	formID uint,
	txn *Txn,
) (*models.FormVersion, error) {
	var ret *models.FormVersion
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetPublishedVersion(formID, txn.Metadata())
		return err
	})
	return ret, err
}

// GetVersionsByForm returns every version of the form, newest first
func (d *Database) GetVersionsByForm(
	formID uint,
	txn *Txn,
) ([]models.FormVersion, error) {
	var ret []models.FormVersion
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetVersionsByForm(formID, txn.Metadata())
		return err
	})
	return ret, err
}

// GetVersionsCreatedAfter returns the versions of target's form created
// strictly after target. Equal creation times fall back to insertion order.
func (d *Database) GetVersionsCreatedAfter(
	target *models.FormVersion,
	txn *Txn,
) ([]models.FormVersion, error) {
	var ret []models.FormVersion
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetVersionsCreatedAfter(target, txn.Metadata())
		return err
	})
	return ret, err
}

func (d *Database) UpdateDraftVersion(
	formID uint,
	versionID string,
	update models.VersionUpdate,
	txn *Txn,
) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.UpdateDraftVersion(
			formID,
			versionID,
			update,
			txn.Metadata(),
		)
	})
}

func (d *Database) SetVersionMetadata(
	versionRowID uint,
	metadata models.VersionMetadata,
	txn *Txn,
) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.SetVersionMetadata(
			versionRowID,
			metadata,
			txn.Metadata(),
		)
	})
}

// UnpublishVersions demotes every published version of the form except the
// row exceptID and returns the number of demoted rows
func (d *Database) UnpublishVersions(
	formID uint,
	exceptID uint,
	txn *Txn,
) (int64, error) {
	var ret int64
	err := d.withTxn(txn, true, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.UnpublishVersions(formID, exceptID, txn.Metadata())
		return err
	})
	return ret, err
}

func (d *Database) PublishVersion(
	versionRowID uint,
	publishedAt time.Time,
	txn *Txn,
) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.PublishVersion(versionRowID, publishedAt, txn.Metadata())
	})
}

// DeleteDraftVersion removes a version that has never been published and
// has no submissions
func (d *Database) DeleteDraftVersion(
	formID uint,
	versionID string,
	txn *Txn,
) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.DeleteDraftVersion(formID, versionID, txn.Metadata())
	})
}

func (d *Database) DeleteVersions(
	formID uint,
	rowIDs []uint,
	txn *Txn,
) (int64, error) {
	var ret int64
	err := d.withTxn(txn, true, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.DeleteVersions(formID, rowIDs, txn.Metadata())
		return err
	})
	return ret, err
}
