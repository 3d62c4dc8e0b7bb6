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
	"github.com/tallyforge/formvault/database/models"
)

// CreateForm stores a new form and fills in its ID
func (d *Database) CreateForm(form *models.Form, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.CreateForm(form, txn.Metadata())
	})
}

// GetForm returns models.ErrFormNotFound when the form does not exist
func (d *Database) GetForm(formID uint, txn *Txn) (*models.Form, error) {
	var ret *models.Form
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetForm(formID, txn.Metadata())
		return err
	})
	return ret, err
}

// LockForm takes the per-form lock for the rest of txn and returns the
// locked row. The store's advisory lock, when enabled, is taken first.
func (d *Database) LockForm(formID uint, txn *Txn) (*models.Form, error) {
	if txn == nil {
		return nil, ErrTxnRequired
	}
	if err := d.metadata.AcquireFormLock(formID, txn.Metadata()); err != nil {
		return nil, err
	}
	return d.metadata.LockForm(formID, txn.Metadata())
}

// SetFormLiveVersion points the form's cached live version at the version
// row ID, or clears it when versionRowID is nil
func (d *Database) SetFormLiveVersion(
	formID uint,
	versionRowID *uint,
	txn *Txn,
) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.SetFormLiveVersion(formID, versionRowID, txn.Metadata())
	})
}
