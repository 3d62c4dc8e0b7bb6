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

// CreateSubmission records a submission against an existing version
func (d *Database) CreateSubmission(submission *models.Submission, txn *Txn) error {
	return d.withTxn(txn, true, func(txn *Txn) error {
		return d.metadata.CreateSubmission(submission, txn.Metadata())
	})
}

func (d *Database) GetSubmission(id uint, txn *Txn) (*models.Submission, error) {
	var ret *models.Submission
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetSubmission(id, txn.Metadata())
		return err
	})
	return ret, err
}

func (d *Database) CountSubmissionsByVersion(versionID string, txn *Txn) (int64, error) {
	var ret int64
	err := d.withTxn(txn, false, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.CountSubmissionsByVersion(versionID, txn.Metadata())
		return err
	})
	return ret, err
}

// ReassignSubmissions moves every submission of the form that references one
// of fromVersionIDs onto toVersionID
func (d *Database) ReassignSubmissions(
	formID uint,
	fromVersionIDs []string,
	toVersionID string,
	txn *Txn,
) (int64, error) {
	var ret int64
	err := d.withTxn(txn, true, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.ReassignSubmissions(
			formID,
			fromVersionIDs,
			toVersionID,
			txn.Metadata(),
		)
		return err
	})
	return ret, err
}
