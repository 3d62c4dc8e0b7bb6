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

package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/database/plugin"
	"github.com/tallyforge/formvault/database/types"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn
	BeginTxn(context.Context) (types.Txn, error)
	Savepoint(types.Txn, string, func() error) error

	// Forms
	CreateForm(*models.Form, types.Txn) error
	GetForm(uint, types.Txn) (*models.Form, error)
	LockForm(uint, types.Txn) (*models.Form, error)
	AcquireFormLock(uint, types.Txn) error
	SetFormLiveVersion(
		uint, // formID
		*uint, // liveVersionID
		types.Txn,
	) error

	// Versions
	CreateVersion(*models.FormVersion, types.Txn) error
	GetVersion(
		uint, // formID
		string, // versionID
		types.Txn,
	) (*models.FormVersion, error)
	GetPublishedVersion(uint, types.Txn) (*models.FormVersion, error)
	GetVersionsByForm(uint, types.Txn) ([]models.FormVersion, error)
	GetVersionsCreatedAfter(
		*models.FormVersion,
		types.Txn,
	) ([]models.FormVersion, error)
	UpdateDraftVersion(
		uint, // formID
		string, // versionID
		models.VersionUpdate,
		types.Txn,
	) error
	SetVersionMetadata(uint, models.VersionMetadata, types.Txn) error
	UnpublishVersions(
		uint, // formID
		uint, // exceptID
		types.Txn,
	) (int64, error)
	PublishVersion(uint, time.Time, types.Txn) error
	DeleteDraftVersion(
		uint, // formID
		string, // versionID
		types.Txn,
	) error
	DeleteVersions(
		uint, // formID
		[]uint, // row IDs
		types.Txn,
	) (int64, error)

	// Submissions
	CreateSubmission(*models.Submission, types.Txn) error
	GetSubmission(uint, types.Txn) (*models.Submission, error)
	CountSubmissionsByVersion(string, types.Txn) (int64, error)
	ReassignSubmissions(
		uint, // formID
		[]string, // from version IDs
		string, // to version ID
		types.Txn,
	) (int64, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
