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

	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/event"
)

// Publish makes a version the form's only published version. Publishing the
// version that is already live changes nothing.
func (s *Service) Publish(
	ctx context.Context,
	formID uint,
	versionID string,
	actorID string,
) (*Version, error) {
	var ret *Version
	var changed bool
	err := s.run(
		ctx,
		"publish",
		true,
		formAttrs(formID, versionID),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.lockForm(formID, txn)
			if err != nil {
				return err
			}
			v, err := s.db.GetVersion(formID, versionID, txn)
			if err != nil {
				return err
			}
			if changed, err = s.publish(txn, form, v, ""); err != nil {
				return err
			}
			if v, err = s.db.GetVersion(formID, versionID, txn); err != nil {
				return err
			}
			ret = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishEvent(event.VersionPublishedEventType, versionEvent(actorID, ret))
	}
	s.fillAuthors(ctx, ret)
	return ret, nil
}

// isLive reports whether target is published and the form's live pointer
// already refers to it
func isLive(form *models.Form, target *models.FormVersion) bool {
	return target.IsPublished &&
		form.LiveVersionID != nil &&
		*form.LiveVersionID == target.ID
}

// publish is the single writer of publish state and of the form's live
// pointer. The form must already be locked in txn. A non-empty note is
// appended to the target's audit description. It reports whether anything
// changed.
func (s *Service) publish(
	txn *database.Txn,
	form *models.Form,
	target *models.FormVersion,
	note string,
) (bool, error) {
	if note == "" && isLive(form, target) {
		return false, nil
	}
	if _, err := s.db.UnpublishVersions(form.ID, target.ID, txn); err != nil {
		return false, err
	}
	if note != "" {
		meta := target.Metadata.Data()
		meta.AppendNote(note)
		if err := s.db.SetVersionMetadata(target.ID, meta, txn); err != nil {
			return false, err
		}
	}
	if err := s.db.PublishVersion(target.ID, s.now().UTC(), txn); err != nil {
		return false, err
	}
	if err := s.db.SetFormLiveVersion(form.ID, &target.ID, txn); err != nil {
		return false, err
	}
	liveID := target.ID
	form.LiveVersionID = &liveID
	return true, nil
}
