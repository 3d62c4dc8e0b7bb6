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
	"errors"
	"fmt"
	"time"

	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/models"
	"github.com/tallyforge/formvault/event"
)

// Strategy selects one of the revert operations. It is implemented only by
// ForceResetStrategy, MakeLiveStrategy and MakeLatestStrategy.
type Strategy interface {
	Name() string
	isStrategy()
}

// ForceResetStrategy deletes every version newer than the target, moves
// their submissions onto the target and publishes it
type ForceResetStrategy struct{}

// MakeLiveStrategy publishes the target without deleting anything
type MakeLiveStrategy struct{}

// MakeLatestStrategy starts a new draft from the target's schema and leaves
// the published version alone
type MakeLatestStrategy struct {
	Description string
}

const (
	StrategyForceReset = "force-reset"
	StrategyMakeLive   = "make-live"
	StrategyMakeLatest = "make-latest"
)

func (ForceResetStrategy) Name() string { return StrategyForceReset }
func (MakeLiveStrategy) Name() string   { return StrategyMakeLive }
func (MakeLatestStrategy) Name() string { return StrategyMakeLatest }

func (ForceResetStrategy) isStrategy() {}
func (MakeLiveStrategy) isStrategy()   {}
func (MakeLatestStrategy) isStrategy() {}

// ParseStrategy returns the strategy with the given name. The description
// only applies to make-latest.
func ParseStrategy(name string, description string) (Strategy, error) {
	switch name {
	case StrategyForceReset:
		return ForceResetStrategy{}, nil
	case StrategyMakeLive:
		return MakeLiveStrategy{}, nil
	case StrategyMakeLatest:
		return MakeLatestStrategy{Description: description}, nil
	}
	return nil, newError(
		KindValidationFailed,
		"revert",
		fmt.Errorf("%w: %q", ErrUnknownStrategy, name),
	)
}

// RevertResult describes what a revert did
type RevertResult struct {
	// Version is the published target, or the new draft for make-latest
	Version               *Version
	Strategy              string
	DeletedVersionIDs     []string
	ReassignedSubmissions int64
	Archived              bool
	// Changed is false when make-live found the target already live
	Changed bool
}

// Revert dispatches to the operation selected by strategy
func (s *Service) Revert(
	ctx context.Context,
	formID uint,
	targetVersionID string,
	actorID string,
	strategy Strategy,
) (*RevertResult, error) {
	switch st := strategy.(type) {
	case ForceResetStrategy:
		return s.ForceReset(ctx, formID, targetVersionID, actorID)
	case MakeLiveStrategy:
		return s.MakeLive(ctx, formID, targetVersionID, actorID)
	case MakeLatestStrategy:
		return s.MakeLatest(ctx, formID, targetVersionID, actorID, st.Description)
	}
	return nil, newError(KindValidationFailed, "revert", ErrUnknownStrategy)
}

// loadTarget reports a missing target as ErrTargetNotFound, distinct from a
// missing form
func (s *Service) loadTarget(
	formID uint,
	targetVersionID string,
	txn *database.Txn,
) (*models.FormVersion, error) {
	target, err := s.db.GetVersion(formID, targetVersionID, txn)
	if err != nil {
		if errors.Is(err, models.ErrVersionNotFound) {
			return nil, newError(KindNotFound, "", ErrTargetNotFound)
		}
		return nil, err
	}
	return target, nil
}

func forceResetNote(actorID string, at time.Time, removed int) string {
	return fmt.Sprintf(
		"force reset by %s at %s: removed %d later version(s)",
		actorOrUnknown(actorID),
		at.Format(time.RFC3339),
		removed,
	)
}

func makeLiveNote(actorID string, at time.Time) string {
	return fmt.Sprintf(
		"made live by %s at %s",
		actorOrUnknown(actorID),
		at.Format(time.RFC3339),
	)
}

func actorOrUnknown(actorID string) string {
	if actorID == "" {
		return "unknown"
	}
	return actorID
}

// ForceReset collapses the form's history onto the target. Versions created
// after the target are archived when the archive is enabled and then
// deleted. Their submissions are moved to the target first. The target is
// published with a force-reset audit note. Nothing is applied unless every
// step succeeds.
func (s *Service) ForceReset(
	ctx context.Context,
	formID uint,
	targetVersionID string,
	actorID string,
) (*RevertResult, error) {
	ret := &RevertResult{Strategy: StrategyForceReset, Changed: true}
	err := s.run(
		ctx,
		"force_reset",
		true,
		formAttrs(formID, targetVersionID),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.lockForm(formID, txn)
			if err != nil {
				return err
			}
			target, err := s.loadTarget(formID, targetVersionID, txn)
			if err != nil {
				return err
			}
			doomed, err := s.db.GetVersionsCreatedAfter(target, txn)
			if err != nil {
				return err
			}
			doomedIDs := make([]string, 0, len(doomed))
			rowIDs := make([]uint, 0, len(doomed))
			for _, v := range doomed {
				doomedIDs = append(doomedIDs, v.VersionID)
				rowIDs = append(rowIDs, v.ID)
			}
			// Submissions must leave the doomed versions before they go
			if len(doomedIDs) > 0 {
				moved, err := s.db.ReassignSubmissions(formID, doomedIDs, target.VersionID, txn)
				if err != nil {
					return err
				}
				ret.ReassignedSubmissions = moved
				if s.db.ArchiveEnabled() {
					if err := s.db.ArchiveVersions(txn, doomed, target.VersionID, s.now()); err != nil {
						return err
					}
					ret.Archived = true
				}
				deleted, err := s.db.DeleteVersions(formID, rowIDs, txn)
				if err != nil {
					return err
				}
				if deleted != int64(len(rowIDs)) {
					return fmt.Errorf(
						"deleted %d of %d versions",
						deleted,
						len(rowIDs),
					)
				}
			}
			ret.DeletedVersionIDs = doomedIDs
			note := forceResetNote(actorID, s.now().UTC(), len(doomedIDs))
			if _, err := s.publish(txn, form, target, note); err != nil {
				return err
			}
			v, err := s.db.GetVersion(formID, targetVersionID, txn)
			if err != nil {
				return err
			}
			ret.Version = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.versionsPruned.Add(float64(len(ret.DeletedVersionIDs)))
		s.metrics.submissionsReassigned.Add(float64(ret.ReassignedSubmissions))
	}
	s.logger.Info(
		"force reset",
		"form_id", formID,
		"target", targetVersionID,
		"deleted", len(ret.DeletedVersionIDs),
		"reassigned_submissions", ret.ReassignedSubmissions,
		"archived", ret.Archived,
	)
	s.publishEvent(event.ResetEventType, event.ResetEvent{
		ActorID:               actorID,
		TargetVersionID:       targetVersionID,
		DeletedVersionIDs:     ret.DeletedVersionIDs,
		ReassignedSubmissions: ret.ReassignedSubmissions,
		FormID:                formID,
		Archived:              ret.Archived,
	})
	s.fillAuthors(ctx, ret.Version)
	return ret, nil
}

// MakeLive publishes the target and demotes every other version. No version
// or submission is removed. When the target is already live nothing changes,
// not even its audit description.
func (s *Service) MakeLive(
	ctx context.Context,
	formID uint,
	targetVersionID string,
	actorID string,
) (*RevertResult, error) {
	ret := &RevertResult{Strategy: StrategyMakeLive}
	var previous string
	err := s.run(
		ctx,
		"make_live",
		true,
		formAttrs(formID, targetVersionID),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.lockForm(formID, txn)
			if err != nil {
				return err
			}
			target, err := s.loadTarget(formID, targetVersionID, txn)
			if err != nil {
				return err
			}
			if !isLive(form, target) {
				current, err := s.db.GetPublishedVersion(formID, txn)
				if err != nil {
					return err
				}
				if current != nil {
					previous = current.VersionID
				}
				note := makeLiveNote(actorID, s.now().UTC())
				if ret.Changed, err = s.publish(txn, form, target, note); err != nil {
					return err
				}
				if target, err = s.db.GetVersion(formID, targetVersionID, txn); err != nil {
					return err
				}
			}
			ret.Version = newVersion(target)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if ret.Changed {
		s.publishEvent(event.LiveEventType, event.LiveEvent{
			ActorID:           actorID,
			VersionID:         targetVersionID,
			PreviousVersionID: previous,
			FormID:            formID,
			Changed:           true,
		})
	}
	s.fillAuthors(ctx, ret.Version)
	return ret, nil
}

// MakeLatest starts a new draft derived from the target. The published
// version is not touched.
func (s *Service) MakeLatest(
	ctx context.Context,
	formID uint,
	targetVersionID string,
	authorID string,
	description string,
) (*RevertResult, error) {
	const op = "make_latest"
	if authorID == "" {
		return nil, newError(KindValidationFailed, op, ErrAuthorRequired)
	}
	ret := &RevertResult{Strategy: StrategyMakeLatest, Changed: true}
	err := s.run(
		ctx,
		op,
		true,
		formAttrs(formID, targetVersionID),
		func(ctx context.Context, txn *database.Txn) error {
			form, err := s.lockForm(formID, txn)
			if err != nil {
				return err
			}
			if _, err := s.loadTarget(formID, targetVersionID, txn); err != nil {
				return err
			}
			v, err := s.createVersion(txn, form, authorID, CreateVersionInput{
				Description:     description,
				ParentVersionID: targetVersionID,
				AuditNote:       "branched from " + targetVersionID,
			})
			if err != nil {
				return err
			}
			ret.Version = newVersion(v)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	s.publishEvent(event.VersionCreatedEventType, versionEvent(authorID, ret.Version))
	s.fillAuthors(ctx, ret.Version)
	return ret, nil
}
