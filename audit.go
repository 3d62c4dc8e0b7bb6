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

package formvault

import (
	"github.com/tallyforge/formvault/event"
)

// subscribeAuditLog writes every history event to the log
func (s *Server) subscribeAuditLog() {
	logger := s.config.logger.With("component", "audit")
	for _, eventType := range event.HistoryEventTypes {
		s.eventBus.SubscribeFunc(eventType, func(evt event.Event) {
			switch data := evt.Data.(type) {
			case event.VersionEvent:
				logger.Info(
					string(evt.Type),
					"form_id", data.FormID,
					"version_id", data.VersionID,
					"parent_version_id", data.ParentVersionID,
					"operation", data.Operation,
					"actor", data.ActorID,
				)
			case event.ResetEvent:
				logger.Info(
					string(evt.Type),
					"form_id", data.FormID,
					"target_version_id", data.TargetVersionID,
					"deleted_versions", data.DeletedVersionIDs,
					"reassigned_submissions", data.ReassignedSubmissions,
					"archived", data.Archived,
					"actor", data.ActorID,
				)
			case event.LiveEvent:
				logger.Info(
					string(evt.Type),
					"form_id", data.FormID,
					"version_id", data.VersionID,
					"previous_version_id", data.PreviousVersionID,
					"changed", data.Changed,
					"actor", data.ActorID,
				)
			default:
				logger.Info(string(evt.Type), "data", evt.Data)
			}
		})
	}
}
