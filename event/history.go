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

package event

// Form history event types. Each carries one of the event structs below as
// its data.
const (
	VersionCreatedEventType   = EventType("history.version.created")
	VersionUpdatedEventType   = EventType("history.version.updated")
	VersionDeletedEventType   = EventType("history.version.deleted")
	VersionPublishedEventType = EventType("history.version.published")
	ResetEventType            = EventType("history.reset")
	LiveEventType             = EventType("history.live")
)

// HistoryEventTypes lists every form history event type
var HistoryEventTypes = []EventType{
	VersionCreatedEventType,
	VersionUpdatedEventType,
	VersionDeletedEventType,
	VersionPublishedEventType,
	ResetEventType,
	LiveEventType,
}

// VersionEvent describes a change to a single version
type VersionEvent struct {
	ActorID         string
	VersionID       string
	ParentVersionID string
	Operation       string
	FormID          uint
}

// ResetEvent is emitted after a force reset has committed
type ResetEvent struct {
	ActorID               string
	TargetVersionID       string
	DeletedVersionIDs     []string
	ReassignedSubmissions int64
	FormID                uint
	Archived              bool
}

// LiveEvent is emitted after a make-live revert has committed. Previous is
// empty when nothing was published before.
type LiveEvent struct {
	ActorID           string
	VersionID         string
	PreviousVersionID string
	FormID            uint
	Changed           bool
}
