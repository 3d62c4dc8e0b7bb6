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
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const liveIndexName = "idx_form_versions_one_live"

// Dialect describes what differs between the relational backends
type Dialect struct {
	// CreateLiveIndex enforces at most one published version per form at
	// the database level
	CreateLiveIndex func(db *gorm.DB) error
	// AdvisoryLock takes a lock scoped to the transaction, keyed by form. Nil
	// when the backend has none or the feature is disabled.
	AdvisoryLock func(tx *gorm.DB, formID uint) error
	Name         string
	// RowLocks enables SELECT ... FOR UPDATE on the form row
	RowLocks bool
}

// PartialLiveIndex creates a partial unique index. Both sqlite and postgres
// accept the same statement.
func PartialLiveIndex(db *gorm.DB) error {
	return db.Exec(
		fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s ON form_versions (form_id) WHERE is_published",
			liveIndexName,
		),
	).Error
}

// GeneratedColumnLiveIndex emulates a partial unique index for backends
// without one: a generated column holds the form ID only for the published
// row, and NULLs do not collide in a unique index
func GeneratedColumnLiveIndex(db *gorm.DB) error {
	if db.Migrator().HasColumn("form_versions", "live_form_id") {
		return nil
	}
	return db.Exec(
		fmt.Sprintf(
			"ALTER TABLE form_versions ADD COLUMN live_form_id BIGINT UNSIGNED AS (CASE WHEN is_published THEN form_id ELSE NULL END) VIRTUAL, ADD UNIQUE INDEX %s (live_form_id)",
			liveIndexName,
		),
	).Error
}

// PostgresAdvisoryLock uses the two-key form of pg_advisory_xact_lock so form
// locks live in their own namespace
func PostgresAdvisoryLock(tx *gorm.DB, formID uint) error {
	return tx.Exec(
		"SELECT pg_advisory_xact_lock(?, ?)",
		advisoryLockNamespace,
		int32(formID), //nolint:gosec // wraps for very large IDs, which only widens the lock
	).Error
}

// "fv" in ASCII
const advisoryLockNamespace int32 = 0x6676

func (d Dialect) lockClause(db *gorm.DB) *gorm.DB {
	if !d.RowLocks {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
