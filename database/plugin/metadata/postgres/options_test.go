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

package postgres

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWithHost(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithHost("db.local")

	option(m)

	if m.host != "db.local" {
		t.Errorf("Expected host to be 'db.local', got '%s'", m.host)
	}
}

func TestWithPort(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithPort(uint(5432))

	option(m)

	if m.port != 5432 {
		t.Errorf("Expected port to be 5432, got '%d'", m.port)
	}
}

func TestWithUser(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithUser("postgres")

	option(m)

	if m.user != "postgres" {
		t.Errorf("Expected user to be 'postgres', got '%s'", m.user)
	}
}

func TestWithPassword(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithPassword("secret")

	option(m)

	if m.password != "secret" {
		t.Errorf("Expected password to be set")
	}
}

func TestWithDatabase(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithDatabase("formvault")

	option(m)

	if m.database != "formvault" {
		t.Errorf("Expected database to be 'formvault', got '%s'", m.database)
	}
}

func TestWithSSLMode(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithSSLMode("require")

	option(m)

	if m.sslMode != "require" {
		t.Errorf("Expected sslMode to be 'require', got '%s'", m.sslMode)
	}
}

func TestWithTimeZone(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithTimeZone("UTC")

	option(m)

	if m.timeZone != "UTC" {
		t.Errorf("Expected timeZone to be 'UTC', got '%s'", m.timeZone)
	}
}

func TestWithDSN(t *testing.T) {
	m := &MetadataStorePostgres{}
	option := WithDSN("host=localhost dbname=formvault")

	option(m)

	if m.dsn != "host=localhost dbname=formvault" {
		t.Errorf("Expected dsn to be set")
	}
}

func TestWithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := &MetadataStorePostgres{}
	option := WithLogger(logger)

	option(m)

	if m.logger != logger {
		t.Errorf("Expected logger to be set")
	}
}

func TestWithPromRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &MetadataStorePostgres{}
	option := WithPromRegistry(reg)

	option(m)

	if m.promRegistry != reg {
		t.Errorf("Expected promRegistry to be set")
	}
}

func TestWithAdvisoryLock(t *testing.T) {
	m := &MetadataStorePostgres{}
	WithAdvisoryLock(true)(m)

	if !m.advisoryLock {
		t.Errorf("Expected advisoryLock to be enabled")
	}
	if m.dialect().AdvisoryLock == nil {
		t.Errorf("Expected dialect to carry an advisory lock")
	}
	if !m.dialect().RowLocks {
		t.Errorf("Expected row locks to be enabled")
	}
}

func TestDefaultsAndDSN(t *testing.T) {
	m, err := NewWithOptions(WithPassword("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	expected := "host=localhost user=postgres password=secret dbname=postgres port=5432 sslmode=disable TimeZone=UTC"
	if m.DSN() != expected {
		t.Errorf("Expected DSN %q, got %q", expected, m.DSN())
	}
	if m.dialect().AdvisoryLock != nil {
		t.Errorf("Expected no advisory lock by default")
	}
	m, _ = NewWithOptions(WithDSN("  postgres://u@h/db  "))
	if m.DSN() != "postgres://u@h/db" {
		t.Errorf("Expected explicit DSN to win, got %q", m.DSN())
	}
}

func TestCloseBeforeStart(t *testing.T) {
	m, err := NewWithOptions()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Expected Close before Start to succeed, got %s", err)
	}
}
