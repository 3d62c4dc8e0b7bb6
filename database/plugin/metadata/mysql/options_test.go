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

package mysql

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestWithHost(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithHost("db.local")

	option(m)

	if m.host != "db.local" {
		t.Errorf("Expected host to be 'db.local', got '%s'", m.host)
	}
}

func TestWithPort(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithPort(uint(3306))

	option(m)

	if m.port != 3306 {
		t.Errorf("Expected port to be 3306, got '%d'", m.port)
	}
}

func TestWithUser(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithUser("root")

	option(m)

	if m.user != "root" {
		t.Errorf("Expected user to be 'root', got '%s'", m.user)
	}
}

func TestWithPassword(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithPassword("secret")

	option(m)

	if m.password != "secret" {
		t.Errorf("Expected password to be set")
	}
}

func TestWithDatabase(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithDatabase("formvault")

	option(m)

	if m.database != "formvault" {
		t.Errorf("Expected database to be 'formvault', got '%s'", m.database)
	}
}

func TestWithSSLMode(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithSSLMode("require")

	option(m)

	if m.sslMode != "require" {
		t.Errorf("Expected sslMode to be 'require', got '%s'", m.sslMode)
	}
}

func TestWithTimeZone(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithTimeZone("UTC")

	option(m)

	if m.timeZone != "UTC" {
		t.Errorf("Expected timeZone to be 'UTC', got '%s'", m.timeZone)
	}
}

func TestWithDSN(t *testing.T) {
	m := &MetadataStoreMysql{}
	option := WithDSN("root:secret@tcp(localhost:3306)/formvault?parseTime=true")

	option(m)

	if m.dsn != "root:secret@tcp(localhost:3306)/formvault?parseTime=true" {
		t.Errorf("Expected dsn to be set")
	}
}

func TestWithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := &MetadataStoreMysql{}
	option := WithLogger(logger)

	option(m)

	if m.logger != logger {
		t.Errorf("Expected logger to be set")
	}
}

func TestWithPromRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &MetadataStoreMysql{}
	option := WithPromRegistry(reg)

	option(m)

	if m.promRegistry != reg {
		t.Errorf("Expected promRegistry to be set")
	}
}

func TestWithMaxConnections(t *testing.T) {
	m := &MetadataStoreMysql{}
	WithMaxConnections(7)(m)

	if m.maxConns != 7 {
		t.Errorf("Expected maxConns to be 7, got %d", m.maxConns)
	}
}

func TestDSNFromOptions(t *testing.T) {
	m, err := NewWithOptions(
		WithHost("db.local"),
		WithPassword("secret"),
		WithSSLMode("preferred"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	dsn, dbName := m.DSN()
	if dbName != "formvault" {
		t.Errorf("Expected database 'formvault', got '%s'", dbName)
	}
	if !strings.HasPrefix(dsn, "root:secret@tcp(db.local:3306)/formvault?") {
		t.Errorf("Unexpected DSN prefix: %s", dsn)
	}
	for _, want := range []string{"parseTime=true", "tls=preferred"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("Expected DSN to contain %s, got %s", want, dsn)
		}
	}
	if m.maxConns != 100 {
		t.Errorf("Expected default maxConns of 100, got %d", m.maxConns)
	}
}

func TestDSNOverride(t *testing.T) {
	m, _ := NewWithOptions(
		WithDSN(" user:pw@tcp(h:3306)/forms?parseTime=true "),
	)
	dsn, dbName := m.DSN()
	if dsn != "user:pw@tcp(h:3306)/forms?parseTime=true" {
		t.Errorf("Expected explicit DSN, got %s", dsn)
	}
	if dbName != "forms" {
		t.Errorf("Expected database 'forms', got '%s'", dbName)
	}
}

func TestStripDatabaseFromDSN(t *testing.T) {
	testDefs := []struct {
		dsn      string
		expected string
		ok       bool
	}{
		{
			dsn:      "user:pw@tcp(h:3306)/forms?parseTime=true",
			expected: "user:pw@tcp(h:3306)/?parseTime=true",
			ok:       true,
		},
		{
			dsn:      "user:pw@tcp(h:3306)/forms",
			expected: "user:pw@tcp(h:3306)/",
			ok:       true,
		},
		{
			dsn: "no-slash",
		},
	}
	for _, testDef := range testDefs {
		got, ok := stripDatabaseFromDSN(testDef.dsn)
		if ok != testDef.ok || got != testDef.expected {
			t.Errorf(
				"stripDatabaseFromDSN(%q) = %q, %v; expected %q, %v",
				testDef.dsn,
				got,
				ok,
				testDef.expected,
				testDef.ok,
			)
		}
	}
}

func TestCloseBeforeStart(t *testing.T) {
	m, _ := NewWithOptions()
	if err := m.Close(); err != nil {
		t.Errorf("Expected Close before Start to succeed, got %s", err)
	}
}
