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

package plugin_test

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	_ "github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/database/plugin"
	"github.com/tallyforge/formvault/database/plugin/metadata/postgres"
	"github.com/tallyforge/formvault/internal/config"
)

// Tests here mutate the option values of the registered plugins. They reset
// what they change and must not run in parallel.

func TestSetPluginOption_SuccessAndTypeCheck(t *testing.T) {
	// Empty data-dir keeps sqlite in memory
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "data-dir", ""); err != nil {
		t.Fatalf("unexpected error setting sqlite data-dir: %v", err)
	}

	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "data-dir", 123); err == nil {
		t.Fatalf(
			"expected type error when setting sqlite data-dir with int, got nil",
		)
	}

	// Options only some plugins have are ignored elsewhere
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "advisory-lock", true); err != nil {
		t.Fatalf("unexpected error when setting unknown option: %v", err)
	}

	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "data-dir", ""); err != nil {
		t.Fatalf("unexpected error setting badger data-dir: %v", err)
	}

	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "block-cache-size", uint64(100000000)); err != nil {
		t.Fatalf("unexpected error setting badger block-cache-size: %v", err)
	}

	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "gc", "yes"); err == nil {
		t.Fatal("expected type error when setting badger gc with a string, got nil")
	}

	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, "nonexistent", "data-dir", t.TempDir()); err == nil {
		t.Fatalf(
			"expected error when setting option for nonexistent plugin, got nil",
		)
	}
}

func TestRegisteredStorePlugins(t *testing.T) {
	expected := map[plugin.PluginType][]string{
		plugin.PluginTypeBlob:     {"badger", "s3", "gcs"},
		plugin.PluginTypeMetadata: {"sqlite", "postgres", "mysql"},
	}
	for pluginType, names := range expected {
		registered := map[string]bool{}
		for _, entry := range plugin.GetPlugins(pluginType) {
			registered[entry.Name] = true
		}
		for _, name := range names {
			if !registered[name] {
				t.Errorf(
					"%s plugin %q is not registered",
					plugin.PluginTypeName(pluginType),
					name,
				)
			}
		}
	}
}

func TestDefaultPluginsStartInMemory(t *testing.T) {
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, config.DefaultMetadataPlugin, "data-dir", ""); err != nil {
		t.Fatalf("unexpected error setting sqlite data-dir: %v", err)
	}
	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, config.DefaultBlobPlugin, "data-dir", ""); err != nil {
		t.Fatalf("unexpected error setting badger data-dir: %v", err)
	}
	for _, tc := range []struct {
		name       string
		pluginType plugin.PluginType
	}{
		{config.DefaultMetadataPlugin, plugin.PluginTypeMetadata},
		{config.DefaultBlobPlugin, plugin.PluginTypeBlob},
	} {
		p, err := plugin.StartPlugin(tc.pluginType, tc.name)
		if err != nil {
			t.Fatalf("failed to start %s: %v", tc.name, err)
		}
		if err := p.Stop(); err != nil {
			t.Errorf("failed to stop %s: %v", tc.name, err)
		}
	}
}

func TestPostgresAdvisoryLockOption(t *testing.T) {
	t.Cleanup(func() {
		_ = plugin.SetPluginOption(plugin.PluginTypeMetadata, "postgres", "advisory-lock", false)
		_ = plugin.SetPluginOption(plugin.PluginTypeMetadata, "postgres", "host", "localhost")
	})

	store := func() *postgres.MetadataStorePostgres {
		t.Helper()
		p := plugin.GetPlugin(plugin.PluginTypeMetadata, "postgres")
		pg, ok := p.(*postgres.MetadataStorePostgres)
		if !ok {
			t.Fatalf("expected *postgres.MetadataStorePostgres, got %T", p)
		}
		return pg
	}
	if store().AdvisoryLock() {
		t.Fatal("advisory lock should be off by default")
	}

	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, "postgres", "advisory-lock", "true"); err == nil {
		t.Fatal("expected type error when setting advisory-lock with a string, got nil")
	}
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, "postgres", "advisory-lock", true); err != nil {
		t.Fatalf("unexpected error setting advisory-lock: %v", err)
	}
	if !store().AdvisoryLock() {
		t.Error("advisory lock not applied to new instances")
	}

	// Config file sections arrive keyed by type, then plugin, then option
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {
			"postgres": {"advisory-lock": false, "host": "db.internal"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error processing config: %v", err)
	}
	pg := store()
	if pg.AdvisoryLock() {
		t.Error("advisory lock still set after config disabled it")
	}
	if !strings.Contains(pg.DSN(), "host=db.internal") {
		t.Errorf("host from config missing in DSN %q", pg.DSN())
	}

	t.Setenv("FORMVAULT_METADATA_POSTGRES_ADVISORY_LOCK", "true")
	if err := plugin.ProcessEnvVars(); err != nil {
		t.Fatalf("unexpected error processing env vars: %v", err)
	}
	if !store().AdvisoryLock() {
		t.Error("advisory lock not enabled from the environment")
	}
}

func TestStorePluginFlags(t *testing.T) {
	fs := pflag.NewFlagSet("formvault", pflag.ContinueOnError)
	if err := plugin.PopulateCmdlineOptions(fs); err != nil {
		t.Fatalf("unexpected error populating flags: %v", err)
	}
	for _, name := range []string{
		"metadata-sqlite-data-dir",
		"metadata-postgres-advisory-lock",
		"metadata-mysql-host",
		"blob-badger-gc",
		"blob-s3-bucket",
		"blob-gcs-bucket",
	} {
		if fs.Lookup(name) == nil {
			t.Errorf("flag %q not registered", name)
		}
	}
	// A second pass must not redefine flags
	if err := plugin.PopulateCmdlineOptions(fs); err != nil {
		t.Fatalf("unexpected error repopulating flags: %v", err)
	}
}
