// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package plugin_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallyforge/formvault/database/plugin"
)

type optionTarget struct {
	dir     string
	enabled bool
	retries int
	size    uint64
}

func registerOptionPlugin(t *testing.T, target *optionTarget) string {
	t.Helper()
	name := "opt-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               name,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: "default-dir",
				Dest:         &target.dir,
			},
			{
				Name:         "enabled",
				Type:         plugin.PluginOptionTypeBool,
				DefaultValue: false,
				Dest:         &target.enabled,
			},
			{
				Name:         "retries",
				Type:         plugin.PluginOptionTypeInt,
				DefaultValue: 3,
				Dest:         &target.retries,
			},
			{
				Name:         "size",
				Type:         plugin.PluginOptionTypeUint,
				DefaultValue: uint64(10),
				Dest:         &target.size,
			},
		},
	})
	return name
}

func TestProcessConfig(t *testing.T) {
	target := &optionTarget{}
	name := registerOptionPlugin(t, target)
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {
			name: {
				"data-dir": "/var/lib/formvault",
				"enabled":  true,
				"retries":  7,
				"size":     uint64(2048),
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/formvault", target.dir)
	assert.True(t, target.enabled)
	assert.Equal(t, 7, target.retries)
	assert.Equal(t, uint64(2048), target.size)
}

func TestProcessConfigUnknownPlugin(t *testing.T) {
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"metadata": {"missing-" + t.Name(): {}},
	})
	require.Error(t, err)
	err = plugin.ProcessConfig(map[string]map[string]map[string]any{
		"bogus": {},
	})
	require.Error(t, err)
}

func TestProcessEnvVars(t *testing.T) {
	target := &optionTarget{}
	name := registerOptionPlugin(t, target)
	opt := plugin.PluginOption{Name: "data-dir"}
	envName := opt.EnvName("metadata", name)
	t.Setenv(envName, "/from/env")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, "/from/env", target.dir)
}

func TestProcessEnvVarsBadValue(t *testing.T) {
	target := &optionTarget{}
	name := registerOptionPlugin(t, target)
	opt := plugin.PluginOption{Name: "retries"}
	t.Setenv(opt.EnvName("metadata", name), "many")
	require.Error(t, plugin.ProcessEnvVars())
}

func TestPopulateCmdlineOptions(t *testing.T) {
	target := &optionTarget{}
	name := registerOptionPlugin(t, target)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	flagName := "metadata-" + name + "-data-dir"
	require.NotNil(t, fs.Lookup(flagName))
	assert.Equal(t, "default-dir", target.dir)
	require.NoError(t, fs.Parse([]string{"--" + flagName + "=/from/flag"}))
	assert.Equal(t, "/from/flag", target.dir)
}

func TestPluginTypeFromString(t *testing.T) {
	assert.Equal(t, plugin.PluginTypeBlob, plugin.PluginTypeFromString("blob"))
	assert.Equal(
		t,
		plugin.PluginTypeMetadata,
		plugin.PluginTypeFromString("Metadata"),
	)
	assert.Equal(t, plugin.PluginType(0), plugin.PluginTypeFromString("x"))
}

func TestProcessEnvVarsCustom(t *testing.T) {
	var host string
	name := "custom-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               name,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "host",
				Type:         plugin.PluginOptionTypeString,
				CustomEnvVar: "FORMVAULT_TEST_CUSTOM_HOST",
				Dest:         &host,
			},
		},
	})
	opt := plugin.PluginOption{Name: "host"}
	t.Setenv(opt.EnvName("metadata", name), "prefixed")
	t.Setenv("FORMVAULT_TEST_CUSTOM_HOST", "custom")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, "custom", host)
}
