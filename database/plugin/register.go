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

package plugin

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob PluginType = iota + 1
	PluginTypeMetadata
)

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return ""
	}
}

// PluginTypeFromString is the inverse of PluginTypeName. It returns 0 for
// unknown names.
func PluginTypeFromString(name string) PluginType {
	switch strings.ToLower(name) {
	case "blob":
		return PluginTypeBlob
	case "metadata":
		return PluginTypeMetadata
	default:
		return 0
	}
}

type PluginEntry struct {
	NewFromOptionsFunc func() Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

var pluginEntries []PluginEntry

// Register adds a plugin to the registry. Registering the same type and name
// twice replaces the earlier entry.
func Register(pluginEntry PluginEntry) {
	for i := range pluginEntries {
		if pluginEntries[i].Type == pluginEntry.Type &&
			pluginEntries[i].Name == pluginEntry.Name {
			pluginEntries[i] = pluginEntry
			return
		}
	}
	pluginEntries = append(pluginEntries, pluginEntry)
}

// PopulateCmdlineOptions adds a flag for every registered plugin option
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	for _, p := range pluginEntries {
		for _, option := range p.Options {
			if err := option.AddToFlagSet(fs, PluginTypeName(p.Type), p.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options from the environment
func ProcessEnvVars() error {
	for _, pluginEntry := range pluginEntries {
		for _, option := range pluginEntry.Options {
			if err := option.ProcessEnvVars(
				PluginTypeName(pluginEntry.Type),
				pluginEntry.Name,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a config file. The map is keyed
// by plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for pluginTypeName, typePlugins := range pluginConfig {
		pluginType := PluginTypeFromString(pluginTypeName)
		if pluginType == 0 {
			return fmt.Errorf("unknown plugin type: %s", pluginTypeName)
		}
		for pluginName, pluginData := range typePlugins {
			entry := findEntry(pluginType, pluginName)
			if entry == nil {
				return fmt.Errorf(
					"%s plugin '%s' not found",
					pluginTypeName,
					pluginName,
				)
			}
			for _, option := range entry.Options {
				if err := option.ProcessConfig(pluginData); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func findEntry(pluginType PluginType, pluginName string) *PluginEntry {
	for i := range pluginEntries {
		if pluginEntries[i].Type == pluginType &&
			pluginEntries[i].Name == pluginName {
			return &pluginEntries[i]
		}
	}
	return nil
}

// GetPlugins returns the registry entries for a plugin type
func GetPlugins(pluginType PluginType) []PluginEntry {
	ret := []PluginEntry{}
	for _, pluginEntry := range pluginEntries {
		if pluginEntry.Type == pluginType {
			ret = append(ret, pluginEntry)
		}
	}
	return ret
}

// GetPlugin creates a new plugin instance from the current option values
func GetPlugin(pluginType PluginType, name string) Plugin {
	entry := findEntry(pluginType, name)
	if entry == nil || entry.NewFromOptionsFunc == nil {
		return nil
	}
	return entry.NewFromOptionsFunc()
}
