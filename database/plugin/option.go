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
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every plugin option environment variable
const EnvPrefix = "FORMVAULT"

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	// CustomEnvVar is an additional variable, such as PGHOST, that overrides
	// the prefixed one
	CustomEnvVar string
	Type         PluginOptionType
}

func (p *PluginOption) flagName(pluginType string, pluginName string) string {
	return fmt.Sprintf("%s-%s-%s", pluginType, pluginName, p.Name)
}

// EnvName returns the environment variable that overrides this option, for
// example FORMVAULT_METADATA_SQLITE_DATA_DIR
func (p *PluginOption) EnvName(pluginType string, pluginName string) string {
	name := strings.Join(
		[]string{EnvPrefix, pluginType, pluginName, p.Name},
		"_",
	)
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func (p *PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginType string,
	pluginName string,
) error {
	flagName := p.flagName(pluginType, pluginName)
	if fs.Lookup(flagName) != nil {
		return nil
	}
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok {
			return fmt.Errorf("option %s: expected *string destination", p.Name)
		}
		def, _ := p.DefaultValue.(string)
		fs.StringVar(dest, flagName, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok {
			return fmt.Errorf("option %s: expected *bool destination", p.Name)
		}
		def, _ := p.DefaultValue.(bool)
		fs.BoolVar(dest, flagName, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok {
			return fmt.Errorf("option %s: expected *int destination", p.Name)
		}
		def, _ := p.DefaultValue.(int)
		fs.IntVar(dest, flagName, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("option %s: expected *uint64 destination", p.Name)
		}
		def, _ := p.DefaultValue.(uint64)
		fs.Uint64Var(dest, flagName, def, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

func (p *PluginOption) ProcessEnvVars(pluginType string, pluginName string) error {
	if value, ok := os.LookupEnv(p.EnvName(pluginType, pluginName)); ok {
		if err := p.setFromString(value); err != nil {
			return err
		}
	}
	if p.CustomEnvVar == "" {
		return nil
	}
	if value, ok := os.LookupEnv(p.CustomEnvVar); ok {
		return p.setFromString(value)
	}
	return nil
}

// ProcessConfig applies a value from a plugin's config map. Values decoded
// from YAML may arrive as any scalar type, so they are normalized through
// their string form.
func (p *PluginOption) ProcessConfig(pluginData map[string]any) error {
	value, ok := pluginData[p.Name]
	if !ok {
		return nil
	}
	if s, ok := value.(string); ok {
		return p.setFromString(s)
	}
	return p.setFromString(fmt.Sprint(value))
}

func (p *PluginOption) setFromString(value string) error {
	switch p.Type {
	case PluginOptionTypeString:
		return assignOption(p.Dest, p.Name, value)
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		return assignOption(p.Dest, p.Name, v)
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		return assignOption(p.Dest, p.Name, v)
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		return assignOption(p.Dest, p.Name, v)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
}

// assignOption stores value into dest, which must be a non-nil *T
func assignOption[T any](dest any, optionName string, value T) error {
	if dest == nil {
		return fmt.Errorf("nil destination for option %s", optionName)
	}
	ptr, ok := dest.(*T)
	if !ok {
		return fmt.Errorf(
			"invalid destination type for option %s: expected %T",
			optionName,
			ptr,
		)
	}
	if ptr == nil {
		return fmt.Errorf("nil destination pointer for option %s", optionName)
	}
	*ptr = value
	return nil
}
