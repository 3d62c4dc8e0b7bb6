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

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tallyforge/formvault/database/plugin"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "formvault.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"
	// EnvPrefix is the prefix of every environment variable read into Config
	EnvPrefix = "formvault"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// tempConfig splits a config file into its sections. Config must stay a
// yaml.Node value: yaml.v3 only captures the raw node for that type, and a
// pointer would be decoded as an ordinary struct.
type tempConfig struct {
	Config   yaml.Node                 `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// AuthorConfig holds the display fields for one user ID
type AuthorConfig struct {
	DisplayName string `yaml:"displayName"`
	Email       string `yaml:"email"`
}

type Config struct {
	Authors         map[string]AuthorConfig `yaml:"authors"         ignored:"true"`
	MetadataPlugin  string                  `yaml:"metadataPlugin"  envconfig:"DATABASE_METADATA_PLUGIN"`
	BlobPlugin      string                  `yaml:"blobPlugin"      envconfig:"DATABASE_BLOB_PLUGIN"`
	DataDir         string                  `yaml:"dataDir"                                                          split_words:"true"`
	BindAddr        string                  `yaml:"bindAddr"                                                         split_words:"true"`
	UserHeader      string                  `yaml:"userHeader"                                                       split_words:"true"`
	ShutdownTimeout string                  `yaml:"shutdownTimeout"                                                  split_words:"true"`
	TracingEndpoint string                  `yaml:"tracingEndpoint"                                                  split_words:"true"`
	Port            uint                    `yaml:"port"`
	// MetricsPort 0 serves /metrics on the API listener
	MetricsPort   uint `yaml:"metricsPort"   split_words:"true"`
	MaxIDAttempts int  `yaml:"maxIdAttempts" split_words:"true"`
	Tracing       bool `yaml:"tracing"`
	// TracingStdout writes spans to stdout instead of OTLP when Tracing is set
	TracingStdout bool `yaml:"tracingStdout" split_words:"true"`
}

// ListenAddress returns the API listen address
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// ShutdownTimeoutDuration parses ShutdownTimeout, falling back to the default
// when it is empty
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	value := c.ShutdownTimeout
	if value == "" {
		value = DefaultShutdownTimeout
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdownTimeout %q: %w", value, err)
	}
	if d <= 0 {
		return 0, errors.New("shutdownTimeout must be positive")
	}
	return d, nil
}

func defaultConfig() *Config {
	return &Config{
		BindAddr:        "0.0.0.0",
		Port:            8080,
		MetricsPort:     0,
		DataDir:         ".formvault",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		UserHeader:      "X-User-Id",
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxIDAttempts:   5,
	}
}

var globalConfig = defaultConfig()

// LoadConfig reads configFile over the defaults and then applies the
// environment. Without a config file, ~/.formvault/formvault.yaml and
// /etc/formvault/formvault.yaml are tried in that order.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".formvault", "formvault.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/formvault/formvault.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		var tempCfg tempConfig
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
		if !tempCfg.Config.IsZero() {
			// Overlay the config section onto the defaults
			if err := tempCfg.Config.Decode(globalConfig); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(buf, globalConfig); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}

		pluginConfig := make(map[string]map[string]map[string]any)
		if tempCfg.Blob != nil {
			pluginConfig["blob"] = tempCfg.Blob
		}
		if tempCfg.Metadata != nil {
			pluginConfig["metadata"] = tempCfg.Metadata
		}
		if tempCfg.Database != nil {
			if tempCfg.Database.Blob != nil {
				name, section := splitPluginSection("blob", tempCfg.Database.Blob)
				if name != "" {
					globalConfig.BlobPlugin = name
				}
				mergePluginSection(pluginConfig, "blob", section)
			}
			if tempCfg.Database.Metadata != nil {
				name, section := splitPluginSection("metadata", tempCfg.Database.Metadata)
				if name != "" {
					globalConfig.MetadataPlugin = name
				}
				mergePluginSection(pluginConfig, "metadata", section)
			}
		}
		if len(pluginConfig) > 0 {
			if err := plugin.ProcessConfig(pluginConfig); err != nil {
				return nil, fmt.Errorf(
					"error processing plugin config: %w",
					err,
				)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	if globalConfig.Port == 0 {
		return nil, errors.New("port must be set")
	}
	if globalConfig.MetricsPort != 0 &&
		globalConfig.MetricsPort == globalConfig.Port {
		return nil, fmt.Errorf(
			"metricsPort %d clashes with port",
			globalConfig.MetricsPort,
		)
	}
	if _, err := globalConfig.ShutdownTimeoutDuration(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

// splitPluginSection pulls the "plugin" key out of a database section and
// returns the per-plugin option maps that remain
func splitPluginSection(
	pluginType string,
	section map[string]any,
) (string, map[string]map[string]any) {
	var name string
	if pluginVal, exists := section["plugin"]; exists {
		if pluginName, ok := pluginVal.(string); ok {
			name = pluginName
		}
	}
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				pluginType,
				k,
				v,
			)
		}
	}
	return name, ret
}

func mergePluginSection(
	pluginConfig map[string]map[string]map[string]any,
	pluginType string,
	section map[string]map[string]any,
) {
	if pluginConfig[pluginType] == nil {
		pluginConfig[pluginType] = section
		return
	}
	maps.Copy(pluginConfig[pluginType], section)
}

func GetConfig() *Config {
	return globalConfig
}
