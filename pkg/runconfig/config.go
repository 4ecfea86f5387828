// Copyright 2025 venslabs
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

// Package runconfig loads option defaults from a YAML run configuration file.
package runconfig

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v3"
)

// Config maps long flag names to values. Example:
//
//	framework: net8.0
//	exclude-dev: true
//	json: true
//	output: build/sbom
//	dotnet-command-timeout: 600000
//
// Values only apply to flags that were neither set on the command line nor
// provided through their environment variable.
type Config struct {
	Path    string
	Options map[string]string
}

// Load parses the configuration file at path. Only scalar values are accepted.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	c := &Config{Path: path, Options: make(map[string]string, len(raw))}
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
			continue
		case string, bool, int, int64, uint64, float64:
			c.Options[k] = fmt.Sprint(v)
		case []any:
			parts := make([]string, 0, len(v))
			for _, p := range v {
				parts = append(parts, fmt.Sprint(p))
			}
			c.Options[k] = strings.Join(parts, ",")
		default:
			return nil, fmt.Errorf("option %q must be a scalar or a list, got %T", k, v)
		}
	}
	return c, nil
}

// Apply sets every configured option on flags unless the flag was changed on the command
// line or its environment variable in envNames is set. Unknown options are an error.
func (c *Config) Apply(flags *pflag.FlagSet, envNames map[string]string) error {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f := flags.Lookup(k)
		if f == nil {
			return fmt.Errorf("%s: unknown option %q", c.Path, k)
		}
		if f.Changed {
			continue
		}
		if env, ok := envNames[k]; ok {
			if _, set := os.LookupEnv(env); set {
				continue
			}
		}
		if err := flags.Set(k, c.Options[k]); err != nil {
			return fmt.Errorf("%s: invalid value for %q: %w", c.Path, k, err)
		}
	}
	return nil
}
