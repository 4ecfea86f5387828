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

package bom

import (
	"fmt"
	"io"
	"slices"
	"strings"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"
)

// DefaultSpecVersion is the CycloneDX schema version written by Encode.
const DefaultSpecVersion = cyclonedx.SpecVersion1_6

// Format returns the encoding selected by the json flag.
func Format(json bool) cyclonedx.BOMFileFormat {
	if json {
		return cyclonedx.BOMFileFormatJSON
	}
	return cyclonedx.BOMFileFormatXML
}

// DefaultFilename returns bom.json or bom.xml.
func DefaultFilename(format cyclonedx.BOMFileFormat) string {
	if format == cyclonedx.BOMFileFormatJSON {
		return "bom.json"
	}
	return "bom.xml"
}

// Encode writes b in the given format, pretty-printed.
func Encode(w io.Writer, b *cyclonedx.BOM, format cyclonedx.BOMFileFormat) error {
	if err := Validate(b); err != nil {
		return err
	}
	enc := cyclonedx.NewBOMEncoder(w, format)
	enc.SetPretty(true)
	if err := enc.EncodeVersion(b, DefaultSpecVersion); err != nil {
		return fmt.Errorf("failed to encode BOM: %w", err)
	}
	return nil
}

var componentTypes = []cyclonedx.ComponentType{
	cyclonedx.ComponentTypeApplication,
	cyclonedx.ComponentTypeContainer,
	cyclonedx.ComponentTypeDevice,
	cyclonedx.ComponentTypeFile,
	cyclonedx.ComponentTypeFirmware,
	cyclonedx.ComponentTypeFramework,
	cyclonedx.ComponentTypeLibrary,
	cyclonedx.ComponentTypeOS,
}

// ComponentTypeNames lists the accepted metadata component types for help text.
func ComponentTypeNames() []string {
	out := make([]string, 0, len(componentTypes))
	for _, t := range componentTypes {
		out = append(out, string(t))
	}
	return out
}

// ParseComponentType accepts a classification name case-insensitively. Empty yields empty.
func ParseComponentType(s string) (cyclonedx.ComponentType, error) {
	if s == "" {
		return "", nil
	}
	t := cyclonedx.ComponentType(strings.ToLower(strings.TrimSpace(s)))
	if t == "operatingsystem" || t == "operating-system" {
		t = cyclonedx.ComponentTypeOS
	}
	if !slices.Contains(componentTypes, t) {
		return "", fmt.Errorf("unknown component type %q, expected one of %s", s, strings.Join(ComponentTypeNames(), ", "))
	}
	return t, nil
}
