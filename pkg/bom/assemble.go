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

// Package bom assembles the aggregated component graph into a CycloneDX document.
package bom

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	cyclonedx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/graph"
)

const (
	DefaultVersion = "0.0.0"
	ToolName       = "cyclonedx-dotnet"
	toolGroup      = "CycloneDX"

	// UnresolvedLicense names the license of components whose license could not be determined.
	UnresolvedLicense = "Unresolved"
)

// Opts configures Assemble.
type Opts struct {
	// DefaultName and DefaultVersion are inferred from the analyzed input.
	DefaultName    string
	DefaultVersion string

	// SetName, SetVersion and SetType override the metadata component when non-empty.
	SetName    string
	SetVersion string
	SetType    cyclonedx.ComponentType

	// Template is imported metadata used as the base of the document metadata.
	Template *cyclonedx.Metadata

	NoSerialNumber bool
	ToolVersion    string
	// Now is the clock used for the metadata timestamp. Nil means time.Now.
	Now func() time.Time
}

// Assemble builds the CycloneDX document of g. Components and dependencies are emitted
// in key order so unchanged input yields identical output apart from serial number and timestamp.
func Assemble(ctx context.Context, g *graph.Graph, o Opts) (*cyclonedx.BOM, error) {
	if o.Now == nil {
		o.Now = time.Now
	}
	b := cyclonedx.NewBOM()
	if !o.NoSerialNumber {
		b.SerialNumber = "urn:uuid:" + uuid.New().String()
	}
	b.Metadata = metadata(o)
	rootRef := b.Metadata.Component.BOMRef

	refs := make(map[types.Key]string, len(g.Components))
	components := make([]cyclonedx.Component, 0, len(g.Components))
	for _, c := range g.SortedComponents() {
		cc := component(c)
		refs[c.Key()] = cc.BOMRef
		components = append(components, cc)
	}
	b.Components = &components

	deps := []cyclonedx.Dependency{dependency(rootRef, g.DependsOn(graph.Root), refs)}
	for _, c := range g.SortedComponents() {
		deps = append(deps, dependency(refs[c.Key()], g.DependsOn(c.Key()), refs))
	}
	b.Dependencies = &deps

	if err := Validate(b); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "BOM assembled", "components", len(components), "dependencies", len(deps), "serialNumber", b.SerialNumber)
	return b, nil
}

func dependency(ref string, on []types.Key, refs map[types.Key]string) cyclonedx.Dependency {
	d := cyclonedx.Dependency{Ref: ref}
	if len(on) > 0 {
		out := lo.Map(on, func(k types.Key, _ int) string {
			if r, ok := refs[k]; ok {
				return r
			}
			return k.String()
		})
		d.Dependencies = &out
	}
	return d
}

func metadata(o Opts) *cyclonedx.Metadata {
	md := &cyclonedx.Metadata{}
	if o.Template != nil {
		cp := *o.Template
		md = &cp
	}
	md.Timestamp = o.Now().UTC().Format(time.RFC3339)

	tool := cyclonedx.Component{Type: cyclonedx.ComponentTypeApplication, Group: toolGroup, Name: ToolName, Version: o.ToolVersion}
	tc := cyclonedx.ToolsChoice{}
	if md.Tools != nil {
		tc = *md.Tools
	}
	md.Tools = &tc
	tools := []cyclonedx.Component{}
	if md.Tools.Tools != nil {
		// The legacy tool list cannot be encoded next to tool components.
		for _, t := range *md.Tools.Tools {
			tools = append(tools, legacyTool(t))
		}
		md.Tools.Tools = nil
	}
	if md.Tools.Components != nil {
		tools = append(tools, *md.Tools.Components...)
	}
	tools = append(tools, tool)
	md.Tools.Components = &tools

	mc := cyclonedx.Component{}
	if md.Component != nil {
		mc = *md.Component
	}
	mc.Name = firstNonEmpty(o.SetName, mc.Name, o.DefaultName)
	mc.Version = firstNonEmpty(o.SetVersion, mc.Version, o.DefaultVersion, DefaultVersion)
	mc.Type = cyclonedx.ComponentType(firstNonEmpty(string(o.SetType), string(mc.Type), string(cyclonedx.ComponentTypeApplication)))
	if o.SetName != "" || o.SetVersion != "" || mc.BOMRef == "" {
		mc.BOMRef = mc.Name + "@" + mc.Version
	}
	md.Component = &mc
	return md
}

func legacyTool(t cyclonedx.Tool) cyclonedx.Component {
	return cyclonedx.Component{
		Type:               cyclonedx.ComponentTypeApplication,
		Group:              t.Vendor,
		Name:               t.Name,
		Version:            t.Version,
		Hashes:             t.Hashes,
		ExternalReferences: t.ExternalReferences,
	}
}

func component(c *types.Component) cyclonedx.Component {
	cc := cyclonedx.Component{
		BOMRef:      c.PURL,
		Type:        cyclonedx.ComponentType(c.Classification),
		Name:        c.Name,
		Version:     c.Version,
		Description: c.Description,
		Author:      c.Authors,
		PackageURL:  c.PURL,
	}
	if cc.BOMRef == "" {
		cc.BOMRef = c.Name + "@" + c.Version
	}
	if cc.Type == "" {
		cc.Type = cyclonedx.ComponentTypeLibrary
	}
	if c.IsDevelopmentDependency {
		cc.Scope = cyclonedx.ScopeExcluded
	}
	if len(c.Hashes) > 0 {
		hashes := lo.Map(c.Hashes, func(h types.Hash, _ int) cyclonedx.Hash {
			return cyclonedx.Hash{Algorithm: cyclonedx.HashAlgorithm(h.Algorithm), Value: h.Value}
		})
		cc.Hashes = &hashes
	}
	if c.Kind != types.KindProject {
		licenses := cyclonedx.Licenses{licenseChoice(c.License)}
		cc.Licenses = &licenses
	}
	var refs []cyclonedx.ExternalReference
	if c.ProjectURL != "" {
		refs = append(refs, cyclonedx.ExternalReference{Type: cyclonedx.ERTypeWebsite, URL: c.ProjectURL})
	}
	if c.VCSURL != "" {
		refs = append(refs, cyclonedx.ExternalReference{Type: cyclonedx.ERTypeVCS, URL: c.VCSURL})
	}
	if len(refs) > 0 {
		cc.ExternalReferences = &refs
	}
	return cc
}

// licenseChoice emits single identifiers as license IDs and compound expressions as expressions.
func licenseChoice(l types.License) cyclonedx.LicenseChoice {
	switch {
	case !l.Resolved():
		return cyclonedx.LicenseChoice{License: &cyclonedx.License{Name: UnresolvedLicense, URL: l.URL}}
	case strings.ContainsAny(l.Expression, " ()"):
		return cyclonedx.LicenseChoice{Expression: l.Expression}
	default:
		return cyclonedx.LicenseChoice{License: &cyclonedx.License{ID: l.Expression, URL: l.URL}}
	}
}

// Validate checks that component refs are unique and every dependency endpoint
// references the metadata component or a listed component.
func Validate(b *cyclonedx.BOM) error {
	if b.Metadata != nil && b.Metadata.Tools != nil {
		t := b.Metadata.Tools
		if t.Tools != nil && (t.Components != nil || t.Services != nil) {
			return &SerializationError{Reason: "metadata mixes legacy tools with tool components"}
		}
	}
	known := map[string]bool{}
	if b.Metadata != nil && b.Metadata.Component != nil {
		known[b.Metadata.Component.BOMRef] = true
	}
	if b.Components != nil {
		for _, c := range *b.Components {
			if c.BOMRef == "" {
				return &SerializationError{Reason: fmt.Sprintf("component %s@%s has no bom-ref", c.Name, c.Version)}
			}
			if known[c.BOMRef] {
				return &SerializationError{Reason: fmt.Sprintf("duplicate bom-ref %q", c.BOMRef)}
			}
			known[c.BOMRef] = true
		}
	}
	if b.Dependencies == nil {
		return nil
	}
	for _, d := range *b.Dependencies {
		if !known[d.Ref] {
			return &SerializationError{Reason: fmt.Sprintf("dependency entry for unknown ref %q", d.Ref)}
		}
		if d.Dependencies == nil {
			continue
		}
		if slices.Contains(*d.Dependencies, d.Ref) {
			return &SerializationError{Reason: fmt.Sprintf("self-dependency on %q", d.Ref)}
		}
		for _, to := range *d.Dependencies {
			if !known[to] {
				return &SerializationError{Reason: fmt.Sprintf("dangling edge %q -> %q", d.Ref, to)}
			}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
