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

// Package generator runs the SBOM pipeline: locate units, resolve their dependencies,
// aggregate the component graph, enrich components and assemble the CycloneDX document.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CycloneDX/cyclonedx-go"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/bom"
	"github.com/andreycha/cyclonedx-dotnet/pkg/enricher"
	"github.com/andreycha/cyclonedx-dotnet/pkg/graph"
	"github.com/andreycha/cyclonedx-dotnet/pkg/license"
	"github.com/andreycha/cyclonedx-dotnet/pkg/locator"
	"github.com/andreycha/cyclonedx-dotnet/pkg/nuget"
	"github.com/andreycha/cyclonedx-dotnet/pkg/resolver"
)

// ErrNoUnitsResolved is returned when units were found but none could be resolved.
var ErrNoUnitsResolved = errors.New("no unit could be resolved")

// Opts configures the Generator.
type Opts struct {
	// Path is the project, solution, packages.config or directory to analyze.
	Path  string
	Scope types.Scope

	Recursive                bool
	ExcludeDev               bool
	ExcludeTestProjects      bool
	IncludeProjectReferences bool

	// Restorer runs the package restore. Nil means `dotnet restore`.
	Restorer                   resolver.Restorer
	DisableRestore             bool
	BaseIntermediateOutputPath string
	Timeout                    time.Duration
	Parallelism                int
	// Backends replaces the default resolution backends.
	Backends map[types.UnitKind]resolver.Backend

	// Packages looks up package manifests. Nil disables manifest lookups.
	Packages *nuget.Repository
	// Licenses is the run-wide license cache; it is saved after enrichment.
	Licenses               *license.Cache
	RemoteLicenses         enricher.LicenseFetcher
	DisableHashComputation bool

	// BOM carries metadata overrides and document options. Default name and version
	// are inferred from the input when left empty.
	BOM bom.Opts
}

// Result is the outcome of a run.
type Result struct {
	BOM      *cyclonedx.BOM
	Graph    *graph.Graph
	Warnings []types.Warning
}

// Generator produces a BOM for one input path.
type Generator struct {
	o Opts
}

func New(o Opts) (*Generator, error) {
	if o.Path == "" {
		return nil, errors.New("no path")
	}
	if o.Backends == nil {
		restorer := o.Restorer
		if restorer == nil {
			restorer = &resolver.DotnetRestorer{}
		}
		o.Backends = map[types.UnitKind]resolver.Backend{
			types.UnitKindProject: &resolver.ProjectBackend{
				Restorer:                   restorer,
				DisableRestore:             o.DisableRestore,
				BaseIntermediateOutputPath: o.BaseIntermediateOutputPath,
			},
			types.UnitKindLegacy: &resolver.LegacyBackend{Repository: o.Packages},
		}
	}
	if o.Licenses == nil {
		o.Licenses = license.NewCache()
	}
	return &Generator{o: o}, nil
}

// Generate runs the pipeline. Locator failures and a run where every unit failed are
// returned as errors; per-unit failures become warnings on the result.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	units, err := locator.Locate(ctx, g.o.Path, locator.Opts{
		Recursive:                g.o.Recursive,
		IncludeProjectReferences: g.o.IncludeProjectReferences,
	})
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, &locator.NotFoundError{Path: g.o.Path, Reason: "no analyzable units"}
	}
	slog.InfoContext(ctx, "Units located", "path", g.o.Path, "units", len(units))

	r, err := resolver.New(resolver.Opts{
		Backends:    g.o.Backends,
		Scope:       g.o.Scope,
		Timeout:     g.o.Timeout,
		Parallelism: g.o.Parallelism,
	})
	if err != nil {
		return nil, err
	}
	results := r.Resolve(ctx, units)

	gr := graph.Aggregate(ctx, results, graph.Opts{
		Scope:                    g.o.Scope,
		ExcludeDev:               g.o.ExcludeDev,
		ExcludeTestProjects:      g.o.ExcludeTestProjects,
		IncludeProjectReferences: g.o.IncludeProjectReferences,
	})
	res := &Result{Graph: gr, Warnings: gr.Warnings}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == len(results) {
		return res, fmt.Errorf("%w: all %d units failed", ErrNoUnitsResolved, failed)
	}

	eo := enricher.Opts{
		Licenses:               g.o.Licenses,
		Remote:                 g.o.RemoteLicenses,
		DisableHashComputation: g.o.DisableHashComputation,
		Parallelism:            g.o.Parallelism,
	}
	if g.o.Packages != nil {
		eo.Packages = g.o.Packages
	}
	enricher.New(eo).Enrich(ctx, gr.SortedComponents())
	if err := g.o.Licenses.Save(); err != nil {
		slog.WarnContext(ctx, "Failed to save license cache", "error", err)
	}

	bo := g.o.BOM
	name, version := inferMetadata(g.o.Path, results)
	if bo.DefaultName == "" {
		bo.DefaultName = name
	}
	if bo.DefaultVersion == "" {
		bo.DefaultVersion = version
	}
	res.BOM, err = bom.Assemble(ctx, gr, bo)
	if err != nil {
		return res, err
	}
	return res, nil
}

// inferMetadata names the analyzed application after the input: a project's own name
// and version, or the solution, manifest directory or directory name.
func inferMetadata(path string, results []resolver.UnitResult) (string, string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Base(abs)
	ext := strings.ToLower(filepath.Ext(base))
	switch {
	case ext == ".csproj" || ext == ".fsproj" || ext == ".vbproj":
		for _, res := range results {
			if res.Unit.Path != abs {
				continue
			}
			version := res.Version
			if version == "" {
				version = res.Unit.Version
			}
			return res.Unit.Name, version
		}
		return strings.TrimSuffix(base, filepath.Ext(base)), ""
	case ext == ".sln":
		return strings.TrimSuffix(base, filepath.Ext(base)), ""
	case strings.EqualFold(base, "packages.config"):
		return filepath.Base(filepath.Dir(abs)), ""
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() {
		return base, ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base)), ""
}
