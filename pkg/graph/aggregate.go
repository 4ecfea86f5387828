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

package graph

import (
	"context"
	"log/slog"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/resolver"
)

// defaultProjectVersion is the version MSBuild assigns to projects without <Version>.
const defaultProjectVersion = "1.0.0"

// Opts configures Aggregate.
type Opts struct {
	Scope                    types.Scope
	ExcludeDev               bool
	ExcludeTestProjects      bool
	IncludeProjectReferences bool
}

type edge struct{ from, to types.Key }

type aggregator struct {
	o Opts
	g *Graph
	// devEdges tracks owner→direct edges; true while every observation was development-only.
	devEdges map[edge]bool
}

// Aggregate merges unit results into a Graph. Failed units become warnings.
// It never fails; empty input yields an empty graph.
func Aggregate(ctx context.Context, results []resolver.UnitResult, o Opts) *Graph {
	a := &aggregator{o: o, g: newGraph(), devEdges: map[edge]bool{}}

	var ok []resolver.UnitResult
	for _, res := range results {
		if res.Err != nil {
			a.g.Warnings = append(a.g.Warnings, types.Warning{
				Stage:     "resolve",
				Unit:      res.Unit.Name,
				Framework: o.Scope.Framework,
				Runtime:   o.Scope.Runtime,
				Message:   res.Err.Error(),
			})
			continue
		}
		if o.ExcludeTestProjects && res.Unit.IsTestProject {
			slog.DebugContext(ctx, "Excluding test project", "unit", res.Unit.Name)
			continue
		}
		ok = append(ok, res)
	}

	referenced := map[string]bool{}
	for _, res := range ok {
		for _, p := range res.Unit.ProjectReferences {
			referenced[p] = true
		}
	}
	for _, res := range ok {
		a.g.Units = append(a.g.Units, res.Unit)
		owner := Root
		if o.IncludeProjectReferences && referenced[res.Unit.Path] {
			owner = a.unitComponent(res)
		}
		for _, t := range res.Targets {
			if !o.Scope.Matches(t.Framework, t.Runtime) && !(res.Unit.Kind == types.UnitKindLegacy && t.Runtime == "") {
				continue
			}
			a.addTarget(ctx, owner, t)
		}
	}

	if o.ExcludeDev {
		a.pruneDevelopmentOnly(ctx)
	}
	a.dropDanglingEdges(ctx)
	slog.InfoContext(ctx, "Dependency graph aggregated", "units", len(a.g.Units), "components", len(a.g.Components), "warnings", len(a.g.Warnings))
	return a.g
}

func (a *aggregator) unitComponent(res resolver.UnitResult) types.Key {
	version := res.Version
	if version == "" {
		version = res.Unit.Version
	}
	if version == "" {
		version = defaultProjectVersion
	}
	ref := types.PackageReference{Name: res.Unit.Name, Version: version, Kind: types.KindProject, Scope: types.ScopeDirect}
	a.upsert(ref)
	return ref.Key()
}

func (a *aggregator) addTarget(ctx context.Context, owner types.Key, t types.ResolvedTarget) {
	index := make(map[string]types.PackageReference, len(t.Packages))
	for _, p := range t.Packages {
		index[strings.ToLower(p.Name)] = p
	}
	resolve := func(from types.PackageReference) []types.PackageReference {
		var out []types.PackageReference
		for id := range from.Dependencies {
			dep, ok := index[strings.ToLower(id)]
			if !ok {
				slog.DebugContext(ctx, "Dependency missing from target", "package", from.Name, "dependency", id, "framework", t.Framework)
				continue
			}
			out = append(out, dep)
		}
		return out
	}

	for _, p := range t.Packages {
		if p.Kind == types.KindProject && !a.o.IncludeProjectReferences {
			continue
		}
		a.upsert(p)
		for _, dep := range resolve(p) {
			if dep.Kind == types.KindProject && !a.o.IncludeProjectReferences {
				continue
			}
			a.g.addEdge(p.Key(), dep.Key())
		}
	}

	for _, p := range t.Packages {
		if p.Scope != types.ScopeDirect {
			continue
		}
		if p.Kind == types.KindProject && !a.o.IncludeProjectReferences {
			// Resolve through the project reference: its dependencies belong to the owner.
			a.attributeProject(owner, p, resolve, map[types.Key]bool{})
			continue
		}
		a.addOwnerEdge(owner, p.Key(), p.IsDevelopmentDependency)
	}
}

func (a *aggregator) attributeProject(owner types.Key, project types.PackageReference, resolve func(types.PackageReference) []types.PackageReference, visited map[types.Key]bool) {
	if visited[project.Key()] {
		return
	}
	visited[project.Key()] = true
	for _, dep := range resolve(project) {
		if dep.Kind == types.KindProject {
			a.attributeProject(owner, dep, resolve, visited)
			continue
		}
		a.addOwnerEdge(owner, dep.Key(), false)
	}
}

func (a *aggregator) addOwnerEdge(owner, to types.Key, dev bool) {
	if owner == to {
		return
	}
	e := edge{owner, to}
	if prev, seen := a.devEdges[e]; seen {
		a.devEdges[e] = prev && dev
	} else {
		a.devEdges[e] = dev
	}
	a.g.addEdge(owner, to)
}

// upsert merges a reference into its canonical component. Non-development and direct
// classifications win over development and transitive ones.
func (a *aggregator) upsert(p types.PackageReference) {
	k := p.Key()
	c, ok := a.g.Components[k]
	if !ok {
		c = &types.Component{
			Name:                    p.Name,
			Version:                 p.Version,
			Kind:                    p.Kind,
			Classification:          types.ClassificationLibrary,
			IsDevelopmentDependency: p.IsDevelopmentDependency,
		}
		if c.Kind == "" {
			c.Kind = types.KindPackage
		}
		a.g.Components[k] = c
	} else {
		c.IsDevelopmentDependency = c.IsDevelopmentDependency && p.IsDevelopmentDependency
	}
	c.Direct = c.Direct || p.Scope == types.ScopeDirect
	if c.Sha512 == "" {
		c.Sha512 = p.Sha512
	}
	if c.PackagePath == "" {
		c.PackagePath = p.PackagePath
	}
}

// pruneDevelopmentOnly removes development-only owner edges and every component no longer
// reachable from the root.
func (a *aggregator) pruneDevelopmentOnly(ctx context.Context) {
	for e, dev := range a.devEdges {
		if !dev {
			continue
		}
		if set, ok := a.g.Edges[e.from]; ok {
			delete(set, e.to)
		}
	}
	reachable := a.g.Reachable(Root)
	removed := 0
	for k := range a.g.Components {
		if !reachable[k] {
			delete(a.g.Components, k)
			delete(a.g.Edges, k)
			removed++
		}
	}
	if removed > 0 {
		slog.InfoContext(ctx, "Development dependencies excluded", "removed", removed)
	}
}

func (a *aggregator) dropDanglingEdges(ctx context.Context) {
	for from, set := range a.g.Edges {
		if _, ok := a.g.Components[from]; !ok && from != Root {
			delete(a.g.Edges, from)
			continue
		}
		for to := range set {
			if _, ok := a.g.Components[to]; !ok {
				slog.DebugContext(ctx, "Dropping edge to unknown component", "from", from.String(), "to", to.String())
				delete(set, to)
			}
		}
		if len(set) == 0 {
			delete(a.g.Edges, from)
		}
	}
}
