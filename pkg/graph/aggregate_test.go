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
	"errors"
	"testing"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/resolver"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkg(name, version string, direct bool, deps ...string) types.PackageReference {
	p := types.PackageReference{Name: name, Version: version, Scope: types.ScopeTransitive, Kind: types.KindPackage}
	if direct {
		p.Scope = types.ScopeDirect
	}
	if len(deps) > 0 {
		p.Dependencies = map[string]string{}
		for _, d := range deps {
			p.Dependencies[d] = "0.0.0"
		}
	}
	return p
}

func dev(p types.PackageReference) types.PackageReference {
	p.IsDevelopmentDependency = true
	return p
}

func unitResult(name string, targets ...types.ResolvedTarget) resolver.UnitResult {
	return resolver.UnitResult{
		Unit:       &types.AnalysisUnit{Name: name, Path: "/src/" + name + "/" + name + ".csproj", Kind: types.UnitKindProject},
		Resolution: resolver.Resolution{Targets: targets},
	}
}

func keys(g *Graph) []string {
	var out []string
	for _, c := range g.SortedComponents() {
		out = append(out, c.Key().String())
	}
	return out
}

func strs(ks []types.Key) []string {
	out := []string{}
	for _, k := range ks {
		out = append(out, k.String())
	}
	return out
}

func assertConsistent(t *testing.T, g *Graph) {
	t.Helper()
	for from, set := range g.Edges {
		if from != Root {
			assert.Contains(t, g.Components, from)
		}
		for to := range set {
			assert.Contains(t, g.Components, to)
			assert.NotEqual(t, from, to)
		}
	}
}

func TestAggregateFrameworkUnion(t *testing.T) {
	results := []resolver.UnitResult{unitResult("App",
		types.ResolvedTarget{Framework: "net6.0", Packages: []types.PackageReference{pkg("X", "1.0.0", true), pkg("Y", "1.0.0", true)}},
		types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("X", "1.0.0", true), pkg("Z", "1.0.0", true)}},
	)}

	t.Run("no_filter", func(t *testing.T) {
		g := Aggregate(context.Background(), results, Opts{})
		assert.Equal(t, []string{"x@1.0.0", "y@1.0.0", "z@1.0.0"}, keys(g))
		assert.Equal(t, []string{"x@1.0.0", "y@1.0.0", "z@1.0.0"}, strs(g.DependsOn(Root)))
		assertConsistent(t, g)
	})
	t.Run("framework_filter", func(t *testing.T) {
		g := Aggregate(context.Background(), results, Opts{Scope: types.Scope{Framework: "net6.0"}})
		assert.Equal(t, []string{"x@1.0.0", "y@1.0.0"}, keys(g))
		assertConsistent(t, g)
	})
}

func TestAggregateDeduplicatesAcrossUnits(t *testing.T) {
	results := []resolver.UnitResult{
		unitResult("A", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("Newtonsoft.Json", "13.0.3", true)}}),
		unitResult("B", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("newtonsoft.json", "13.0.3", false), pkg("Lib", "1.0.0", true, "newtonsoft.json")}}),
	}
	g := Aggregate(context.Background(), results, Opts{})
	require.Len(t, g.Components, 2)
	c := g.Components[types.NewKey("Newtonsoft.Json", "13.0.3")]
	require.NotNil(t, c)
	assert.Equal(t, "Newtonsoft.Json", c.Name)
	assert.True(t, c.Direct)
	assert.Equal(t, []string{"newtonsoft.json@13.0.3"}, strs(g.DependsOn(types.NewKey("Lib", "1.0.0"))))
}

func TestAggregateExcludeDev(t *testing.T) {
	target := types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{
		dev(pkg("Analyzers", "1.0.0", true, "Analyzers.Core", "Shared")),
		pkg("Analyzers.Core", "1.0.0", false),
		pkg("Shared", "1.0.0", false),
		pkg("Y", "1.0.0", true, "Y.Core", "Shared"),
		pkg("Y.Core", "1.0.0", false),
	}}
	results := []resolver.UnitResult{unitResult("App", target)}

	all := Aggregate(context.Background(), results, Opts{})
	assert.Len(t, all.Components, 5)
	assert.True(t, all.Components[types.NewKey("Analyzers", "1.0.0")].IsDevelopmentDependency)

	g := Aggregate(context.Background(), results, Opts{ExcludeDev: true})
	assert.Equal(t, []string{"shared@1.0.0", "y@1.0.0", "y.core@1.0.0"}, keys(g))
	assertConsistent(t, g)
}

func TestAggregateDevTieBreak(t *testing.T) {
	results := []resolver.UnitResult{unitResult("App",
		types.ResolvedTarget{Framework: "net6.0", Packages: []types.PackageReference{dev(pkg("X", "1.0.0", true))}},
		types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("X", "1.0.0", true)}},
	)}
	g := Aggregate(context.Background(), results, Opts{ExcludeDev: true})
	require.Len(t, g.Components, 1)
	c := g.Components[types.NewKey("X", "1.0.0")]
	assert.False(t, c.IsDevelopmentDependency)
	assert.True(t, c.Direct)
}

func TestAggregateCycles(t *testing.T) {
	results := []resolver.UnitResult{unitResult("App", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{
		pkg("A", "1.0.0", true, "B", "A"),
		pkg("B", "1.0.0", false, "A"),
		dev(pkg("D", "1.0.0", true, "E")),
		pkg("E", "1.0.0", false, "D"),
	}})}
	g := Aggregate(context.Background(), results, Opts{ExcludeDev: true})
	assert.Equal(t, []string{"a@1.0.0", "b@1.0.0"}, keys(g))
	assert.Equal(t, []string{"b@1.0.0"}, strs(g.DependsOn(types.NewKey("A", "1.0.0"))))
	assert.Equal(t, []string{"a@1.0.0"}, strs(g.DependsOn(types.NewKey("B", "1.0.0"))))
	assertConsistent(t, g)
}

func TestAggregateExcludeTestProjects(t *testing.T) {
	app := unitResult("App", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("X", "1.0.0", true)}})
	tests := unitResult("App.Tests", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("X", "1.0.0", true), pkg("xunit", "2.6.0", true)}})
	tests.Unit.IsTestProject = true

	g := Aggregate(context.Background(), []resolver.UnitResult{app, tests}, Opts{})
	assert.Len(t, g.Components, 2)

	g = Aggregate(context.Background(), []resolver.UnitResult{app, tests}, Opts{ExcludeTestProjects: true})
	assert.Equal(t, []string{"x@1.0.0"}, keys(g))
	assert.Len(t, g.Units, 1)
}

func TestAggregateProjectReferences(t *testing.T) {
	lib := types.PackageReference{Name: "Lib", Version: "1.0.0", Kind: types.KindProject, Scope: types.ScopeDirect,
		Dependencies: map[string]string{"Core": "1.0.0", "Serilog": "3.0.0"}}
	core := types.PackageReference{Name: "Core", Version: "1.0.0", Kind: types.KindProject, Scope: types.ScopeTransitive,
		Dependencies: map[string]string{"Polly": "8.0.0"}}
	appTarget := types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{
		lib, core, pkg("Serilog", "3.0.0", false), pkg("Polly", "8.0.0", false), pkg("Dapper", "2.0.0", true),
	}}

	app := unitResult("App", appTarget)
	app.Unit.ProjectReferences = []string{"/src/Lib/Lib.csproj"}
	libUnit := unitResult("Lib", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{
		{Name: "Core", Version: "1.0.0", Kind: types.KindProject, Scope: types.ScopeDirect, Dependencies: map[string]string{"Polly": "8.0.0"}},
		pkg("Serilog", "3.0.0", true), pkg("Polly", "8.0.0", false),
	}})
	libUnit.Version = "1.0.0"

	t.Run("transparent", func(t *testing.T) {
		g := Aggregate(context.Background(), []resolver.UnitResult{app}, Opts{})
		assert.Equal(t, []string{"dapper@2.0.0", "polly@8.0.0", "serilog@3.0.0"}, keys(g))
		if diff := cmp.Diff([]string{"dapper@2.0.0", "polly@8.0.0", "serilog@3.0.0"}, strs(g.DependsOn(Root))); diff != "" {
			t.Errorf("root dependencies mismatch (-want +got):\n%s", diff)
		}
		assertConsistent(t, g)
	})

	t.Run("materialized", func(t *testing.T) {
		g := Aggregate(context.Background(), []resolver.UnitResult{app, libUnit}, Opts{IncludeProjectReferences: true})
		assert.Equal(t, []string{"core@1.0.0", "dapper@2.0.0", "lib@1.0.0", "polly@8.0.0", "serilog@3.0.0"}, keys(g))
		assert.Equal(t, types.KindProject, g.Components[types.NewKey("Lib", "1.0.0")].Kind)
		assert.Equal(t, []string{"dapper@2.0.0", "lib@1.0.0"}, strs(g.DependsOn(Root)))
		assert.Equal(t, []string{"core@1.0.0", "serilog@3.0.0"}, strs(g.DependsOn(types.NewKey("Lib", "1.0.0"))))
		assert.Equal(t, []string{"polly@8.0.0"}, strs(g.DependsOn(types.NewKey("Core", "1.0.0"))))
		assertConsistent(t, g)
	})
}

func TestAggregateFailuresBecomeWarnings(t *testing.T) {
	failed := resolver.UnitResult{
		Unit: &types.AnalysisUnit{Name: "Broken"},
		Err:  &resolver.ResolutionError{Unit: "Broken", Err: errors.New("restore timed out")},
	}
	ok := unitResult("App", types.ResolvedTarget{Framework: "net8.0", Packages: []types.PackageReference{pkg("X", "1.0.0", true)}})
	g := Aggregate(context.Background(), []resolver.UnitResult{failed, ok}, Opts{Scope: types.Scope{Framework: "net8.0"}})
	require.Len(t, g.Warnings, 1)
	assert.Equal(t, "Broken", g.Warnings[0].Unit)
	assert.Equal(t, "net8.0", g.Warnings[0].Framework)
	assert.Contains(t, g.Warnings[0].Message, "restore timed out")
	assert.Equal(t, []string{"x@1.0.0"}, keys(g))
}

func TestAggregateEmpty(t *testing.T) {
	g := Aggregate(context.Background(), nil, Opts{ExcludeDev: true})
	assert.Empty(t, g.Components)
	assert.Empty(t, g.Edges)
}
