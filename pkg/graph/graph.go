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

// Package graph merges per-unit resolution results into one deduplicated component graph.
package graph

import (
	"sort"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/samber/lo"
)

// Root is the key of the analyzed application itself. Edges from Root are the
// top-level dependencies; Root is never a component.
var Root = types.Key{}

// Graph is the aggregated component set and dependency relation.
type Graph struct {
	Components map[types.Key]*types.Component
	// Edges maps a dependent to the set of its dependencies.
	Edges map[types.Key]map[types.Key]struct{}

	// Units lists the units that contributed to the graph.
	Units    []*types.AnalysisUnit
	Warnings []types.Warning
}

func newGraph() *Graph {
	return &Graph{
		Components: map[types.Key]*types.Component{},
		Edges:      map[types.Key]map[types.Key]struct{}{},
	}
}

func (g *Graph) addEdge(from, to types.Key) {
	if from == to {
		return
	}
	set, ok := g.Edges[from]
	if !ok {
		set = map[types.Key]struct{}{}
		g.Edges[from] = set
	}
	set[to] = struct{}{}
}

// SortedComponents returns the components ordered by identity key.
func (g *Graph) SortedComponents() []*types.Component {
	keys := SortKeys(lo.Keys(g.Components))
	return lo.Map(keys, func(k types.Key, _ int) *types.Component { return g.Components[k] })
}

// DependsOn returns the sorted dependencies of k.
func (g *Graph) DependsOn(k types.Key) []types.Key {
	return SortKeys(lo.Keys(g.Edges[k]))
}

// Dependents returns the sorted keys that have outgoing edges, Root excluded.
func (g *Graph) Dependents() []types.Key {
	keys := lo.Filter(lo.Keys(g.Edges), func(k types.Key, _ int) bool { return k != Root })
	return SortKeys(keys)
}

// Reachable returns every key reachable from the given start keys. The visited set
// makes traversal terminate on cyclic package graphs.
func (g *Graph) Reachable(start ...types.Key) map[types.Key]bool {
	seen := map[types.Key]bool{}
	stack := append([]types.Key{}, start...)
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[k] {
			continue
		}
		seen[k] = true
		for to := range g.Edges[k] {
			if !seen[to] {
				stack = append(stack, to)
			}
		}
	}
	return seen
}

func SortKeys(keys []types.Key) []types.Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
