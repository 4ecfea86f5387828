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

// Package nuget reads NuGet package metadata from local package folders and
// from remote NuGet v3 feeds.
package nuget

import (
	"cmp"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Nuspec is the subset of a .nuspec manifest used for enrichment.
type Nuspec struct {
	Metadata NuspecMetadata `xml:"metadata"`
}

type NuspecMetadata struct {
	ID                    string             `xml:"id"`
	Version               string             `xml:"version"`
	Authors               string             `xml:"authors"`
	Description           string             `xml:"description"`
	DevelopmentDependency string             `xml:"developmentDependency"`
	License               NuspecLicense      `xml:"license"`
	LicenseURL            string             `xml:"licenseUrl"`
	ProjectURL            string             `xml:"projectUrl"`
	Repository            NuspecRepository   `xml:"repository"`
	Dependencies          NuspecDependencies `xml:"dependencies"`
}

type NuspecLicense struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type NuspecRepository struct {
	Type   string `xml:"type,attr"`
	URL    string `xml:"url,attr"`
	Commit string `xml:"commit,attr"`
}

type NuspecDependencies struct {
	Groups []NuspecDependencyGroup `xml:"group"`
	// Flat holds dependencies declared without a framework group (old nuspec layout).
	Flat []NuspecDependency `xml:"dependency"`
}

type NuspecDependencyGroup struct {
	TargetFramework string             `xml:"targetFramework,attr"`
	Dependencies    []NuspecDependency `xml:"dependency"`
}

type NuspecDependency struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

// ParseNuspec decodes a nuspec document.
func ParseNuspec(r io.Reader) (*Nuspec, error) {
	var n Nuspec
	if err := xml.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("invalid nuspec: %w", err)
	}
	n.Metadata.License.Value = strings.TrimSpace(n.Metadata.License.Value)
	return &n, nil
}

// ReadNuspec parses the nuspec file at path.
func ReadNuspec(path string) (*Nuspec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return ParseNuspec(f)
}

// LicenseExpression returns the SPDX expression embedded in the package, if any.
func (n *Nuspec) LicenseExpression() string {
	if n == nil {
		return ""
	}
	if strings.EqualFold(n.Metadata.License.Type, "expression") {
		return n.Metadata.License.Value
	}
	return ""
}

// IsDevelopmentDependency reports the <developmentDependency> flag.
func (n *Nuspec) IsDevelopmentDependency() bool {
	return n != nil && strings.EqualFold(strings.TrimSpace(n.Metadata.DevelopmentDependency), "true")
}

// DependenciesFor returns the dependency ids declared for a framework. The group for
// the framework itself wins, then the nearest compatible group (the highest lower version
// of the same family, then the highest supported .NET Standard). Without one the flat
// list and then the group with an empty framework are used.
func (n *Nuspec) DependenciesFor(framework string) []NuspecDependency {
	if n == nil {
		return nil
	}
	deps := n.Metadata.Dependencies
	if framework != "" {
		want := groupFramework(framework)
		for _, g := range deps.Groups {
			if g.TargetFramework != "" && groupFramework(g.TargetFramework) == want {
				return g.Dependencies
			}
		}
		if g, ok := nearestGroup(deps.Groups, framework); ok {
			return g.Dependencies
		}
	}
	if len(deps.Flat) > 0 {
		return deps.Flat
	}
	for _, g := range deps.Groups {
		if g.TargetFramework == "" {
			return g.Dependencies
		}
	}
	return nil
}

func nearestGroup(groups []NuspecDependencyGroup, framework string) (NuspecDependencyGroup, bool) {
	target, ok := parseMoniker(framework)
	if !ok {
		return NuspecDependencyGroup{}, false
	}
	if g, ok := highestGroup(groups, target.family, target.version); ok {
		return g, true
	}
	if std := target.netStandard(); std != nil {
		return highestGroup(groups, familyNetStandard, std)
	}
	return NuspecDependencyGroup{}, false
}

// highestGroup returns the group of family with the highest version not above limit.
func highestGroup(groups []NuspecDependencyGroup, family string, limit []int) (NuspecDependencyGroup, bool) {
	var (
		best    NuspecDependencyGroup
		bestVer []int
		found   bool
	)
	for _, g := range groups {
		m, ok := parseMoniker(g.TargetFramework)
		if !ok || m.family != family || compareVersions(m.version, limit) > 0 {
			continue
		}
		if !found || compareVersions(m.version, bestVer) > 0 {
			best, bestVer, found = g, m.version, true
		}
	}
	return best, found
}

const (
	familyNetFramework = "netframework"
	familyNetCore      = "netcore"
	familyNetStandard  = "netstandard"
)

type moniker struct {
	family  string
	version []int
}

func parseMoniker(s string) (moniker, bool) {
	s = groupFramework(s)
	if i := strings.IndexByte(s, '-'); i >= 0 {
		// drop platform suffixes such as net8.0-windows
		s = s[:i]
	}
	switch {
	case strings.HasPrefix(s, "netstandard"):
		v, ok := dottedVersion(strings.TrimPrefix(s, "netstandard"))
		return moniker{familyNetStandard, v}, ok
	case strings.HasPrefix(s, "netcoreapp"):
		v, ok := dottedVersion(strings.TrimPrefix(s, "netcoreapp"))
		return moniker{familyNetCore, v}, ok
	case strings.HasPrefix(s, "net"):
		rest := strings.TrimPrefix(s, "net")
		if strings.Contains(rest, ".") {
			v, ok := dottedVersion(rest)
			return moniker{familyNetCore, v}, ok
		}
		if rest == "" {
			return moniker{}, false
		}
		v := make([]int, 0, len(rest))
		for _, r := range rest {
			if r < '0' || r > '9' {
				return moniker{}, false
			}
			v = append(v, int(r-'0'))
		}
		return moniker{familyNetFramework, v}, true
	}
	return moniker{}, false
}

// netStandard returns the highest .NET Standard version the framework implements.
func (m moniker) netStandard() []int {
	switch m.family {
	case familyNetStandard:
		return m.version
	case familyNetFramework:
		for _, s := range []struct{ fx, std []int }{
			{[]int{4, 6, 1}, []int{2, 0}},
			{[]int{4, 6}, []int{1, 3}},
			{[]int{4, 5, 1}, []int{1, 2}},
			{[]int{4, 5}, []int{1, 1}},
		} {
			if compareVersions(m.version, s.fx) >= 0 {
				return s.std
			}
		}
	case familyNetCore:
		for _, s := range []struct{ core, std []int }{
			{[]int{3, 0}, []int{2, 1}},
			{[]int{2, 0}, []int{2, 0}},
			{[]int{1, 0}, []int{1, 6}},
		} {
			if compareVersions(m.version, s.core) >= 0 {
				return s.std
			}
		}
	}
	return nil
}

func dottedVersion(s string) ([]int, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	v := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		v = append(v, n)
	}
	return v, true
}

// compareVersions compares component-wise, treating missing components as zero.
func compareVersions(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return cmp.Compare(x, y)
		}
	}
	return 0
}

// groupFramework normalizes nuspec group monikers (".NETFramework4.5", "net45", ".NETStandard2.0")
// to short folder names.
func groupFramework(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, ".netframework"):
		return "net" + strings.ReplaceAll(strings.TrimPrefix(s, ".netframework"), ".", "")
	case strings.HasPrefix(s, ".netstandard"):
		return "netstandard" + strings.TrimPrefix(s, ".netstandard")
	case strings.HasPrefix(s, ".netcoreapp"):
		v := strings.TrimPrefix(s, ".netcoreapp")
		if major, _, _ := strings.Cut(v, "."); len(major) > 1 || major >= "5" {
			return "net" + v
		}
		return "netcoreapp" + v
	}
	return s
}
