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

package locator

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

// testSdkPackage marks a project as a test project when referenced.
const testSdkPackage = "Microsoft.NET.Test.Sdk"

// msbuildProject is the subset of an MSBuild project file read without evaluating it.
type msbuildProject struct {
	XMLName        xml.Name        `xml:"Project"`
	PropertyGroups []propertyGroup `xml:"PropertyGroup"`
	ItemGroups     []itemGroup     `xml:"ItemGroup"`
}

type propertyGroup struct {
	TargetFramework    string `xml:"TargetFramework"`
	TargetFrameworks   string `xml:"TargetFrameworks"`
	RuntimeIdentifier  string `xml:"RuntimeIdentifier"`
	RuntimeIdentifiers string `xml:"RuntimeIdentifiers"`
	IsTestProject      string `xml:"IsTestProject"`
	Version            string `xml:"Version"`
	AssemblyName       string `xml:"AssemblyName"`
	PackageID          string `xml:"PackageId"`
}

type itemGroup struct {
	ProjectReferences []struct {
		Include string `xml:"Include,attr"`
	} `xml:"ProjectReference"`
	PackageReferences []struct {
		Include string `xml:"Include,attr"`
	} `xml:"PackageReference"`
}

// readProject parses a project file into an AnalysisUnit.
func readProject(path string) (*types.AnalysisUnit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p msbuildProject
	if err := xml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project file %q: %w", path, err)
	}

	u := &types.AnalysisUnit{
		Path: path,
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Kind: types.UnitKindProject,
	}
	// Later property groups override earlier ones, as in MSBuild evaluation.
	for _, pg := range p.PropertyGroups {
		if v := strings.TrimSpace(pg.PackageID); v != "" && !isMacro(v) {
			u.Name = v
		}
		if v := strings.TrimSpace(pg.Version); v != "" && !isMacro(v) {
			u.Version = v
		}
		if v := strings.TrimSpace(pg.TargetFramework); v != "" {
			u.TargetFrameworks = splitList(v)
		}
		if v := strings.TrimSpace(pg.TargetFrameworks); v != "" {
			u.TargetFrameworks = splitList(v)
		}
		if v := strings.TrimSpace(pg.RuntimeIdentifier); v != "" {
			u.Runtimes = splitList(v)
		}
		if v := strings.TrimSpace(pg.RuntimeIdentifiers); v != "" {
			u.Runtimes = splitList(v)
		}
		if strings.EqualFold(strings.TrimSpace(pg.IsTestProject), "true") {
			u.IsTestProject = true
		}
	}

	dir := filepath.Dir(path)
	seen := make(map[string]bool)
	for _, ig := range p.ItemGroups {
		for _, ref := range ig.ProjectReferences {
			inc := strings.TrimSpace(ref.Include)
			if inc == "" || isMacro(inc) {
				continue
			}
			abs := resolveInclude(dir, inc)
			if seen[abs] {
				continue
			}
			seen[abs] = true
			u.ProjectReferences = append(u.ProjectReferences, abs)
		}
		for _, ref := range ig.PackageReferences {
			if strings.EqualFold(strings.TrimSpace(ref.Include), testSdkPackage) {
				u.IsTestProject = true
			}
		}
	}
	return u, nil
}

// resolveInclude turns an MSBuild include (which uses backslashes on every platform) into an absolute path.
func resolveInclude(dir, include string) string {
	p := filepath.FromSlash(strings.ReplaceAll(include, `\`, "/"))
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ";") {
		if s = strings.TrimSpace(s); s != "" && !isMacro(s) {
			out = append(out, s)
		}
	}
	return out
}

func isMacro(s string) bool {
	return strings.Contains(s, "$(")
}
