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

package resolver

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/nuget"
)

type packagesConfig struct {
	Packages []struct {
		ID                    string `xml:"id,attr"`
		Version               string `xml:"version,attr"`
		TargetFramework       string `xml:"targetFramework,attr"`
		DevelopmentDependency string `xml:"developmentDependency,attr"`
	} `xml:"package"`
}

// LegacyBackend resolves packages.config manifests. Every listed package is direct;
// edges come from the nuspec of each package when the repository can find it.
// Manifests do not vary by runtime, so a runtime filter does not apply to them.
type LegacyBackend struct {
	// Repository is optional.
	Repository *nuget.Repository
}

func (b *LegacyBackend) Resolve(ctx context.Context, unit *types.AnalysisUnit, scope types.Scope) (*Resolution, error) {
	raw, err := os.ReadFile(unit.Path)
	if err != nil {
		return nil, err
	}
	var pc packagesConfig
	if err := xml.Unmarshal(raw, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", unit.Path, err)
	}

	byFramework := map[string]*types.ResolvedTarget{}
	for _, p := range pc.Packages {
		if p.ID == "" || p.Version == "" {
			continue
		}
		fw := types.ShortFramework(p.TargetFramework)
		if fw != "" && !(types.Scope{Framework: scope.Framework}).Matches(fw, "") {
			continue
		}
		ref := types.PackageReference{
			Name:                    p.ID,
			Version:                 p.Version,
			Scope:                   types.ScopeDirect,
			Kind:                    types.KindPackage,
			IsDevelopmentDependency: strings.EqualFold(p.DevelopmentDependency, "true"),
		}
		if unit.PackagesDir != "" {
			dir := nuget.LegacyPackageDir(unit.PackagesDir, p.ID, p.Version)
			if st, err := os.Stat(dir); err == nil && st.IsDir() {
				ref.PackagePath = dir
			}
		}
		if b.Repository != nil {
			if n, err := b.Repository.Nuspec(ctx, ref.PackagePath, p.ID, p.Version); err == nil {
				for _, d := range n.DependenciesFor(fw) {
					if ref.Dependencies == nil {
						ref.Dependencies = map[string]string{}
					}
					ref.Dependencies[d.ID] = d.Version
				}
			} else {
				slog.DebugContext(ctx, "No manifest for legacy package", "package", p.ID, "version", p.Version, "error", err)
			}
		}

		t, ok := byFramework[fw]
		if !ok {
			t = &types.ResolvedTarget{Framework: fw}
			byFramework[fw] = t
		}
		t.Packages = append(t.Packages, ref)
	}

	res := &Resolution{}
	fws := make([]string, 0, len(byFramework))
	for fw := range byFramework {
		fws = append(fws, fw)
	}
	sort.Strings(fws)
	for _, fw := range fws {
		t := byFramework[fw]
		sort.Slice(t.Packages, func(i, j int) bool { return t.Packages[i].Key().Less(t.Packages[j].Key()) })
		res.Targets = append(res.Targets, *t)
	}
	return res, nil
}
