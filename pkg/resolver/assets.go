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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/samber/lo"
)

// AssetsFileName is the restore output read for SDK-style projects.
const AssetsFileName = "project.assets.json"

// assetsFile is the subset of project.assets.json used for resolution.
type assetsFile struct {
	Version        int                                    `json:"version"`
	Targets        map[string]map[string]assetsTargetItem `json:"targets"`
	Libraries      map[string]assetsLibrary               `json:"libraries"`
	PackageFolders map[string]json.RawMessage             `json:"packageFolders"`
	Project        assetsProject                          `json:"project"`
}

type assetsTargetItem struct {
	Type         string            `json:"type"`
	Dependencies map[string]string `json:"dependencies"`
}

type assetsLibrary struct {
	Sha512         string `json:"sha512"`
	Type           string `json:"type"`
	Path           string `json:"path"`
	MSBuildProject string `json:"msbuildProject"`
}

type assetsProject struct {
	Version    string                     `json:"version"`
	Restore    assetsRestore              `json:"restore"`
	Frameworks map[string]assetsFramework `json:"frameworks"`
}

type assetsRestore struct {
	ProjectName  string                            `json:"projectName"`
	ProjectPath  string                            `json:"projectPath"`
	PackagesPath string                            `json:"packagesPath"`
	Frameworks   map[string]assetsRestoreFramework `json:"frameworks"`
}

type assetsRestoreFramework struct {
	ProjectReferences map[string]json.RawMessage `json:"projectReferences"`
}

type assetsFramework struct {
	TargetAlias  string                      `json:"targetAlias"`
	Dependencies map[string]assetsDependency `json:"dependencies"`
}

type assetsDependency struct {
	Target         string `json:"target"`
	Version        string `json:"version"`
	SuppressParent string `json:"suppressParent"`
	AutoReferenced bool   `json:"autoReferenced"`
}

// isDevelopment reports PrivateAssets="all" on a PackageReference, which restore records as suppressParent "All".
func (d assetsDependency) isDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(d.SuppressParent), "all")
}

// assetsResult is the parsed resolution of one project.
type assetsResult struct {
	Version string
	Targets []types.ResolvedTarget
}

func readAssetsFile(path string, scope types.Scope) (*assetsResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a assetsFile
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return a.resolve(scope), nil
}

func (a *assetsFile) packagesPath() string {
	if a.Project.Restore.PackagesPath != "" {
		return a.Project.Restore.PackagesPath
	}
	folders := lo.Keys(a.PackageFolders)
	sort.Strings(folders)
	if len(folders) > 0 {
		return folders[0]
	}
	return ""
}

// framework finds the project framework section of a target framework.
func (a *assetsFile) framework(tfm string) (assetsFramework, bool) {
	short := types.ShortFramework(tfm)
	for alias, fw := range a.Project.Frameworks {
		if types.ShortFramework(alias) == short || (fw.TargetAlias != "" && types.ShortFramework(fw.TargetAlias) == short) {
			return fw, true
		}
	}
	if len(a.Project.Frameworks) == 1 {
		for _, fw := range a.Project.Frameworks {
			return fw, true
		}
	}
	return assetsFramework{}, false
}

func (a *assetsFile) resolve(scope types.Scope) *assetsResult {
	res := &assetsResult{Version: a.Project.Version}
	pkgRoot := a.packagesPath()

	targetKeys := lo.Keys(a.Targets)
	sort.Strings(targetKeys)
	for _, tk := range targetKeys {
		fwName, rid, _ := strings.Cut(tk, "/")
		fw := types.ShortFramework(fwName)
		if !scope.Matches(fw, rid) {
			continue
		}
		declared := map[string]assetsDependency{}
		if section, ok := a.framework(fw); ok {
			for id, d := range section.Dependencies {
				declared[strings.ToLower(id)] = d
			}
		}
		directProjects := a.directProjects(fw)

		items := a.Targets[tk]
		target := types.ResolvedTarget{Framework: fw, Runtime: rid, Packages: make([]types.PackageReference, 0, len(items))}
		for libKey, item := range items {
			name, version, ok := strings.Cut(libKey, "/")
			if !ok {
				continue
			}
			ref := types.PackageReference{
				Name:         name,
				Version:      version,
				Scope:        types.ScopeTransitive,
				Kind:         types.KindPackage,
				Dependencies: item.Dependencies,
			}
			if item.Type == string(types.KindProject) {
				ref.Kind = types.KindProject
			}
			if d, ok := declared[strings.ToLower(name)]; ok {
				ref.Scope = types.ScopeDirect
				ref.IsDevelopmentDependency = d.isDevelopment()
			}
			if ref.Kind == types.KindProject && directProjects[projectFileKey(a.Libraries[libKey])] {
				ref.Scope = types.ScopeDirect
			}
			if lib, ok := a.Libraries[libKey]; ok && ref.Kind == types.KindPackage {
				ref.Sha512 = lib.Sha512
				if lib.Path != "" && pkgRoot != "" {
					ref.PackagePath = filepath.Join(pkgRoot, filepath.FromSlash(lib.Path))
				}
			}
			target.Packages = append(target.Packages, ref)
		}
		sort.Slice(target.Packages, func(i, j int) bool {
			return target.Packages[i].Key().Less(target.Packages[j].Key())
		})
		res.Targets = append(res.Targets, target)
	}
	return res
}

// directProjects returns the project files referenced directly by the restored project,
// keyed by lower-cased file name without extension.
func (a *assetsFile) directProjects(tfm string) map[string]bool {
	out := map[string]bool{}
	short := types.ShortFramework(tfm)
	add := func(rf assetsRestoreFramework) {
		for p := range rf.ProjectReferences {
			out[fileKey(p)] = true
		}
	}
	for alias, rf := range a.Project.Restore.Frameworks {
		if types.ShortFramework(alias) == short {
			add(rf)
			return out
		}
	}
	for _, rf := range a.Project.Restore.Frameworks {
		add(rf)
	}
	return out
}

func projectFileKey(lib assetsLibrary) string {
	if lib.MSBuildProject != "" {
		return fileKey(lib.MSBuildProject)
	}
	return fileKey(lib.Path)
}

func fileKey(p string) string {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(p, `\`, "/")))
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}
