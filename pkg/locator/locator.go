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

// Package locator discovers the build units to analyze from a project, solution or directory path.
package locator

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

const (
	packagesConfigName = "packages.config"
	// packagesDirSearchDepth bounds the upward search for a legacy "packages" folder.
	packagesDirSearchDepth = 4
)

var projectExtensions = []string{".csproj", ".fsproj", ".vbproj"}

// Opts configures Locate.
type Opts struct {
	// Recursive follows project references of a single project file.
	Recursive bool
	// IncludeProjectReferences requires project or solution input.
	IncludeProjectReferences bool
}

// Locate resolves path into the units to analyze.
//   - a project file yields the project, plus every transitively referenced project when Recursive is set;
//   - a solution file yields every project it lists;
//   - a packages.config file yields that manifest;
//   - a directory is searched recursively for packages.config manifests.
func Locate(ctx context.Context, path string, o Opts) ([]*types.AnalysisUnit, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, err
	}

	if st.IsDir() {
		if o.Recursive {
			return nil, &AmbiguousInputError{Path: path, Reason: "--recursive applies to a single project file, not a directory"}
		}
		if o.IncludeProjectReferences {
			return nil, &AmbiguousInputError{Path: path, Reason: "--include-project-references requires a project or solution file"}
		}
		return locateManifests(ctx, abs)
	}

	switch {
	case strings.EqualFold(filepath.Ext(abs), ".sln"):
		return locateSolution(ctx, abs)
	case isProjectFile(abs):
		if !o.Recursive {
			u, err := readProject(abs)
			if err != nil {
				return nil, err
			}
			return []*types.AnalysisUnit{u}, nil
		}
		return locateProjectClosure(ctx, []string{abs})
	case strings.EqualFold(filepath.Base(abs), packagesConfigName):
		if o.IncludeProjectReferences {
			return nil, &AmbiguousInputError{Path: path, Reason: "--include-project-references requires a project or solution file"}
		}
		return []*types.AnalysisUnit{newLegacyUnit(abs)}, nil
	default:
		return nil, &NotFoundError{Path: path, Reason: "not a supported project, solution or packages.config file"}
	}
}

func locateSolution(ctx context.Context, path string) ([]*types.AnalysisUnit, error) {
	projects, err := readSolution(path)
	if err != nil {
		return nil, err
	}
	units := make([]*types.AnalysisUnit, 0, len(projects))
	for _, p := range projects {
		u, err := readProject(p)
		if err != nil {
			// A stale solution entry must not hide the remaining projects.
			slog.WarnContext(ctx, "Skipping solution project", "solution", path, "project", p, "error", err)
			continue
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return nil, &NotFoundError{Path: path, Reason: "solution lists no readable projects"}
	}
	slog.DebugContext(ctx, "Solution projects located", "solution", path, "count", len(units))
	return units, nil
}

// locateProjectClosure walks project references breadth-first. The visited set keeps
// circular references from looping.
func locateProjectClosure(ctx context.Context, roots []string) ([]*types.AnalysisUnit, error) {
	visited := make(map[string]bool)
	queue := append([]string{}, roots...)
	var units []*types.AnalysisUnit
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		u, err := readProject(p)
		if err != nil {
			if len(units) == 0 {
				return nil, err
			}
			slog.WarnContext(ctx, "Skipping referenced project", "project", p, "error", err)
			continue
		}
		units = append(units, u)
		queue = append(queue, u.ProjectReferences...)
	}
	return units, nil
}

func locateManifests(ctx context.Context, dir string) ([]*types.AnalysisUnit, error) {
	var units []*types.AnalysisUnit
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); p != dir && (name == ".git" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(d.Name(), packagesConfigName) {
			units = append(units, newLegacyUnit(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, &NotFoundError{Path: dir, Reason: "no packages.config files found"}
	}
	slog.DebugContext(ctx, "Legacy manifests located", "dir", dir, "count", len(units))
	return units, nil
}

func newLegacyUnit(path string) *types.AnalysisUnit {
	dir := filepath.Dir(path)
	return &types.AnalysisUnit{
		Path:        path,
		Name:        filepath.Base(dir),
		Kind:        types.UnitKindLegacy,
		PackagesDir: findPackagesDir(dir),
	}
}

// findPackagesDir looks for the repository "packages" folder next to the manifest or above it.
func findPackagesDir(dir string) string {
	for i := 0; i < packagesDirSearchDepth; i++ {
		candidate := filepath.Join(dir, "packages")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func isProjectFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(strings.ReplaceAll(path, `\`, "/")))
	for _, e := range projectExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
