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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

// ProjectBackend resolves SDK-style projects from restore output.
type ProjectBackend struct {
	Restorer Restorer
	// DisableRestore only reads existing project.assets.json files.
	DisableRestore bool
	// BaseIntermediateOutputPath locates relocated obj folders.
	BaseIntermediateOutputPath string
}

func (b *ProjectBackend) Resolve(ctx context.Context, unit *types.AnalysisUnit, scope types.Scope) (*Resolution, error) {
	if !b.DisableRestore {
		if b.Restorer == nil {
			return nil, errors.New("no restorer configured")
		}
		if err := b.Restorer.Restore(ctx, RestoreRequest{
			ProjectPath:                unit.Path,
			Runtime:                    scope.Runtime,
			BaseIntermediateOutputPath: b.BaseIntermediateOutputPath,
		}); err != nil {
			return nil, err
		}
	}

	candidates := b.assetsCandidates(unit)
	for _, p := range candidates {
		a, err := readAssetsFile(p, scope)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Resolution{Version: a.Version, Targets: a.Targets}, nil
	}
	if b.DisableRestore {
		return nil, &MissingResolutionDataError{Unit: unit.Name, Path: candidates[0]}
	}
	return nil, fmt.Errorf("restore succeeded but %s was not found (looked in %s)", AssetsFileName, strings.Join(candidates, ", "))
}

func (b *ProjectBackend) assetsCandidates(unit *types.AnalysisUnit) []string {
	if b.BaseIntermediateOutputPath == "" {
		return []string{filepath.Join(filepath.Dir(unit.Path), "obj", AssetsFileName)}
	}
	projectName := strings.TrimSuffix(filepath.Base(unit.Path), filepath.Ext(unit.Path))
	base := b.BaseIntermediateOutputPath
	if !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(unit.Path), base)
	}
	out := []string{
		filepath.Join(base, projectName, AssetsFileName),
		filepath.Join(base, AssetsFileName),
	}
	// Keep the default location as a fallback when the relocated folder is shared.
	if _, err := os.Stat(out[0]); err != nil {
		out = append(out, filepath.Join(filepath.Dir(unit.Path), "obj", AssetsFileName))
	}
	return out
}
