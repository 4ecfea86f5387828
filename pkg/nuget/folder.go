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

package nuget

import (
	"os"
	"path/filepath"
	"strings"
)

// GlobalPackagesFolder returns the NuGet global packages folder ($NUGET_PACKAGES or ~/.nuget/packages).
func GlobalPackagesFolder() string {
	if v := strings.TrimSpace(os.Getenv("NUGET_PACKAGES")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nuget", "packages")
}

// GlobalPackageDir is the extraction directory of a package in a global packages folder.
func GlobalPackageDir(root, id, version string) string {
	return filepath.Join(root, strings.ToLower(id), strings.ToLower(version))
}

// LegacyPackageDir is the extraction directory used by packages.config restores.
func LegacyPackageDir(packagesDir, id, version string) string {
	return filepath.Join(packagesDir, id+"."+version)
}

// NuspecPath finds the nuspec inside an extracted package directory.
func NuspecPath(dir, id string) (string, bool) {
	return firstExisting(
		filepath.Join(dir, strings.ToLower(id)+".nuspec"),
		filepath.Join(dir, id+".nuspec"),
	)
}

// NupkgPath finds the package archive inside an extracted package directory.
func NupkgPath(dir, id, version string) (string, bool) {
	return firstExisting(
		filepath.Join(dir, strings.ToLower(id)+"."+strings.ToLower(version)+".nupkg"),
		filepath.Join(dir, id+"."+version+".nupkg"),
	)
}

func firstExisting(paths ...string) (string, bool) {
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}
