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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// slnProjectLine matches `Project("{type-guid}") = "Name", "relative\path.csproj", "{guid}"`.
var slnProjectLine = regexp.MustCompile(`^\s*Project\("\{[^}]*\}"\)\s*=\s*"([^"]*)"\s*,\s*"([^"]*)"`)

// readSolution returns the absolute paths of the project files listed in a .sln file.
// Solution folders and non-.NET project types are skipped.
func readSolution(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	dir := filepath.Dir(path)
	var projects []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := slnProjectLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if !isProjectFile(m[2]) {
			continue
		}
		projects = append(projects, resolveInclude(dir, m[2]))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read solution %q: %w", path, err)
	}
	return projects, nil
}
