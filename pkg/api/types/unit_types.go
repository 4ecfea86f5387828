package types

import (
	"strconv"
	"strings"
)

// UnitKind distinguishes SDK-style projects from legacy packages.config manifests.
type UnitKind string

const (
	UnitKindProject UnitKind = "project"
	UnitKindLegacy  UnitKind = "packages.config"
)

// AnalysisUnit is a buildable entity discovered by the locator.
// It is not modified after discovery.
type AnalysisUnit struct {
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	Kind    UnitKind `json:"kind"`

	TargetFrameworks []string `json:"targetFrameworks,omitempty"`
	Runtimes         []string `json:"runtimes,omitempty"`
	// ProjectReferences holds absolute paths of referenced project files.
	ProjectReferences []string `json:"projectReferences,omitempty"`
	IsTestProject     bool     `json:"isTestProject,omitempty"`

	// PackagesDir is the repository-local "packages" folder used by packages.config restores.
	PackagesDir string `json:"packagesDir,omitempty"`
}

// Scope narrows resolution to one target framework and/or runtime.
// Empty fields match everything.
type Scope struct {
	Framework string
	Runtime   string
}

// Matches reports whether a target framework/runtime pair is in scope.
func (s Scope) Matches(framework, runtime string) bool {
	if s.Framework != "" && !strings.EqualFold(ShortFramework(s.Framework), ShortFramework(framework)) {
		return false
	}
	if s.Runtime != "" && !strings.EqualFold(s.Runtime, runtime) {
		return false
	}
	return true
}

// ShortFramework converts a long framework moniker such as ".NETCoreApp,Version=v8.0"
// into its short folder name ("net8.0"). Short names are returned lower-cased and unchanged.
func ShortFramework(fw string) string {
	fw = strings.TrimSpace(fw)
	ident, version, ok := strings.Cut(fw, ",Version=v")
	if !ok {
		return strings.ToLower(fw)
	}
	if i := strings.Index(version, ","); i >= 0 {
		// drop ",Profile=..." suffixes
		version = version[:i]
	}
	switch strings.ToLower(ident) {
	case ".netcoreapp":
		if major, _, _ := strings.Cut(version, "."); atoi(major) >= 5 {
			return "net" + version
		}
		return "netcoreapp" + version
	case ".netstandard":
		return "netstandard" + version
	case ".netframework":
		return "net" + strings.ReplaceAll(version, ".", "")
	default:
		return strings.ToLower(fw)
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
