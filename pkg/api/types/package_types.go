package types

import "strings"

// DependencyScope tells whether a package was declared by the unit or pulled in by another package.
type DependencyScope string

const (
	ScopeDirect     DependencyScope = "direct"
	ScopeTransitive DependencyScope = "transitive"
)

// ReferenceKind is the kind of a resolved library entry.
type ReferenceKind string

const (
	KindPackage ReferenceKind = "package"
	KindProject ReferenceKind = "project"
)

// PackageReference is one dependency resolved for a unit/framework/runtime combination.
type PackageReference struct {
	Name                    string          `json:"name"`
	Version                 string          `json:"version"`
	Scope                   DependencyScope `json:"scope"`
	IsDevelopmentDependency bool            `json:"isDevelopmentDependency,omitempty"`
	Kind                    ReferenceKind   `json:"kind,omitempty"`

	// Dependencies maps dependency id to the declared (minimum) version.
	// The resolved version is looked up by id within the same target.
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// Sha512 is the base64 package hash recorded by restore, when known.
	Sha512 string `json:"sha512,omitempty"`
	// PackagePath is the absolute directory of the extracted package, when known.
	PackagePath string `json:"packagePath,omitempty"`
}

// Key returns the identity key of the package.
func (r PackageReference) Key() Key {
	return NewKey(r.Name, r.Version)
}

// ResolvedTarget is the resolved package set of one framework/runtime pair.
type ResolvedTarget struct {
	Framework string             `json:"framework"`
	Runtime   string             `json:"runtime,omitempty"`
	Packages  []PackageReference `json:"packages"`
}

// Key is the identity of a component: (name, version).
// NuGet ids are case-insensitive, so the id is compared lower-cased.
type Key struct {
	Name    string
	Version string
}

func NewKey(name, version string) Key {
	return Key{Name: strings.ToLower(name), Version: strings.ToLower(version)}
}

func (k Key) String() string {
	return k.Name + "@" + k.Version
}

// Less orders keys by name, then version.
func (k Key) Less(o Key) bool {
	if k.Name != o.Name {
		return k.Name < o.Name
	}
	return k.Version < o.Version
}
