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

// Package enricher adds package-urls, hashes, descriptive metadata and licenses to components.
package enricher

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/license"
	"github.com/andreycha/cyclonedx-dotnet/pkg/nuget"
	"github.com/package-url/packageurl-go"
	"golang.org/x/sync/errgroup"
)

// NuspecSource provides package manifests. *nuget.Repository implements it.
type NuspecSource interface {
	LocalDir(packageDir, id, version string) (string, bool)
	Nuspec(ctx context.Context, packageDir, id, version string) (*nuget.Nuspec, error)
}

// LicenseFetcher resolves the license of a source repository. *license.GitHubClient implements it.
type LicenseFetcher interface {
	License(ctx context.Context, repoURL string) (types.License, error)
}

// Opts configures an Enricher.
type Opts struct {
	Packages NuspecSource
	// Licenses is the run-wide license cache. Nil uses a fresh in-memory cache.
	Licenses *license.Cache
	// Remote is nil when remote license resolution is disabled.
	Remote LicenseFetcher
	// Hashes is the run-wide artifact digest cache. Nil uses a fresh cache.
	Hashes                 *HashCache
	DisableHashComputation bool
	Parallelism            int
}

type Enricher struct {
	o Opts
}

func New(o Opts) *Enricher {
	if o.Licenses == nil {
		o.Licenses = license.NewCache()
	}
	if o.Hashes == nil {
		o.Hashes = NewHashCache()
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.NumCPU()
	}
	return &Enricher{o: o}
}

// Enrich fills in every component in place. Lookup failures degrade to absent data and
// never fail the run.
func (e *Enricher) Enrich(ctx context.Context, components []*types.Component) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.o.Parallelism)
	for _, c := range components {
		g.Go(func() error {
			e.enrich(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	unresolved := 0
	for _, c := range components {
		if c.Kind == types.KindPackage && !c.License.Resolved() {
			unresolved++
		}
	}
	slog.InfoContext(ctx, "Components enriched", "components", len(components), "unresolvedLicenses", unresolved)
}

func (e *Enricher) enrich(ctx context.Context, c *types.Component) {
	c.PURL = PackageURL(c.Name, c.Version)
	if c.Kind == types.KindProject {
		return
	}

	var spec *nuget.Nuspec
	if e.o.Packages != nil {
		n, err := e.o.Packages.Nuspec(ctx, c.PackagePath, c.Name, c.Version)
		if err != nil {
			slog.DebugContext(ctx, "No package manifest", "package", c.Name, "version", c.Version, "error", err)
		} else {
			spec = n
		}
	}
	if spec != nil {
		c.Description = strings.TrimSpace(spec.Metadata.Description)
		c.Authors = strings.TrimSpace(spec.Metadata.Authors)
		c.ProjectURL = strings.TrimSpace(spec.Metadata.ProjectURL)
		c.VCSURL = strings.TrimSpace(spec.Metadata.Repository.URL)
	}

	if !e.o.DisableHashComputation {
		if h, ok := e.hash(ctx, c); ok {
			c.Hashes = []types.Hash{{Algorithm: HashAlgorithm, Value: h}}
		}
	}
	c.License = e.license(ctx, c, spec)
}

// PackageURL returns the nuget package-url of name@version.
func PackageURL(name, version string) string {
	return packageurl.NewPackageURL(packageurl.TypeNuget, "", name, version, nil, "").ToString()
}

func (e *Enricher) hash(ctx context.Context, c *types.Component) (string, bool) {
	if c.Sha512 != "" {
		h, err := sha512FromBase64(c.Sha512)
		if err == nil {
			return h, true
		}
		slog.DebugContext(ctx, "Invalid recorded sha512", "package", c.Name, "error", err)
	}
	if e.o.Packages == nil {
		return "", false
	}
	dir, ok := e.o.Packages.LocalDir(c.PackagePath, c.Name, c.Version)
	if !ok {
		return "", false
	}
	p, ok := nuget.NupkgPath(dir, c.Name, c.Version)
	if !ok {
		return "", false
	}
	h, err := e.o.Hashes.Sum(p)
	if err != nil {
		slog.DebugContext(ctx, "Failed to hash package", "path", p, "error", err)
		return "", false
	}
	return h, true
}

// license applies the precedence: package metadata, cached resolution, remote lookup.
func (e *Enricher) license(ctx context.Context, c *types.Component, spec *nuget.Nuspec) types.License {
	var licenseURL string
	if spec != nil {
		licenseURL = strings.TrimSpace(spec.Metadata.LicenseURL)
		if expr := spec.LicenseExpression(); expr != "" {
			if licenseURL == "" {
				licenseURL = "https://licenses.nuget.org/" + expr
			}
			return types.License{Expression: expr, URL: licenseURL, Source: types.LicenseSourcePackage}
		}
		if expr, ok := license.FromURL(licenseURL); ok {
			return types.License{Expression: expr, URL: licenseURL, Source: types.LicenseSourcePackage}
		}
	}

	candidates := nonEmpty(licenseURL, c.VCSURL, c.ProjectURL)
	for _, u := range candidates {
		if l, ok := e.o.Licenses.Get(u); ok {
			l.Source = types.LicenseSourceCache
			return l
		}
	}
	if e.o.Remote != nil {
		for _, u := range candidates {
			if _, ok := license.ParseGitHubURL(u); !ok {
				continue
			}
			l, err := e.o.Licenses.Resolve(ctx, u, func(ctx context.Context) (types.License, error) {
				return e.o.Remote.License(ctx, u)
			})
			if err == nil && l.Resolved() {
				return l
			}
			if err != nil && !errors.Is(err, license.ErrNoLicense) {
				slog.DebugContext(ctx, "Remote license lookup failed", "package", c.Name, "url", u, "error", err)
			}
		}
	}
	return types.License{URL: licenseURL}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
