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

package enricher

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/license"
	"github.com/andreycha/cyclonedx-dotnet/pkg/nuget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePackages struct {
	specs map[string]*nuget.Nuspec
	dirs  map[string]string
}

func (f *fakePackages) LocalDir(_, id, _ string) (string, bool) {
	d, ok := f.dirs[id]
	return d, ok
}

func (f *fakePackages) Nuspec(_ context.Context, _, id, _ string) (*nuget.Nuspec, error) {
	if n, ok := f.specs[id]; ok {
		return n, nil
	}
	return nil, nuget.ErrPackageNotFound
}

type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int
	resp  map[string]types.License
}

func (f *fakeRemote) License(_ context.Context, repoURL string) (types.License, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[repoURL]++
	if l, ok := f.resp[repoURL]; ok {
		return l, nil
	}
	return types.License{}, errors.New("rate limited (status code: 429)")
}

func spec(mutate func(m *nuget.NuspecMetadata)) *nuget.Nuspec {
	n := &nuget.Nuspec{}
	mutate(&n.Metadata)
	return n
}

func component(name string) *types.Component {
	return &types.Component{Name: name, Version: "1.0.0", Kind: types.KindPackage, Classification: types.ClassificationLibrary}
}

func TestPackageURL(t *testing.T) {
	assert.Equal(t, "pkg:nuget/Newtonsoft.Json@13.0.3", PackageURL("Newtonsoft.Json", "13.0.3"))
}

func TestEnrichLicensePrecedence(t *testing.T) {
	packages := &fakePackages{specs: map[string]*nuget.Nuspec{
		"Embedded": spec(func(m *nuget.NuspecMetadata) {
			m.License = nuget.NuspecLicense{Type: "expression", Value: "MIT"}
			m.Repository.URL = "https://github.com/acme/embedded"
			m.Description = " Embedded package "
			m.Authors = "Acme"
		}),
		"NugetURL": spec(func(m *nuget.NuspecMetadata) {
			m.LicenseURL = "https://licenses.nuget.org/Apache-2.0"
		}),
		"Cached": spec(func(m *nuget.NuspecMetadata) {
			m.ProjectURL = "https://github.com/acme/cached"
		}),
		"RemoteA": spec(func(m *nuget.NuspecMetadata) {
			m.Repository.URL = "https://github.com/acme/shared.git"
		}),
		"RemoteB": spec(func(m *nuget.NuspecMetadata) {
			m.ProjectURL = "https://github.com/acme/shared"
		}),
		"Failing": spec(func(m *nuget.NuspecMetadata) {
			m.LicenseURL = "https://github.com/acme/failing/blob/main/LICENSE"
		}),
	}}
	remote := &fakeRemote{resp: map[string]types.License{
		"https://github.com/acme/shared.git": {Expression: "BSD-3-Clause", Source: types.LicenseSourceRemote},
		"https://github.com/acme/shared":     {Expression: "BSD-3-Clause", Source: types.LicenseSourceRemote},
		"https://github.com/acme/embedded":   {Expression: "GPL-3.0-only", Source: types.LicenseSourceRemote},
	}}
	cache := license.NewCache()
	_, err := cache.Resolve(context.Background(), "https://github.com/acme/cached", func(context.Context) (types.License, error) {
		return types.License{Expression: "MPL-2.0", Source: types.LicenseSourceRemote}, nil
	})
	require.NoError(t, err)

	comps := map[string]*types.Component{}
	var list []*types.Component
	for _, n := range []string{"Embedded", "NugetURL", "Cached", "RemoteA", "RemoteB", "Failing", "Unknown"} {
		c := component(n)
		comps[n] = c
		list = append(list, c)
	}
	New(Opts{Packages: packages, Licenses: cache, Remote: remote, Parallelism: 4}).Enrich(context.Background(), list)

	assert.Equal(t, types.License{Expression: "MIT", URL: "https://licenses.nuget.org/MIT", Source: types.LicenseSourcePackage}, comps["Embedded"].License)
	assert.Equal(t, "Embedded package", comps["Embedded"].Description)
	assert.Equal(t, "Acme", comps["Embedded"].Authors)
	assert.Equal(t, "https://github.com/acme/embedded", comps["Embedded"].VCSURL)

	assert.Equal(t, types.License{Expression: "Apache-2.0", URL: "https://licenses.nuget.org/Apache-2.0", Source: types.LicenseSourcePackage}, comps["NugetURL"].License)
	assert.Equal(t, types.License{Expression: "MPL-2.0", Source: types.LicenseSourceCache}, comps["Cached"].License)

	assert.Equal(t, "BSD-3-Clause", comps["RemoteA"].License.Expression)
	assert.Equal(t, "BSD-3-Clause", comps["RemoteB"].License.Expression)
	remote.mu.Lock()
	shared := remote.calls["https://github.com/acme/shared.git"] + remote.calls["https://github.com/acme/shared"]
	embedded := remote.calls["https://github.com/acme/embedded"]
	remote.mu.Unlock()
	assert.Equal(t, 1, shared, "one remote lookup per repository")
	assert.Equal(t, 0, embedded, "package metadata wins over remote")

	assert.False(t, comps["Failing"].License.Resolved())
	assert.Equal(t, "https://github.com/acme/failing/blob/main/LICENSE", comps["Failing"].License.URL)
	assert.False(t, comps["Unknown"].License.Resolved())

	for _, c := range list {
		assert.Equal(t, PackageURL(c.Name, c.Version), c.PURL)
	}
}

func TestEnrichRemoteFailureLookedUpOnce(t *testing.T) {
	const repo = "https://github.com/acme/monorepo"
	packages := &fakePackages{specs: map[string]*nuget.Nuspec{}}
	var list []*types.Component
	for _, n := range []string{"Acme.Core", "Acme.Data", "Acme.Http", "Acme.Json"} {
		packages.specs[n] = spec(func(m *nuget.NuspecMetadata) { m.Repository.URL = repo })
		list = append(list, component(n))
	}
	remote := &fakeRemote{}
	New(Opts{Packages: packages, Licenses: license.NewCache(), Remote: remote, Parallelism: 1}).Enrich(context.Background(), list)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, 1, remote.calls[repo])
	for _, c := range list {
		assert.False(t, c.License.Resolved(), c.Name)
	}
}

func TestEnrichRemoteDisabled(t *testing.T) {
	packages := &fakePackages{specs: map[string]*nuget.Nuspec{
		"Pkg": spec(func(m *nuget.NuspecMetadata) { m.Repository.URL = "https://github.com/acme/pkg" }),
	}}
	c := component("Pkg")
	New(Opts{Packages: packages}).Enrich(context.Background(), []*types.Component{c})
	assert.False(t, c.License.Resolved())
	assert.Equal(t, "https://github.com/acme/pkg", c.VCSURL)
}

func TestEnrichHashes(t *testing.T) {
	digest := sha512.Sum512([]byte("recorded"))

	dir := t.TempDir()
	archive := []byte("nupkg bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.pkg.1.0.0.nupkg"), archive, 0o644))
	computed := sha512.Sum512(archive)

	packages := &fakePackages{dirs: map[string]string{"Local.Pkg": dir}}

	recorded := component("Recorded")
	recorded.Sha512 = base64.StdEncoding.EncodeToString(digest[:])
	local := component("Local.Pkg")
	missing := component("Missing")
	project := &types.Component{Name: "Lib", Version: "1.0.0", Kind: types.KindProject}

	hashes := NewHashCache()
	New(Opts{Packages: packages, Hashes: hashes}).Enrich(context.Background(), []*types.Component{recorded, local, missing, project})

	assert.Equal(t, []types.Hash{{Algorithm: HashAlgorithm, Value: hex.EncodeToString(digest[:])}}, recorded.Hashes)
	assert.Equal(t, []types.Hash{{Algorithm: HashAlgorithm, Value: hex.EncodeToString(computed[:])}}, local.Hashes)
	assert.Empty(t, missing.Hashes)
	assert.Empty(t, project.Hashes)
	assert.Equal(t, "pkg:nuget/Lib@1.0.0", project.PURL)

	t.Run("disabled", func(t *testing.T) {
		c := component("Recorded")
		c.Sha512 = recorded.Sha512
		New(Opts{Packages: packages, DisableHashComputation: true}).Enrich(context.Background(), []*types.Component{c})
		assert.Empty(t, c.Hashes)
	})
}

func TestHashCacheReusesDigest(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.nupkg")
	require.NoError(t, os.WriteFile(p, []byte("one"), 0o644))
	h := NewHashCache()
	first, err := h.Sum(p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("two"), 0o644))
	second, err := h.Sum(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = h.Sum(filepath.Join(t.TempDir(), "missing.nupkg"))
	assert.Error(t, err)
}
