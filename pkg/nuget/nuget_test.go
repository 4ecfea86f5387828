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
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNuspec = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>Serilog</id>
    <version>3.1.1</version>
    <authors>Serilog Contributors</authors>
    <description>Simple .NET logging.</description>
    <license type="expression"> Apache-2.0 </license>
    <licenseUrl>https://licenses.nuget.org/Apache-2.0</licenseUrl>
    <projectUrl>https://serilog.net/</projectUrl>
    <repository type="git" url="https://github.com/serilog/serilog" commit="abc" />
    <dependencies>
      <group targetFramework="net6.0">
        <dependency id="System.Diagnostics.DiagnosticSource" version="7.0.2" />
      </group>
      <group targetFramework=".NETStandard2.0" />
    </dependencies>
  </metadata>
</package>`

func TestParseNuspec(t *testing.T) {
	n, err := ParseNuspec(strings.NewReader(sampleNuspec))
	require.NoError(t, err)
	assert.Equal(t, "Serilog", n.Metadata.ID)
	assert.Equal(t, "Apache-2.0", n.LicenseExpression())
	assert.Equal(t, "https://github.com/serilog/serilog", n.Metadata.Repository.URL)
	assert.False(t, n.IsDevelopmentDependency())

	deps := n.DependenciesFor("net6.0")
	require.Len(t, deps, 1)
	assert.Equal(t, "System.Diagnostics.DiagnosticSource", deps[0].ID)
	assert.Empty(t, n.DependenciesFor(".NETStandard2.0"))
}

func TestDependenciesForNearestGroup(t *testing.T) {
	n, err := ParseNuspec(strings.NewReader(`<package><metadata><id>A</id><version>1.0.0</version>
<dependencies>
  <group targetFramework=".NETFramework4.5"><dependency id="Fx45" version="1.0.0" /></group>
  <group targetFramework=".NETFramework4.6.1"><dependency id="Fx461" version="1.0.0" /></group>
  <group targetFramework=".NETStandard2.0"><dependency id="Std20" version="1.0.0" /></group>
  <group targetFramework="net6.0"><dependency id="Net6" version="1.0.0" /></group>
</dependencies></metadata></package>`))
	require.NoError(t, err)

	ids := func(deps []NuspecDependency) []string {
		var out []string
		for _, d := range deps {
			out = append(out, d.ID)
		}
		return out
	}
	tests := []struct {
		framework string
		want      []string
	}{
		{"net461", []string{"Fx461"}},
		{"net472", []string{"Fx461"}},
		{"net48", []string{"Fx461"}},
		{"net451", []string{"Fx45"}},
		{"net40", nil},
		{"netcoreapp3.1", []string{"Std20"}},
		{"net8.0", []string{"Net6"}},
		{"net8.0-windows", []string{"Net6"}},
		{"netstandard2.1", []string{"Std20"}},
		{"netstandard1.6", nil},
	}
	for _, tt := range tests {
		t.Run(tt.framework, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(n.DependenciesFor(tt.framework)))
		})
	}
}

func TestParseNuspecFileLicense(t *testing.T) {
	n, err := ParseNuspec(strings.NewReader(`<package><metadata><id>A</id><version>1.0.0</version>
<developmentDependency>true</developmentDependency>
<license type="file">LICENSE.txt</license>
<dependencies><dependency id="B" version="2.0.0" /></dependencies></metadata></package>`))
	require.NoError(t, err)
	assert.Empty(t, n.LicenseExpression())
	assert.True(t, n.IsDevelopmentDependency())
	assert.Equal(t, []NuspecDependency{{ID: "B", Version: "2.0.0"}}, n.DependenciesFor("net8.0"))
}

func newFeed(t *testing.T, check func(r *http.Request)) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/v3/index.json", func(w http.ResponseWriter, r *http.Request) {
		check(r)
		_, _ = w.Write([]byte(`{"version":"3.0.0","resources":[
			{"@id":"` + srv.URL + `/search","@type":"SearchQueryService"},
			{"@id":"` + srv.URL + `/flat/","@type":"PackageBaseAddress/3.0.0"}]}`))
	})
	mux.HandleFunc("/flat/serilog/3.1.1/serilog.nuspec", func(w http.ResponseWriter, r *http.Request) {
		check(r)
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(sampleNuspec))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestClientFetchNuspec(t *testing.T) {
	t.Run("basic_auth", func(t *testing.T) {
		srv, _ := newFeed(t, func(r *http.Request) {
			u, p, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "user", u)
			assert.Equal(t, "secret", p)
		})
		c := NewClient(ClientOpts{ServiceIndex: srv.URL + "/v3/index.json", Username: "user", Password: "secret", PasswordClearText: true})
		n, err := c.FetchNuspec(context.Background(), "Serilog", "3.1.1")
		require.NoError(t, err)
		assert.Equal(t, "3.1.1", n.Metadata.Version)
	})
	t.Run("api_key", func(t *testing.T) {
		srv, _ := newFeed(t, func(r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("X-NuGet-ApiKey"))
		})
		c := NewClient(ClientOpts{ServiceIndex: srv.URL + "/v3/index.json", Username: "user", Password: "secret"})
		_, err := c.FetchNuspec(context.Background(), "Serilog", "3.1.1")
		require.NoError(t, err)
	})
	t.Run("not_found", func(t *testing.T) {
		srv, _ := newFeed(t, func(*http.Request) {})
		c := NewClient(ClientOpts{ServiceIndex: srv.URL + "/v3/index.json"})
		_, err := c.FetchNuspec(context.Background(), "Missing", "1.0.0")
		assert.ErrorIs(t, err, ErrPackageNotFound)
	})
	t.Run("canceled_caller", func(t *testing.T) {
		srv, _ := newFeed(t, func(*http.Request) {})
		c := NewClient(ClientOpts{ServiceIndex: srv.URL + "/v3/index.json"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.FetchNuspec(ctx, "Serilog", "3.1.1")
		require.ErrorIs(t, err, context.Canceled)

		n, err := c.FetchNuspec(context.Background(), "Serilog", "3.1.1")
		require.NoError(t, err)
		assert.Equal(t, "Serilog", n.Metadata.ID)
	})
	t.Run("index_failure_not_kept", func(t *testing.T) {
		var indexHits atomic.Int32
		srv, _ := newFeed(t, func(r *http.Request) {
			if r.URL.Path == "/v3/index.json" {
				indexHits.Add(1)
			}
		})
		flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if indexHits.Load() == 0 && r.URL.Path == "/v3/index.json" {
				indexHits.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			http.Redirect(w, r, srv.URL+r.URL.Path, http.StatusTemporaryRedirect)
		}))
		t.Cleanup(flaky.Close)

		c := NewClient(ClientOpts{ServiceIndex: flaky.URL + "/v3/index.json"})
		_, err := c.FetchNuspec(context.Background(), "Serilog", "3.1.1")
		require.Error(t, err)
		_, err = c.FetchNuspec(context.Background(), "Serilog", "3.1.1")
		require.NoError(t, err)
		_, err = c.FetchNuspec(context.Background(), "Serilog", "3.1.1")
		require.NoError(t, err)
		assert.Equal(t, int32(2), indexHits.Load(), "index is read again only after a failure")
	})
}

func TestRepositoryPrefersLocalAndCaches(t *testing.T) {
	global := t.TempDir()
	dir := GlobalPackageDir(global, "Local.Pkg", "1.0.0")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.pkg.nuspec"),
		[]byte(`<package><metadata><id>Local.Pkg</id><version>1.0.0</version><license type="expression">MIT</license></metadata></package>`), 0o644))

	srv, hits := newFeed(t, func(*http.Request) {})
	repo, err := NewRepository(RepositoryOpts{
		Remote:         NewClient(ClientOpts{ServiceIndex: srv.URL + "/v3/index.json"}),
		GlobalPackages: global,
	})
	require.NoError(t, err)

	ctx := context.Background()
	n, err := repo.Nuspec(ctx, "", "Local.Pkg", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "MIT", n.LicenseExpression())

	for i := 0; i < 3; i++ {
		n, err = repo.Nuspec(ctx, "", "Serilog", "3.1.1")
		require.NoError(t, err)
		assert.Equal(t, "Apache-2.0", n.LicenseExpression())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, err = repo.Nuspec(ctx, "", "Missing", "1.0.0")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}
