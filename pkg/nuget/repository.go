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
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of manifests kept in memory.
const DefaultCacheSize = 4096

// Repository looks up package manifests in local package folders first and then in a remote feed.
// It is safe for concurrent use.
type Repository struct {
	remote         *Client
	globalPackages string
	cache          *lru.Cache[string, *Nuspec]
}

// RepositoryOpts configures a Repository.
type RepositoryOpts struct {
	// Remote is optional; nil disables feed lookups.
	Remote *Client
	// GlobalPackages overrides the global packages folder.
	GlobalPackages string
	CacheSize      int
}

func NewRepository(o RepositoryOpts) (*Repository, error) {
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.GlobalPackages == "" {
		o.GlobalPackages = GlobalPackagesFolder()
	}
	cache, err := lru.New[string, *Nuspec](o.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Repository{remote: o.Remote, globalPackages: o.GlobalPackages, cache: cache}, nil
}

// LocalDir returns the extracted directory of a package: packageDir when it holds the
// package, otherwise the global packages folder location.
func (r *Repository) LocalDir(packageDir, id, version string) (string, bool) {
	for _, dir := range []string{packageDir, GlobalPackageDir(r.globalPackages, id, version)} {
		if dir == "" {
			continue
		}
		if _, ok := NuspecPath(dir, id); ok {
			return dir, true
		}
	}
	return "", false
}

// Nuspec returns the manifest of id/version. packageDir is the known extraction directory, if any.
func (r *Repository) Nuspec(ctx context.Context, packageDir, id, version string) (*Nuspec, error) {
	key := fmt.Sprintf("%s/%s", id, version)
	if n, ok := r.cache.Get(key); ok {
		return n, nil
	}
	n, err := r.load(ctx, packageDir, id, version)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, n)
	return n, nil
}

func (r *Repository) load(ctx context.Context, packageDir, id, version string) (*Nuspec, error) {
	if dir, ok := r.LocalDir(packageDir, id, version); ok {
		p, _ := NuspecPath(dir, id)
		n, err := ReadNuspec(p)
		if err == nil {
			return n, nil
		}
		slog.DebugContext(ctx, "Unreadable local nuspec", "path", p, "error", err)
	}
	if r.remote == nil {
		return nil, ErrPackageNotFound
	}
	n, err := r.remote.FetchNuspec(ctx, id, version)
	if err != nil {
		if !errors.Is(err, ErrPackageNotFound) {
			slog.DebugContext(ctx, "Remote nuspec lookup failed", "package", id, "version", version, "error", err)
		}
		return nil, err
	}
	return n, nil
}
