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

package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"golang.org/x/sync/singleflight"
)

const cacheFormatVersion = 1

// Cache memoizes license resolutions keyed by normalized repository URL. Concurrent
// lookups of the same key share one in-flight resolution. Failed or empty resolutions
// are remembered for the lifetime of the Cache but never persisted. A Cache opened with
// a path persists its resolved licenses across runs through Save.
type Cache struct {
	path string

	mu       sync.RWMutex
	entries  map[string]types.License
	failures map[string]outcome
	dirty    bool

	group singleflight.Group
}

type outcome struct {
	license types.License
	err     error
}

type cacheFile struct {
	Version  int                      `json:"version"`
	Licenses map[string]types.License `json:"licenses"`
}

// NewCache returns an in-memory cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]types.License{}, failures: map[string]outcome{}}
}

// OpenCache returns a cache backed by the JSON file at path. A missing file yields an
// empty cache; an unreadable or incompatible one is ignored with a warning.
func OpenCache(ctx context.Context, path string) (*Cache, error) {
	c := NewCache()
	c.path = path
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read license cache %s: %w", path, err)
	}
	var f cacheFile
	if err := json.Unmarshal(b, &f); err != nil || f.Version != cacheFormatVersion {
		slog.WarnContext(ctx, "Ignoring incompatible license cache", "path", path, "error", err)
		return c, nil
	}
	for k, v := range f.Licenses {
		if v.Resolved() {
			c.entries[k] = v
		}
	}
	slog.DebugContext(ctx, "Loaded license cache", "path", path, "entries", len(c.entries))
	return c, nil
}

// Get returns a prior resolution for url.
func (c *Cache) Get(url string) (types.License, bool) {
	return c.get(CacheKey(url))
}

func (c *Cache) get(key string) (types.License, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.entries[key]
	return l, ok
}

func (c *Cache) put(key string, l types.License) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = l
	c.dirty = true
}

func (c *Cache) failed(key string) (outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.failures[key]
	return f, ok
}

func (c *Cache) putFailure(key string, f outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[key] = f
}

// lookup returns a prior outcome for key, successful or not.
func (c *Cache) lookup(key string) (outcome, bool) {
	if l, ok := c.get(key); ok {
		return outcome{license: l}, true
	}
	return c.failed(key)
}

// Resolve returns the prior outcome for url or calls fn once per key, sharing the
// result with concurrent and later callers. Errors caused by the caller's own
// context being done are not remembered.
func (c *Cache) Resolve(ctx context.Context, url string, fn func(context.Context) (types.License, error)) (types.License, error) {
	key := CacheKey(url)
	if o, ok := c.lookup(key); ok {
		return o.license, o.err
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if o, ok := c.lookup(key); ok {
			return o.license, o.err
		}
		l, err := fn(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				c.putFailure(key, outcome{err: err})
			}
			return types.License{}, err
		case l.Resolved():
			c.put(key, l)
		default:
			c.putFailure(key, outcome{license: l})
		}
		return l, nil
	})
	if err != nil {
		return types.License{}, err
	}
	return v.(types.License), nil
}

// Len returns the number of resolved licenses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save writes the cache to its backing file when it changed. It is a no-op for in-memory caches.
func (c *Cache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.path == "" || !c.dirty {
		return nil
	}
	b, err := json.MarshalIndent(cacheFile{Version: cacheFormatVersion, Licenses: c.entries}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create license cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("failed to write license cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}
