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
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
)

// HashAlgorithm is the CycloneDX name of the digest computed for packages.
const HashAlgorithm = "SHA-512"

// HashCache memoizes artifact digests by file path for the lifetime of a run.
type HashCache struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewHashCache() *HashCache {
	return &HashCache{hashes: map[string]string{}}
}

// Sum returns the hex SHA-512 digest of the file at path.
func (h *HashCache) Sum(path string) (string, error) {
	h.mu.Lock()
	v, ok := h.hashes[path]
	h.mu.Unlock()
	if ok {
		return v, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck
	d := sha512.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	v = hex.EncodeToString(d.Sum(nil))
	h.mu.Lock()
	h.hashes[path] = v
	h.mu.Unlock()
	return v, nil
}

// sha512FromBase64 converts the base64 digest recorded by restore to hex.
func sha512FromBase64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	if len(b) != sha512.Size {
		return "", fmt.Errorf("unexpected digest length %d", len(b))
	}
	return hex.EncodeToString(b), nil
}
