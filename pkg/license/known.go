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
	"net/url"
	"path"
	"strings"
)

const nugetLicensesHost = "licenses.nuget.org"

// knownURLs maps license URLs commonly found in <licenseUrl> to SPDX identifiers.
var knownURLs = map[string]string{
	"apache.org/licenses/license-2.0":         "Apache-2.0",
	"apache.org/licenses/license-2.0.txt":     "Apache-2.0",
	"apache.org/licenses/license-2.0.html":    "Apache-2.0",
	"opensource.org/licenses/mit":             "MIT",
	"opensource.org/licenses/mit-license.php": "MIT",
	"opensource.org/licenses/apache-2.0":      "Apache-2.0",
	"opensource.org/licenses/bsd-2-clause":    "BSD-2-Clause",
	"opensource.org/licenses/bsd-3-clause":    "BSD-3-Clause",
	"opensource.org/licenses/ms-pl":           "MS-PL",
	"opensource.org/licenses/lgpl-2.1":        "LGPL-2.1-only",
	"opensource.org/licenses/mpl-2.0":         "MPL-2.0",
	"gnu.org/licenses/gpl-3.0.html":           "GPL-3.0-only",
	"gnu.org/licenses/lgpl-3.0.html":          "LGPL-3.0-only",
	"mit-license.org":                         "MIT",
}

// FromURL maps a license URL to an SPDX expression. licenses.nuget.org URLs carry
// the expression in their path.
func FromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if host == nugetLicensesHost {
		expr, err := url.PathUnescape(strings.Trim(u.Path, "/"))
		if err != nil || expr == "" {
			return "", false
		}
		return expr, true
	}
	k := strings.TrimPrefix(host, "www.")
	if p := strings.ToLower(strings.TrimSuffix(u.Path, "/")); p != "" {
		k += p
	}
	id, ok := knownURLs[k]
	return id, ok
}

// RepoRef identifies a GitHub repository and, optionally, a git ref within it.
type RepoRef struct {
	Owner string
	Repo  string
	Ref   string
}

// ParseGitHubURL recognizes repository, blob, tree and raw content URLs on GitHub.
func ParseGitHubURL(raw string) (RepoRef, bool) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "git@github.com:"); ok {
		raw = "https://github.com/" + rest
	}
	u, err := url.Parse(raw)
	if err != nil {
		return RepoRef{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return RepoRef{}, false
	}
	ref := RepoRef{Owner: parts[0], Repo: strings.TrimSuffix(parts[1], ".git")}
	switch host {
	case "github.com":
		if len(parts) >= 4 && (parts[2] == "blob" || parts[2] == "tree" || parts[2] == "raw") {
			ref.Ref = parts[3]
		}
	case "raw.githubusercontent.com":
		if len(parts) >= 3 {
			ref.Ref = parts[2]
		}
	default:
		return RepoRef{}, false
	}
	if ref.Owner == "" || ref.Repo == "" {
		return RepoRef{}, false
	}
	return ref, true
}

// CacheKey normalizes a repository or license URL for cache lookups.
func CacheKey(raw string) string {
	if ref, ok := ParseGitHubURL(raw); ok {
		k := "github.com/" + strings.ToLower(ref.Owner) + "/" + strings.ToLower(ref.Repo)
		if ref.Ref != "" {
			k = path.Join(k, ref.Ref)
		}
		return k
	}
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "/")
}
