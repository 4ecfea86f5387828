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

// Package license resolves package licenses from well-known URLs and from the GitHub
// license API, memoizing results per repository URL.
package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

const (
	DefaultGitHubAPI = "https://api.github.com"

	defaultRetryInterval = 10 * time.Second
	defaultMaxRetry      = 3
	noAssertion          = "NOASSERTION"
)

var (
	// ErrNotGitHub is returned for URLs that do not point at a GitHub repository.
	ErrNotGitHub = errors.New("not a GitHub repository URL")
	// ErrNoLicense is returned when GitHub detected no license for the repository.
	ErrNoLicense    = errors.New("no license detected")
	errUnauthorized = errors.New("credential rejected")
)

// GitHubOpts configures a GitHubClient.
type GitHubOpts struct {
	// BaseURL is the REST API root. Empty means api.github.com.
	BaseURL     string
	Credentials []Credential
	HTTPClient  *http.Client

	RetryInterval time.Duration
	MaxRetry      int
}

// GitHubClient resolves repository licenses through GET /repos/{owner}/{repo}/license.
type GitHubClient struct {
	o GitHubOpts
}

func NewGitHubClient(o GitHubOpts) *GitHubClient {
	if o.BaseURL == "" {
		o.BaseURL = DefaultGitHubAPI
	}
	if len(o.Credentials) == 0 {
		o.Credentials = []Credential{Anonymous{}}
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	if o.MaxRetry <= 0 {
		o.MaxRetry = defaultMaxRetry
	}
	return &GitHubClient{o: o}
}

type licenseResponse struct {
	HTMLURL string `json:"html_url"`
	License struct {
		SPDXID string `json:"spdx_id"`
		Name   string `json:"name"`
	} `json:"license"`
}

// License returns the license GitHub detected for the repository behind repoURL.
// Credentials are tried in order; a rejected credential falls through to the next one.
func (c *GitHubClient) License(ctx context.Context, repoURL string) (types.License, error) {
	ref, ok := ParseGitHubURL(repoURL)
	if !ok {
		return types.License{}, ErrNotGitHub
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/license", c.o.BaseURL, url.PathEscape(ref.Owner), url.PathEscape(ref.Repo))
	if ref.Ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref.Ref)
	}

	var lastErr error
	for _, cred := range c.o.Credentials {
		var res types.License
		err := RetryOnRateLimit(ctx, c.o.RetryInterval, c.o.MaxRetry, func(ctx context.Context) error {
			var err error
			res, err = c.fetch(ctx, endpoint, cred)
			return err
		})
		if errors.Is(err, errUnauthorized) {
			slog.DebugContext(ctx, "GitHub credential rejected, trying next", "credential", cred.Name())
			lastErr = err
			continue
		}
		return res, err
	}
	return types.License{}, fmt.Errorf("all GitHub credentials rejected: %w", lastErr)
}

func (c *GitHubClient) fetch(ctx context.Context, endpoint string, cred Credential) (types.License, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.License{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "cyclonedx-dotnet")
	cred.Authorize(req)

	resp, err := c.o.HTTPClient.Do(req)
	if err != nil {
		return types.License{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := checkRateLimit(resp); err != nil {
		return types.License{}, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return types.License{}, ErrNoLicense
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.License{}, errUnauthorized
	default:
		return types.License{}, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	var body licenseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.License{}, fmt.Errorf("invalid license response from %s: %w", endpoint, err)
	}
	id := body.License.SPDXID
	if id == "" || id == noAssertion {
		return types.License{}, ErrNoLicense
	}
	return types.License{Expression: id, URL: body.HTMLURL, Source: types.LicenseSourceRemote}, nil
}

// checkRateLimit reports 429 responses and 403 responses with an exhausted quota.
func checkRateLimit(resp *http.Response) error {
	exhausted := resp.Header.Get("X-RateLimit-Remaining") == "0"
	if resp.StatusCode != http.StatusTooManyRequests && !(resp.StatusCode == http.StatusForbidden && exhausted) {
		return nil
	}
	rl := &RateLimitError{StatusCode: resp.StatusCode}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.Reset = time.Unix(reset, 0)
	}
	return rl
}
