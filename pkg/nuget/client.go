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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultServiceIndex is the nuget.org v3 service index.
	DefaultServiceIndex = "https://api.nuget.org/v3/index.json"

	packageBaseAddressType = "PackageBaseAddress/3.0.0"
	apiKeyHeader           = "X-NuGet-ApiKey"
	defaultHTTPTimeout     = 30 * time.Second
)

// ErrPackageNotFound is returned when the feed has no such package version.
var ErrPackageNotFound = errors.New("package not found in feed")

// ClientOpts configures a remote feed client.
type ClientOpts struct {
	// ServiceIndex is the v3 index.json URL. Empty means nuget.org.
	ServiceIndex string
	Username     string
	Password     string
	// PasswordClearText sends Username/Password as basic auth. Otherwise the
	// password is sent as an API key header.
	PasswordClearText bool
	HTTPClient        *http.Client
	UserAgent         string
}

// Client fetches package manifests from a NuGet v3 feed.
type Client struct {
	o ClientOpts

	baseMu  sync.Mutex
	baseURL string
}

func NewClient(o ClientOpts) *Client {
	if o.ServiceIndex == "" {
		o.ServiceIndex = DefaultServiceIndex
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if o.UserAgent == "" {
		o.UserAgent = "cyclonedx-dotnet"
	}
	return &Client{o: o}
}

type serviceIndex struct {
	Resources []struct {
		ID   string `json:"@id"`
		Type string `json:"@type"`
	} `json:"resources"`
}

// packageBaseAddress reads the flat container address from the service index. Only a
// successful read is kept; the index is fetched outside the caller's cancellation so
// one expired unit deadline does not fail the lookup for everyone else.
func (c *Client) packageBaseAddress(ctx context.Context) (string, error) {
	c.baseMu.Lock()
	defer c.baseMu.Unlock()
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	body, err := c.get(context.WithoutCancel(ctx), c.o.ServiceIndex)
	if err != nil {
		return "", fmt.Errorf("failed to read service index %s: %w", c.o.ServiceIndex, err)
	}
	defer body.Close() //nolint:errcheck
	var idx serviceIndex
	if err := json.NewDecoder(body).Decode(&idx); err != nil {
		return "", fmt.Errorf("invalid service index %s: %w", c.o.ServiceIndex, err)
	}
	for _, r := range idx.Resources {
		if r.Type == packageBaseAddressType {
			c.baseURL = strings.TrimSuffix(r.ID, "/") + "/"
			return c.baseURL, nil
		}
	}
	return "", fmt.Errorf("service index %s has no %s resource", c.o.ServiceIndex, packageBaseAddressType)
}

// FetchNuspec downloads the nuspec of id/version from the feed.
func (c *Client) FetchNuspec(ctx context.Context, id, version string) (*Nuspec, error) {
	base, err := c.packageBaseAddress(ctx)
	if err != nil {
		return nil, err
	}
	lid, lver := strings.ToLower(id), strings.ToLower(version)
	body, err := c.get(ctx, base+lid+"/"+lver+"/"+lid+".nuspec")
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return ParseNuspec(body)
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.o.UserAgent)
	if c.o.Username != "" || c.o.Password != "" {
		if c.o.PasswordClearText {
			req.SetBasicAuth(c.o.Username, c.o.Password)
		} else {
			req.Header.Set(apiKeyHeader, c.o.Password)
		}
	}
	resp, err := c.o.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close() //nolint:errcheck
		return nil, ErrPackageNotFound
	case resp.StatusCode >= 300:
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}
