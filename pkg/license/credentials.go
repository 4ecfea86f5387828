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

import "net/http"

// Credential authorizes a request to the license host. Credentials are tried in
// the order returned by Credentials; an anonymous attempt always comes last.
type Credential interface {
	Name() string
	Authorize(req *http.Request)
}

// BearerToken sends an OAuth or fine-grained token as a bearer token.
type BearerToken string

func (BearerToken) Name() string { return "bearer" }

func (t BearerToken) Authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+string(t))
}

// BasicAuth sends a username and personal access token.
type BasicAuth struct {
	Username string
	Token    string
}

func (BasicAuth) Name() string { return "basic" }

func (b BasicAuth) Authorize(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Token)
}

type Anonymous struct{}

func (Anonymous) Name() string { return "anonymous" }

func (Anonymous) Authorize(*http.Request) {}

// Credentials builds the ordered strategy list: bearer token, then username and
// token, then anonymous. Strategies without their inputs are left out.
func Credentials(username, token, bearerToken string) []Credential {
	var out []Credential
	if bearerToken != "" {
		out = append(out, BearerToken(bearerToken))
	}
	if username != "" && token != "" {
		out = append(out, BasicAuth{Username: username, Token: token})
	}
	return append(out, Anonymous{})
}
