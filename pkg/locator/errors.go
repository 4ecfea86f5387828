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

package locator

import "fmt"

// NotFoundError is returned when the path does not exist or holds nothing to analyze.
type NotFoundError struct {
	Path   string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: not found", e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// AmbiguousInputError is returned when the path and the flags contradict each other.
type AmbiguousInputError struct {
	Path   string
	Reason string
}

func (e *AmbiguousInputError) Error() string {
	return fmt.Sprintf("%s: ambiguous input: %s", e.Path, e.Reason)
}
