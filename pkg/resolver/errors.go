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

package resolver

import "fmt"

// ResolutionError records a failed resolution of one unit. It is reported, not fatal to the run.
type ResolutionError struct {
	Unit      string
	Framework string
	Runtime   string
	Err       error
}

func (e *ResolutionError) Error() string {
	where := e.Unit
	if e.Framework != "" {
		where += " [" + e.Framework
		if e.Runtime != "" {
			where += "/" + e.Runtime
		}
		where += "]"
	} else if e.Runtime != "" {
		where += " [" + e.Runtime + "]"
	}
	return fmt.Sprintf("failed to resolve %s: %v", where, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// MissingResolutionDataError is returned when restore is disabled and no assets data exists for a unit.
type MissingResolutionDataError struct {
	Unit string
	Path string
}

func (e *MissingResolutionDataError) Error() string {
	return fmt.Sprintf("no resolution data for %s (expected %s); run a package restore or drop --disable-package-restore", e.Unit, e.Path)
}
