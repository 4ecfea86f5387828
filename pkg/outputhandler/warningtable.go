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

package outputhandler

import (
	"io"
	"os"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

type warningTableOutputHandler struct {
	w io.Writer
	r []types.Warning
}

// NewWarningTableOutputHandler renders the run warnings as a table on Close.
func NewWarningTableOutputHandler(w io.Writer) OutputHandler {
	if w == nil {
		w = os.Stderr
	}
	return &warningTableOutputHandler{w: w}
}

func (h *warningTableOutputHandler) HandleBOM(*cyclonedx.BOM) error {
	return nil
}

func (h *warningTableOutputHandler) HandleWarnings(ws []types.Warning) error {
	h.r = append(h.r, ws...)
	return nil
}

func (h *warningTableOutputHandler) Close() error {
	if len(h.r) == 0 {
		return nil
	}

	t := table.New(h.w)
	t.SetHeaders("Stage", "Unit", "Framework", "Runtime", "Message")
	for _, r := range h.r {
		t.AddRow(
			colorStage(r.Stage),
			orDash(r.Unit),
			orDash(r.Framework),
			orDash(r.Runtime),
			r.Message,
		)
	}
	t.Render()
	h.r = nil
	return nil
}

func colorStage(stage string) string {
	switch stage {
	case "resolve":
		return tml.Sprintf("<red>resolve</red>")
	case "locate":
		return tml.Sprintf("<yellow>locate</yellow>")
	default:
		return stage
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
