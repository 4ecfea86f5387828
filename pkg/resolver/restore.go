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

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// RestoreRequest describes one restore invocation.
type RestoreRequest struct {
	ProjectPath                string
	Runtime                    string
	BaseIntermediateOutputPath string
}

// Restorer materializes resolution data (project.assets.json) for a project.
// Implementations must honor ctx cancellation.
type Restorer interface {
	Restore(ctx context.Context, req RestoreRequest) error
}

// DotnetRestorer runs `dotnet restore`.
type DotnetRestorer struct {
	// Command defaults to "dotnet".
	Command string
}

// maxRestoreOutput bounds the restore output quoted in errors.
const maxRestoreOutput = 2048

func (d *DotnetRestorer) Restore(ctx context.Context, req RestoreRequest) error {
	command := d.Command
	if command == "" {
		command = "dotnet"
	}
	args := []string{"restore", req.ProjectPath}
	if req.Runtime != "" {
		args = append(args, "--runtime", req.Runtime)
	}
	if req.BaseIntermediateOutputPath != "" {
		args = append(args, "-p:BaseIntermediateOutputPath="+ensureTrailingSeparator(req.BaseIntermediateOutputPath))
	}

	slog.DebugContext(ctx, "Running restore", "command", command, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, command, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s restore interrupted: %w", command, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s restore exited with code %d: %s", command, exitErr.ExitCode(), tail(out.String(), maxRestoreOutput))
		}
		return fmt.Errorf("%s restore failed: %w", command, err)
	}
	return nil
}

func ensureTrailingSeparator(p string) string {
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`) {
		return p
	}
	return p + "/"
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
