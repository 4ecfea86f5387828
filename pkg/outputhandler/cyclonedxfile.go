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
	"fmt"
	"os"
	"path/filepath"

	"github.com/CycloneDX/cyclonedx-go"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
	"github.com/andreycha/cyclonedx-dotnet/pkg/bom"
)

type cycloneDxFileWriter struct {
	path   string
	format cyclonedx.BOMFileFormat
	b      *cyclonedx.BOM
	closed bool
}

// NewCycloneDXFileWriter writes the BOM to path on Close. Nothing is written when no
// BOM was handled.
func NewCycloneDXFileWriter(path string, format cyclonedx.BOMFileFormat) OutputHandler {
	return &cycloneDxFileWriter{path: path, format: format}
}

func (c *cycloneDxFileWriter) HandleBOM(b *cyclonedx.BOM) error {
	c.b = b
	return nil
}

func (c *cycloneDxFileWriter) HandleWarnings([]types.Warning) error {
	return nil
}

func (c *cycloneDxFileWriter) Close() error {
	if c.closed || c.b == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), "."+filepath.Base(c.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if err := bom.Encode(tmp, c.b, c.format); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	c.closed = true
	return nil
}
