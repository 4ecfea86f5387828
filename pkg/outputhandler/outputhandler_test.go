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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

func testBOM() *cyclonedx.BOM {
	b := cyclonedx.NewBOM()
	b.Metadata = &cyclonedx.Metadata{Component: &cyclonedx.Component{BOMRef: "App@1.0.0", Type: cyclonedx.ComponentTypeApplication, Name: "App", Version: "1.0.0"}}
	b.Components = &[]cyclonedx.Component{{BOMRef: "pkg:nuget/X@1.0.0", Type: cyclonedx.ComponentTypeLibrary, Name: "X", Version: "1.0.0"}}
	b.Dependencies = &[]cyclonedx.Dependency{{Ref: "App@1.0.0", Dependencies: &[]string{"pkg:nuget/X@1.0.0"}}}
	return b
}

func TestCycloneDXFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "bom.json")
	h := NewCycloneDXFileWriter(path, cyclonedx.BOMFileFormatJSON)
	require.NoError(t, h.HandleBOM(testBOM()))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	var decoded cyclonedx.BOM
	require.NoError(t, cyclonedx.NewBOMDecoder(f, cyclonedx.BOMFileFormatJSON).Decode(&decoded))
	assert.Equal(t, "App", decoded.Metadata.Component.Name)
	require.NotNil(t, decoded.Components)
	assert.Len(t, *decoded.Components, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCycloneDXFileWriterNothingHandled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.xml")
	h := NewCycloneDXFileWriter(path, cyclonedx.BOMFileFormatXML)
	require.NoError(t, h.Close())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCycloneDXFileWriterRejectsInvalidBOM(t *testing.T) {
	b := testBOM()
	b.Dependencies = &[]cyclonedx.Dependency{{Ref: "App@1.0.0", Dependencies: &[]string{"pkg:nuget/Missing@1.0.0"}}}
	path := filepath.Join(t.TempDir(), "bom.json")
	h := NewCycloneDXFileWriter(path, cyclonedx.BOMFileFormatJSON)
	require.NoError(t, h.HandleBOM(b))
	assert.Error(t, h.Close())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWarningTable(t *testing.T) {
	var buf bytes.Buffer
	h := Multi(NewWarningTableOutputHandler(&buf), NewCycloneDXFileWriter(filepath.Join(t.TempDir(), "bom.json"), cyclonedx.BOMFileFormatJSON))
	require.NoError(t, h.HandleWarnings([]types.Warning{
		{Stage: "resolve", Unit: "Broken.csproj", Framework: "net8.0", Message: "restore timed out after 1s"},
	}))
	require.NoError(t, h.Close())
	out := buf.String()
	assert.Contains(t, out, "Broken.csproj")
	assert.Contains(t, out, "restore timed out after 1s")
	assert.Contains(t, out, "net8.0")
}

func TestWarningTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	h := NewWarningTableOutputHandler(&buf)
	require.NoError(t, h.Close())
	assert.Empty(t, buf.String())
}
