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

package generate

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/CycloneDX/cyclonedx-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const assets = `{
  "version": 3,
  "targets": {"net8.0": {"Serilog/3.1.1": {"type": "package"}}},
  "libraries": {"Serilog/3.1.1": {"type": "package", "path": "serilog/3.1.1"}},
  "project": {
    "version": "1.0.0",
    "restore": {"projectName": "App"},
    "frameworks": {"net8.0": {"dependencies": {"Serilog": {"target": "Package", "version": "[3.1.1, )"}}}}
  }
}`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "obj"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "obj", "project.assets.json"), []byte(assets), 0o644))
	p := filepath.Join(dir, "App.csproj")
	require.NoError(t, os.WriteFile(p, []byte(`<Project Sdk="Microsoft.NET.Sdk"><PropertyGroup><TargetFramework>net8.0</TargetFramework></PropertyGroup></Project>`), 0o644))
	return p
}

func TestGenerateCommand(t *testing.T) {
	feed := httptest.NewServer(http.NotFoundHandler())
	defer feed.Close()
	t.Setenv("NUGET_PACKAGES", t.TempDir())

	project := writeProject(t)
	out := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "cyclonedx.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("set-name: FromConfig\nno-serial-number: true\n"), 0o644))

	cmd := New()
	cmd.SetArgs([]string{
		project,
		"--disable-package-restore",
		"--disable-github-licenses",
		"--json",
		"--output", out,
		"--url", feed.URL + "/v3/index.json",
		"--set-version", "2.0.0",
		"--config-file", cfg,
	})
	require.NoError(t, cmd.Execute())

	f, err := os.Open(filepath.Join(out, "bom.json"))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	var b cyclonedx.BOM
	require.NoError(t, cyclonedx.NewBOMDecoder(f, cyclonedx.BOMFileFormatJSON).Decode(&b))
	assert.Empty(t, b.SerialNumber)
	assert.Equal(t, "FromConfig", b.Metadata.Component.Name)
	assert.Equal(t, "2.0.0", b.Metadata.Component.Version)
	require.NotNil(t, b.Components)
	require.Len(t, *b.Components, 1)
	assert.Equal(t, "pkg:nuget/Serilog@3.1.1", (*b.Components)[0].PackageURL)
}

func TestGenerateCommandNoOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "App.csproj")
	require.NoError(t, os.WriteFile(project, []byte(`<Project Sdk="Microsoft.NET.Sdk" />`), 0o644))
	out := t.TempDir()

	cmd := New()
	cmd.SetArgs([]string{project, "--disable-package-restore", "--disable-github-licenses", "--output", out})
	assert.Error(t, cmd.Execute())
	_, err := os.Stat(filepath.Join(out, "bom.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateCommandConfigRejectsInheritedFlags(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "cyclonedx.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("debug: true\n"), 0o644))
	out := t.TempDir()

	root := &cobra.Command{Use: "cyclonedx", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("debug", false, "debug mode")
	root.AddCommand(New())
	root.SetArgs([]string{"generate", writeProject(t), "--disable-package-restore", "--disable-github-licenses",
		"--output", out, "--config-file", cfg})
	assert.ErrorContains(t, root.Execute(), `unknown option "debug"`)
	_, err := os.Stat(filepath.Join(out, "bom.xml"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateCommandInvalidSetType(t *testing.T) {
	cmd := New()
	cmd.SetArgs([]string{writeProject(t), "--set-type", "spaceship", "--disable-package-restore"})
	assert.ErrorContains(t, cmd.Execute(), "unknown component type")
}
