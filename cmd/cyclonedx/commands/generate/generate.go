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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/andreycha/cyclonedx-dotnet/cmd/cyclonedx/version"
	"github.com/andreycha/cyclonedx-dotnet/pkg/bom"
	"github.com/andreycha/cyclonedx-dotnet/pkg/envutil"
	"github.com/andreycha/cyclonedx-dotnet/pkg/generator"
	"github.com/andreycha/cyclonedx-dotnet/pkg/license"
	"github.com/andreycha/cyclonedx-dotnet/pkg/nuget"
	"github.com/andreycha/cyclonedx-dotnet/pkg/outputhandler"
	"github.com/andreycha/cyclonedx-dotnet/pkg/resolver"
	"github.com/andreycha/cyclonedx-dotnet/pkg/runconfig"
)

// envNames lists the flags that take their default from the environment.
var envNames = map[string]string{
	"github-username":     "GITHUB_USERNAME",
	"github-token":        "GITHUB_TOKEN",
	"github-bearer-token": "GITHUB_BEARER_TOKEN",
	"config-file":         "CYCLONEDX_CONFIG",
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "generate PATH",
		Short:                 "Generate a CycloneDX BOM",
		Long:                  "Generate a CycloneDX BOM for a .NET project, solution, packages.config file or a directory of packages.config files.",
		Example:               Example(),
		Args:                  cobra.ExactArgs(1),
		RunE:                  action,
		DisableFlagsInUseLine: true,
	}

	flags := cmd.Flags()
	flags.String("framework", "", "Target framework to resolve (e.g. net8.0); all frameworks when empty")
	flags.String("runtime", "", "Runtime identifier to resolve (e.g. linux-x64); all runtimes when empty")
	flags.StringP("output", "o", ".", "Output directory")
	flags.StringP("filename", "f", "", "Output filename (default bom.xml, or bom.json with --json)")
	flags.BoolP("json", "j", false, "Produce a JSON BOM instead of XML")
	flags.BoolP("exclude-dev", "d", false, "Exclude development dependencies")
	flags.BoolP("exclude-test-projects", "t", false, "Exclude test projects")
	flags.StringP("url", "u", "", "Alternative NuGet service index URL used to look up package metadata")
	flags.String("baseUrlUsername", "", "Username for the alternative NuGet feed")
	flags.String("baseUrlUserPassword", "", "Password or API key for the alternative NuGet feed")
	flags.Bool("isBaseUrlPasswordClearText", false, "Send the feed password with basic authentication instead of as an API key")
	flags.BoolP("recursive", "r", false, "Follow project references of a single project file")
	flags.Bool("no-serial-number", false, "Omit the serial number from the BOM")
	flags.String("github-username", envutil.String("GITHUB_USERNAME", ""), "GitHub username for license resolution [$GITHUB_USERNAME]")
	flags.String("github-token", envutil.String("GITHUB_TOKEN", ""), "GitHub personal access token for license resolution [$GITHUB_TOKEN]")
	flags.String("github-bearer-token", envutil.String("GITHUB_BEARER_TOKEN", ""), "GitHub bearer token for license resolution [$GITHUB_BEARER_TOKEN]")
	flags.Bool("disable-github-licenses", false, "Do not resolve licenses through GitHub")
	flags.Bool("disable-package-restore", false, "Only use existing restore output")
	flags.Bool("disable-hash-computation", false, "Do not compute package hashes")
	flags.Int("dotnet-command-timeout", int(resolver.DefaultTimeout/time.Millisecond), "Timeout of each restore in milliseconds")
	flags.String("base-intermediate-output-path", "", "Base intermediate output path of the projects (obj folder root)")
	flags.String("import-metadata-path", "", "CycloneDX document whose metadata is used as a template")
	flags.String("set-name", "", "Override the name of the metadata component")
	flags.String("set-version", "", "Override the version of the metadata component")
	flags.String("set-type", "", fmt.Sprintf("Override the type of the metadata component (%s)", strings.Join(bom.ComponentTypeNames(), ", ")))
	flags.Bool("include-project-references", false, "Add project references as components instead of resolving through them")
	flags.String("config-file", envutil.String("CYCLONEDX_CONFIG", ""), "YAML file with option defaults [$CYCLONEDX_CONFIG]")
	flags.String("license-cache", "", "JSON file persisting resolved licenses between runs")
	flags.Int("parallelism", runtime.NumCPU(), "Maximum number of concurrent restores and lookups")

	for _, short := range []string{"filename", "exclude-dev", "recursive"} {
		_ = flags.MarkShorthandDeprecated(short, fmt.Sprintf("use --%s instead", short))
	}

	return cmd
}

func Example() string {
	return "cyclonedx generate --json --exclude-dev --output build/sbom MySolution.sln"
}

func action(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	if configPath, _ := flags.GetString("config-file"); configPath != "" {
		cfg, err := runconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %q: %w", configPath, err)
		}
		// Inherited flags such as --debug take effect before the config is read.
		if err := cfg.Apply(cmd.LocalFlags(), envNames); err != nil {
			return err
		}
		slog.DebugContext(ctx, "Config loaded", "path", configPath, "options", len(cfg.Options))
	}

	var o generator.Opts
	o.Path = args[0]
	o.Scope.Framework, _ = flags.GetString("framework")
	o.Scope.Runtime, _ = flags.GetString("runtime")
	o.Recursive, _ = flags.GetBool("recursive")
	o.ExcludeDev, _ = flags.GetBool("exclude-dev")
	o.ExcludeTestProjects, _ = flags.GetBool("exclude-test-projects")
	o.IncludeProjectReferences, _ = flags.GetBool("include-project-references")
	o.DisableRestore, _ = flags.GetBool("disable-package-restore")
	o.DisableHashComputation, _ = flags.GetBool("disable-hash-computation")
	o.BaseIntermediateOutputPath, _ = flags.GetString("base-intermediate-output-path")
	o.Parallelism, _ = flags.GetInt("parallelism")
	timeoutMs, _ := flags.GetInt("dotnet-command-timeout")
	o.Timeout = time.Duration(timeoutMs) * time.Millisecond

	feedURL, _ := flags.GetString("url")
	feedUser, _ := flags.GetString("baseUrlUsername")
	feedPassword, _ := flags.GetString("baseUrlUserPassword")
	clearText, _ := flags.GetBool("isBaseUrlPasswordClearText")
	repo, err := nuget.NewRepository(nuget.RepositoryOpts{
		Remote: nuget.NewClient(nuget.ClientOpts{
			ServiceIndex:      feedURL,
			Username:          feedUser,
			Password:          feedPassword,
			PasswordClearText: clearText,
			UserAgent:         "cyclonedx-dotnet/" + version.GetVersion(),
		}),
	})
	if err != nil {
		return err
	}
	o.Packages = repo

	if cachePath, _ := flags.GetString("license-cache"); cachePath != "" {
		o.Licenses, err = license.OpenCache(ctx, cachePath)
		if err != nil {
			return err
		}
	}
	if disabled, _ := flags.GetBool("disable-github-licenses"); !disabled {
		username, _ := flags.GetString("github-username")
		token, _ := flags.GetString("github-token")
		bearer, _ := flags.GetString("github-bearer-token")
		o.RemoteLicenses = license.NewGitHubClient(license.GitHubOpts{
			Credentials: license.Credentials(username, token, bearer),
		})
	}

	if o.BOM, err = bomOpts(flags); err != nil {
		return err
	}

	g, err := generator.New(o)
	if err != nil {
		return err
	}

	jsonOutput, _ := flags.GetBool("json")
	format := bom.Format(jsonOutput)
	outputDir, _ := flags.GetString("output")
	filename, _ := flags.GetString("filename")
	if filename == "" {
		filename = bom.DefaultFilename(format)
	}
	outputPath := filepath.Join(outputDir, filename)

	h := outputhandler.Multi(
		outputhandler.NewWarningTableOutputHandler(os.Stderr),
		outputhandler.NewCycloneDXFileWriter(outputPath, format),
	)

	res, genErr := g.Generate(ctx)
	if res != nil {
		if err := h.HandleWarnings(res.Warnings); err != nil {
			return err
		}
		if res.BOM != nil && genErr == nil {
			if err := h.HandleBOM(res.BOM); err != nil {
				return err
			}
		}
	}
	if err := h.Close(); err != nil {
		return errors.Join(genErr, err)
	}
	if genErr != nil {
		return genErr
	}
	slog.InfoContext(ctx, "BOM written", "path", outputPath, "components", len(*res.BOM.Components), "warnings", len(res.Warnings))
	return nil
}

func bomOpts(flags *pflag.FlagSet) (bom.Opts, error) {
	var bo bom.Opts
	bo.NoSerialNumber, _ = flags.GetBool("no-serial-number")
	bo.SetName, _ = flags.GetString("set-name")
	bo.SetVersion, _ = flags.GetString("set-version")
	bo.ToolVersion = version.GetVersion()

	setType, _ := flags.GetString("set-type")
	t, err := bom.ParseComponentType(setType)
	if err != nil {
		return bo, err
	}
	bo.SetType = t

	if templatePath, _ := flags.GetString("import-metadata-path"); templatePath != "" {
		md, err := bom.ReadTemplate(templatePath)
		if err != nil {
			return bo, err
		}
		bo.Template = md
	}
	return bo, nil
}
