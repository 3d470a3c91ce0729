// SPDX-License-Identifier: MPL-2.0

package puller

import (
	"encoding/xml"
	"os"
)

const (
	// ConfigFileName is the engine configuration written into the pull directory.
	ConfigFileName = "nuget.config"
	// ProjectFileName is the restore project written into the pull directory.
	ProjectFileName = "spec.csproj"
	// PackagesDirName is the subdirectory packages are installed into.
	PackagesDirName = "packages"
	// AssetsFileName is the lock document the engine writes under obj/.
	AssetsFileName = "project.assets.json"
	// ObjDirName is the engine's intermediate output directory.
	ObjDirName = "obj"
)

type (
	xmlClear struct{}

	xmlAdd struct {
		Key   string `xml:"key,attr"`
		Value string `xml:"value,attr"`
	}

	xmlPackageSources struct {
		Clear xmlClear `xml:"clear"`
		Add   []xmlAdd `xml:"add"`
	}

	xmlPattern struct {
		Pattern string `xml:"pattern,attr"`
	}

	xmlMappedSource struct {
		Key      string       `xml:"key,attr"`
		Packages []xmlPattern `xml:"package"`
	}

	xmlSourceMapping struct {
		Clear   xmlClear          `xml:"clear"`
		Sources []xmlMappedSource `xml:"packageSource"`
	}

	xmlDisabledSources struct {
		Clear xmlClear `xml:"clear"`
	}

	nugetConfig struct {
		XMLName        xml.Name           `xml:"configuration"`
		PackageSources xmlPackageSources  `xml:"packageSources"`
		SourceMapping  *xmlSourceMapping  `xml:"packageSourceMapping,omitempty"`
		Disabled       xmlDisabledSources `xml:"disabledPackageSources"`
	}

	xmlPackageReference struct {
		Include string `xml:"Include,attr"`
		Version string `xml:"Version,attr"`
	}

	xmlPropertyGroup struct {
		TargetFramework     string `xml:"TargetFramework"`
		RestorePackagesPath string `xml:"RestorePackagesPath"`
		NuGetAudit          string `xml:"NuGetAudit"`
	}

	xmlItemGroup struct {
		References []xmlPackageReference `xml:"PackageReference"`
	}

	restoreProject struct {
		XMLName xml.Name         `xml:"Project"`
		Sdk     string           `xml:"Sdk,attr"`
		Props   xmlPropertyGroup `xml:"PropertyGroup"`
		Items   xmlItemGroup     `xml:"ItemGroup"`
	}
)

// renderNuGetConfig produces the engine configuration for s: every source
// registered after a clear, a source mapping section only when some source
// declares patterns, and an emptied disabled-sources list so nothing
// inherited from machine-wide configuration disables a declared feed.
func renderNuGetConfig(s Spec) ([]byte, error) {
	cfg := nugetConfig{}
	for _, src := range s.Sources {
		cfg.PackageSources.Add = append(cfg.PackageSources.Add, xmlAdd{Key: src.Name, Value: src.URI})
	}
	if s.HasMappings() {
		cfg.SourceMapping = &xmlSourceMapping{}
		for _, src := range s.Sources {
			if len(src.Patterns) == 0 {
				continue
			}
			mapped := xmlMappedSource{Key: src.Name}
			for _, p := range src.Patterns {
				mapped.Packages = append(mapped.Packages, xmlPattern{Pattern: p})
			}
			cfg.SourceMapping.Sources = append(cfg.SourceMapping.Sources, mapped)
		}
	}
	return marshalXML(cfg)
}

// renderProject produces the restore project referencing every requested
// package for the target framework.
func renderProject(s Spec, packagesDir string) ([]byte, error) {
	proj := restoreProject{
		Sdk: "Microsoft.NET.Sdk",
		Props: xmlPropertyGroup{
			TargetFramework:     s.Framework.String(),
			RestorePackagesPath: packagesDir,
			NuGetAudit:          "false",
		},
	}
	for _, p := range s.Packages {
		proj.Items.References = append(proj.Items.References, xmlPackageReference{Include: p.ID, Version: p.Version})
	}
	return marshalXML(proj)
}

func marshalXML(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}

func writeGenerated(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &DirectoryError{Op: "write", Path: path, Err: err}
	}
	return nil
}
