// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	ConfigurationInvalidId Id = iota + 1
	DirectoryPreparationFailedId
	RestoreFailedId
	EngineNotFoundId
	AssetsParseFailedId
	ModuleNotFoundId
	InvalidModuleFormatId
	ContextUnloadingId
	UnsupportedOperationId
	IncompatibleContextId
	NotPulledId
	PullfileNotFoundId
	PullfileParseErrorId
	ConfigLoadFailedId
	PermissionDeniedId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style
// at stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if links := append(i.DocLinks(), i.extLinks...); len(links) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range links {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configurationInvalidIssue = &Issue{
		id: ConfigurationInvalidId,
		mdMsg: `
# Invalid pull declaration!

A package, source, framework or directory in the pull declaration was rejected.

## Things you can try:
- Give every package a non-empty id and a NuGet version or range:
~~~cue
packages: [{id: "Humanizer.Core", version: "2.14.1"}]
~~~
- Use each source name and URI only once
- Quote ranges exactly: ` + "`[1.0.0, 2.0.0)`" + `, ` + "`[1.2.3]`" + `, or a bare minimum version`,
		docLinks: []HttpLink{"https://learn.microsoft.com/nuget/concepts/package-versioning"},
	}

	directoryPreparationFailedIssue = &Issue{
		id: DirectoryPreparationFailedId,
		mdMsg: `
# Could not prepare the pull directory!

pullpkg clears the pull directory on every pull and writes nuget.config,
spec.csproj and a packages folder into it.

## Things you can try:
- Make sure the directory is not a file and is writable
- Close programs holding files open inside it
- Point the pull at a dedicated directory:
~~~
$ pullpkg pull --directory ./.pullpkg
~~~`,
	}

	restoreFailedIssue = &Issue{
		id: RestoreFailedId,
		mdMsg: `
# Package restore failed!

The restore engine reported an unsuccessful run. Its diagnostics are listed above.

## Things you can try:
- Check that every package id and version exists on the declared sources
- Check the source URIs and their credentials
- Inspect the generated files in the pull directory and rerun the engine by hand
- Run with verbose mode to stream the engine output:
~~~
$ pullpkg --verbose pull
~~~`,
	}

	engineNotFoundIssue = &Issue{
		id: EngineNotFoundId,
		mdMsg: `
# Restore engine not found!

The configured engine command could not be started.

## Things you can try:
- Install the .NET SDK so that ` + "`dotnet`" + ` is on your PATH
- Or configure another engine command:
~~~cue
engine: command: "my-restore $PULLPKG_PROJECT --configfile $PULLPKG_CONFIG"
~~~`,
		extLinks: []HttpLink{"https://dotnet.microsoft.com/download"},
	}

	assetsParseFailedIssue = &Issue{
		id: AssetsParseFailedId,
		mdMsg: `
# Could not read the lock document!

project.assets.json is missing, is not JSON, or has no section for the target framework.

## Things you can try:
- Check that the framework in your pull file matches a restored target
- Inspect the document:
~~~
$ pullpkg inspect obj/project.assets.json --framework net8.0
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Module not found!

No pulled package provides a module with that name and version, and the host
fallback paths do not contain it either.

## Things you can try:
- List the resolvable modules:
~~~
$ pullpkg resolve obj/project.assets.json <module>
~~~
- Relax the version constraint
- Add a directory to ` + "`fallback.paths`" + ` in your configuration`,
	}

	invalidModuleFormatIssue = &Issue{
		id: InvalidModuleFormatId,
		mdMsg: `
# Not a loadable module!

The file exists but is neither a PE, ELF or Mach-O image nor a WebAssembly module.

## Things you can try:
- Make sure the package ships binaries for your target framework
- Re-pull to replace a truncated download`,
	}

	contextUnloadingIssue = &Issue{
		id: ContextUnloadingId,
		mdMsg: `
# Loading context is unloading!

Unload was requested for this context, so it no longer serves modules.

## Things you can try:
- Create a new context for further loads
- Release handles before requesting an unload`,
	}

	unsupportedOperationIssue = &Issue{
		id: UnsupportedOperationId,
		mdMsg: `
# Context cannot be unloaded!

Only collectible contexts can be unloaded.

## Things you can try:
- Load with the collectible option:
~~~
$ pullpkg load --collectible
~~~`,
	}

	incompatibleContextIssue = &Issue{
		id: IncompatibleContextId,
		mdMsg: `
# Incompatible loading context!

Packages can only be loaded into contexts created by the same puller.`,
	}

	notPulledIssue = &Issue{
		id: NotPulledId,
		mdMsg: `
# Nothing pulled yet!

Modules can only be loaded after a successful pull.

## Things you can try:
~~~
$ pullpkg pull
~~~`,
	}

	pullfileNotFoundIssue = &Issue{
		id: PullfileNotFoundId,
		mdMsg: `
# No pull file found!

pullpkg looks for pullfile.cue, then pullfile.toml, in the current directory.

## Things you can try:
- Create one:
~~~cue
framework: "net8.0"
directory: ".pullpkg"
packages: [{id: "Humanizer.Core", version: "2.14.1"}]
sources: [{name: "nuget", uri: "https://api.nuget.org/v3/index.json"}]
~~~
- Or pass its path:
~~~
$ pullpkg pull path/to/pullfile.toml
~~~`,
	}

	pullfileParseErrorIssue = &Issue{
		id: PullfileParseErrorId,
		mdMsg: `
# Failed to parse the pull file!

## Common issues:
- Invalid CUE or TOML syntax
- Unknown field names
- A package without id or version

## Things you can try:
- Check the error message above for the offending field
- Validate CUE files with the cue command-line tool`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the file reported above for syntax errors
- Print the effective configuration:
~~~
$ pullpkg config show
~~~
- Regenerate a default file:
~~~
$ pullpkg config init
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

pullpkg could not access a file or directory it needs.

## Things you can try:
- Check the permissions of the pull directory and the module files
- Avoid running pulls in system directories`,
	}

	issues = map[Id]*Issue{
		configurationInvalidIssue.Id():       configurationInvalidIssue,
		directoryPreparationFailedIssue.Id(): directoryPreparationFailedIssue,
		restoreFailedIssue.Id():              restoreFailedIssue,
		engineNotFoundIssue.Id():             engineNotFoundIssue,
		assetsParseFailedIssue.Id():          assetsParseFailedIssue,
		moduleNotFoundIssue.Id():             moduleNotFoundIssue,
		invalidModuleFormatIssue.Id():        invalidModuleFormatIssue,
		contextUnloadingIssue.Id():           contextUnloadingIssue,
		unsupportedOperationIssue.Id():       unsupportedOperationIssue,
		incompatibleContextIssue.Id():        incompatibleContextIssue,
		notPulledIssue.Id():                  notPulledIssue,
		pullfileNotFoundIssue.Id():           pullfileNotFoundIssue,
		pullfileParseErrorIssue.Id():         pullfileParseErrorIssue,
		configLoadFailedIssue.Id():           configLoadFailedIssue,
		permissionDeniedIssue.Id():           permissionDeniedIssue,
	}
)

// Values returns every catalogued issue ordered by id.
func Values() []*Issue {
	out := slices.Collect(maps.Values(issues))
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
