// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

const (
	ManifestNotFoundId Id = iota + 1
	ManifestParseErrorId
	ModuleNotFoundId
	VersionMismatchId
	DependencyCycleId
	ConfigLoadFailedId
	ArchiveUnreadableId
	PackFailedId
	PermissionDeniedId
	FileNotFoundId
)

type (
	// Id identifies a catalog entry.
	Id int

	// MarkdownMsg is Markdown guidance rendered for the user.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry with remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
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

// Render renders the guidance with the named glamour style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			md += "\n- <" + string(link) + ">"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	manifestNotFoundIssue = &Issue{
		id: ManifestNotFoundId,
		mdMsg: `
# No module manifest found!

A module is a directory with a ` + "`module.json`" + ` descriptor at its root.

## Things you can try:
- Check the module path you passed, or the ` + "`app_path`" + ` and ` + "`sys_path`" + ` settings
- Create a minimal descriptor:
~~~json
{ "id": "app", "version": "1.0.0" }
~~~
- If your project uses another descriptor name, set ` + "`manifest_file`" + ` in the config`,
	}

	manifestParseErrorIssue = &Issue{
		id: ManifestParseErrorId,
		mdMsg: `
# Module manifest is invalid!

The descriptor exists but is not valid JSON, or a field has the wrong type.

## Expected shape:
~~~json
{
  "id": "blog",
  "name": "Blog",
  "version": "1.4.0",
  "dependencies": { "framework": ">=2.0" }
}
~~~

## Things you can try:
- Make sure ` + "`id`" + `, ` + "`name`" + `, ` + "`description`" + ` and ` + "`version`" + ` are strings
- Make sure every dependency constraint is a string such as ` + "`\"*\"`" + ` or ` + "`\">=1.2\"`",
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Dependency not found!

A module declared a dependency that could not be located.

## Search locations (in order):
1. ` + "`<parent module>/modules/<id>`" + `
2. ` + "`<module_base_path>/<id>`" + `

## Things you can try:
- Install the module into one of the locations above
- Set ` + "`MODBOOT_MODULE_BASE_PATH`" + ` to the directory holding your shared modules
- Run ` + "`modboot modules`" + ` to see which modules were resolved`,
	}

	versionMismatchIssue = &Issue{
		id: VersionMismatchId,
		mdMsg: `
# Dependency version does not match!

A module requires a version of a dependency that is not the one installed.

## Constraint syntax:
- ` + "`*`" + ` accepts any version
- ` + "`1.2`" + ` means ` + "`>=1.2`" + `
- ` + "`=`, `<`, `<=`, `>`, `>=`" + ` compare dotted versions

## Things you can try:
- Upgrade the installed dependency
- Relax the constraint in the requiring module's ` + "`dependencies`" + `
- Check with ` + "`modboot satisfies <version> <constraint>`",
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Two or more modules depend on each other. The module that closed the cycle was
registered without that dependency.

## Things you can try:
- Run ` + "`modboot graph --dot`" + ` to visualize the dependencies
- Move the shared code into a separate module both can depend on`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the syntax of your config file:
~~~
$ modboot config path
~~~
- Print the effective configuration:
~~~
$ modboot config show
~~~
- Write the defaults to start over:
~~~
$ modboot config dump > config.cue
~~~`,
	}

	archiveUnreadableIssue = &Issue{
		id: ArchiveUnreadableId,
		mdMsg: `
# Packed archive could not be read!

A module ships a packed archive that is not a valid zip file. Lookups fall back
to the plain directory.

## Things you can try:
- Rebuild it with ` + "`modboot pack <module> <dir>`" + `
- Remove the archive to use the plain directory`,
	}

	packFailedIssue = &Issue{
		id: PackFailedId,
		mdMsg: `
# Failed to pack module directory!

## Things you can try:
- Check that the directory exists inside the module
- Check that the module directory is writable`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

modboot could not read or write a file it needs.

## Things you can try:
- Check the permissions of the module directories and their descriptors
- Check the permissions of the log file configured under ` + "`log.file`",
	}

	fileNotFoundIssue = &Issue{
		id: FileNotFoundId,
		mdMsg: `
# File not found in any module!

No resolved module provides the requested file.

## Things you can try:
- Run ` + "`modboot paths <file>`" + ` to list every module's copy
- Run ` + "`modboot glob '**/<name>'`" + ` to search by pattern
- Check that the module providing it was resolved without errors`,
	}

	issues = map[Id]*Issue{
		manifestNotFoundIssue.Id():   manifestNotFoundIssue,
		manifestParseErrorIssue.Id(): manifestParseErrorIssue,
		moduleNotFoundIssue.Id():     moduleNotFoundIssue,
		versionMismatchIssue.Id():    versionMismatchIssue,
		dependencyCycleIssue.Id():    dependencyCycleIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		archiveUnreadableIssue.Id():  archiveUnreadableIssue,
		packFailedIssue.Id():         packFailedIssue,
		permissionDeniedIssue.Id():   permissionDeniedIssue,
		fileNotFoundIssue.Id():       fileNotFoundIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
