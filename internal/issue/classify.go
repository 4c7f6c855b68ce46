// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"

	"github.com/modboot/modboot/pkg/manifest"
	"github.com/modboot/modboot/pkg/registry"
)

// Classify wraps err as an ActionableError for operation on resource,
// choosing suggestions and a catalog entry from the error's type.
// A nil err yields nil.
func Classify(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}

	ctx := NewErrorContext().WithOperation(operation).WithResource(resource).Wrap(err)

	var depErr *registry.DependencyError
	var parseErr *manifest.ParseError
	switch {
	case errors.As(err, &parseErr):
		ctx.WithIssue(ManifestParseErrorId).
			WithSuggestion("Check the JSON syntax of " + parseErr.Path)
	case errors.Is(err, manifest.ErrManifestNotFound):
		ctx.WithIssue(ManifestNotFoundId).
			WithSuggestion("Check that the directory contains a module descriptor")
	case errors.As(err, &depErr):
		switch depErr.Kind {
		case registry.KindVersionMismatch:
			ctx.WithIssue(VersionMismatchId).
				WithSuggestion("Install a version of " + depErr.ID + " matching " + depErr.Constraint)
		case registry.KindCycle:
			ctx.WithIssue(DependencyCycleId).
				WithSuggestion("Run 'modboot graph --dot' to inspect the dependencies")
		default:
			ctx.WithIssue(ModuleNotFoundId).
				WithSuggestion("Run 'modboot modules' to list the resolved modules")
		}
	case errors.Is(err, registry.ErrModuleNotFound):
		ctx.WithIssue(ModuleNotFoundId).
			WithSuggestion("Run 'modboot modules' to list the resolved modules")
	case errors.Is(err, fs.ErrPermission):
		ctx.WithIssue(PermissionDeniedId).
			WithSuggestion("Check the file permissions")
	case errors.Is(err, fs.ErrNotExist):
		ctx.WithIssue(FileNotFoundId)
	}

	return ctx.Build()
}
