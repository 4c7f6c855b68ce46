// SPDX-License-Identifier: MPL-2.0

// Package manifest loads module descriptors.
//
// A module is a directory containing a JSON descriptor (module.json by
// default) that declares its identity, version and dependencies:
//
//	{
//	  "id": "blog",
//	  "name": "Blog",
//	  "version": "1.4.0",
//	  "dependencies": {"framework": ">=2.0", "markdown": "*"}
//	}
//
// The descriptor is validated against an embedded CUE schema and normalized
// once at load time: the id defaults to the directory name, dependencies keep
// their declaration order, and every module other than the base module gains
// an implicit dependency on it.
package manifest
