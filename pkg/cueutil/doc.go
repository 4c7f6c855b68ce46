// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the schema-validated decoding shared by module
// manifests and the application config file.
//
// Every document goes through the same three steps:
//
//  1. Compile the embedded schema
//  2. Compile the user document and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// JSON is a subset of CUE, so the same flow validates JSON manifests.
//
// # Usage
//
//	//go:embed manifest_schema.cue
//	var schema string
//
//	result, err := cueutil.ParseAndDecodeString[rawManifest](
//	    schema,
//	    data,
//	    "#Manifest",
//	    cueutil.WithFilename(path),
//	)
//	if err != nil {
//	    return nil, err // includes the CUE path of the offending field
//	}
//	keys, err := cueutil.FieldNames(result.Unified, "dependencies")
package cueutil
