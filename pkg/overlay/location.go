// SPDX-License-Identifier: MPL-2.0

package overlay

// Location identifies a file provided by a module, either on disk or inside
// a packed archive.
type Location struct {
	// Module is the id of the providing module.
	Module string `json:"module"`
	// Path is the filesystem path of a plain file or directory.
	Path string `json:"path,omitempty"`
	// Archive is the filesystem path of the packed archive.
	Archive string `json:"archive,omitempty"`
	// Entry is the slash-separated name inside Archive; empty for the archive itself.
	Entry string `json:"entry,omitempty"`
}

// Packed reports whether the location is inside a packed archive.
func (l Location) Packed() bool {
	return l.Archive != ""
}

// String renders plain paths as-is and packed ones as <archive>/<entry>.
func (l Location) String() string {
	if !l.Packed() {
		return l.Path
	}
	if l.Entry == "" {
		return l.Archive
	}
	return l.Archive + "/" + l.Entry
}
