// Package fsutil provides file system helpers and permission constants.
package fsutil

import "os"

// Permissions for every file and directory nifpre writes.
const (
	FileModeMask os.FileMode = 0o777

	FileModeDefault os.FileMode = 0o644 // manifests, metadata, installed files
	DirModeDefault  os.FileMode = 0o755
)
