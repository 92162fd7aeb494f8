package tftp

import (
	"io"
	"os"
)

// osFileSource is the production FileSource, opening real files
// beneath a fixed root directory. Path resolution (ResolvePath) has
// already run by the time Open is called; this type performs no
// additional validation, matching spec.md §4.5.1 step 3: rejection is
// the path resolver's job, FileNotFound is this layer's.
type osFileSource struct{}

// NewOSFileSource returns the FileSource backed by the real
// filesystem.
func NewOSFileSource() FileSource {
	return osFileSource{}
}

func (osFileSource) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
