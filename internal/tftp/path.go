package tftp

import "strings"

// ResolvePath joins filename against root per spec.md §4.2: a
// deliberately narrow rule that rejects any filename containing "..",
// anywhere, and otherwise concatenates root+"/"+filename with no
// further normalization. It does not resolve symlinks, reject
// absolute filenames, or clean "." segments — callers that need that
// get it from a later failure to open the file (FileNotFound), not
// from this check.
func ResolvePath(root, filename string) (path string, ok bool) {
	if strings.Contains(filename, "..") {
		return "", false
	}
	return root + "/" + filename, true
}
