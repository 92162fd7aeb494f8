package tftp

import "testing"

func TestResolvePath(t *testing.T) {
	cases := []struct {
		root, filename string
		wantOK         bool
		wantPath       string
	}{
		{"/srv/tftp", "hello.txt", true, "/srv/tftp/hello.txt"},
		{"/srv/tftp", "sub/dir/file.bin", true, "/srv/tftp/sub/dir/file.bin"},
		{"/srv/tftp", "../etc/passwd", false, ""},
		{"/srv/tftp", "a/../../b", false, ""},
		{"/srv/tftp", "..", false, ""},
		{"/srv/tftp", "file..name", false, ""}, // ".." anywhere is rejected, not just as a path segment
	}

	for _, c := range cases {
		path, ok := ResolvePath(c.root, c.filename)
		if ok != c.wantOK {
			t.Errorf("ResolvePath(%q, %q) ok = %v, want %v", c.root, c.filename, ok, c.wantOK)
			continue
		}
		if ok && path != c.wantPath {
			t.Errorf("ResolvePath(%q, %q) = %q, want %q", c.root, c.filename, path, c.wantPath)
		}
	}
}
