package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile creates path, and any missing parents, holding content.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MakeTree creates the given slash-separated entries under root. Entries with
// a file extension (01.flac, cover.jpg) become small files; everything else
// becomes a directory.
func MakeTree(t testing.TB, root string, entries ...string) {
	t.Helper()

	for _, entry := range entries {
		target := filepath.Join(root, filepath.FromSlash(entry))
		if filepath.Ext(entry) != "" && !strings.HasSuffix(entry, "/") {
			WriteFile(t, target, "audio")
			continue
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", target, err)
		}
	}
}
