package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

// The document store must stay a leaf: it sees the Store contract and the
// sqlite driver, never the record store or repositories built on top.
func TestImportsStayAtStorageLayer(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	var sawDriver bool
	for _, imp := range pkg.Imports {
		switch {
		case imp == "modernc.org/sqlite":
			sawDriver = true
		case imp == "projecttracker/internal/blob/core":
		case strings.HasPrefix(imp, "projecttracker/"):
			t.Errorf("unexpected module dependency: %s", imp)
		}
	}
	if !sawDriver {
		t.Errorf("expected the modernc sqlite driver import, got %v", pkg.Imports)
	}
}
