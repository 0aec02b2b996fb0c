package runtime_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/pyvm/pyvm/internal/runtime"
)

// TestEndToEnd runs every testdata/*.txtar fixture: each archive
// bundles a small program (main.py, plus any modules it imports) and
// an expected.stdout file, so the program/expectation pair travels as
// one checked-in artifact.
func TestEndToEnd(t *testing.T) {
	archives, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) == 0 {
		t.Fatal("no testdata fixtures found")
	}

	for _, path := range archives {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			ar, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatalf("parsing archive: %v", err)
			}

			dir := t.TempDir()
			var expected []byte
			for _, f := range ar.Files {
				if f.Name == "expected.stdout" {
					expected = f.Data
					continue
				}
				full := filepath.Join(dir, f.Name)
				if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(full, f.Data, 0o644); err != nil {
					t.Fatal(err)
				}
			}

			var out bytes.Buffer
			interp := runtime.New(nil, &out)
			if _, err := interp.RunFile(filepath.Join(dir, "main.py")); err != nil {
				t.Fatalf("RunFile: %v", err)
			}
			if out.String() != string(expected) {
				t.Errorf("stdout mismatch:\n got: %q\nwant: %q", out.String(), string(expected))
			}
		})
	}
}

// TestImportDoesNotCorruptCallerClosures guards the module-scope
// closure bug: a main-module function called after an import must
// still resolve its own module's globals, not the imported module's.
func TestImportDoesNotCorruptCallerClosures(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "main.py"), `
import helper

total = 100

def report():
    return total

helper.noop()
print(report())
`)
	mustWrite(t, filepath.Join(dir, "helper.py"), `
def noop():
    return None
`)

	var out bytes.Buffer
	interp := runtime.New(nil, &out)
	if _, err := interp.RunFile(filepath.Join(dir, "main.py")); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if out.String() != "100\n" {
		t.Errorf("got %q, want %q", out.String(), "100\n")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
