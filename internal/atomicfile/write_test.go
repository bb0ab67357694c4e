// write_test.go tests [Write] for basic correctness and temp file cleanup,
// and [WriteIfAbsent] for first-run seeding semantics.

package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

// ///////////////////////////////////////////////
// Write
// ///////////////////////////////////////////////

func TestWriteBasic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := []byte("version = 1\n")

	if err := Write(path, data, 0o644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if matched, _ := filepath.Match("*.tmp.*", e.Name()); matched {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWrite_OverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overwrite.txt")

	if err := Write(path, []byte("original"), 0o644); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := Write(path, []byte("updated"), 0o644); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "updated" {
		t.Errorf("content = %q, want %q", got, "updated")
	}
}

func TestWriteCleanupOnFailure(t *testing.T) {
	badPath := filepath.Join(t.TempDir(), "no-such-dir", "file.txt")

	if err := Write(badPath, []byte("data"), 0o644); err == nil {
		t.Fatal("expected error writing to non-existent directory")
	}

	parent := filepath.Dir(filepath.Dir(badPath))
	entries, _ := os.ReadDir(parent)
	for _, e := range entries {
		if matched, _ := filepath.Match("file.txt.tmp.*", e.Name()); matched {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

// ///////////////////////////////////////////////
// WriteIfAbsent
// ///////////////////////////////////////////////

func TestWriteIfAbsent_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	wrote, err := WriteIfAbsent(path, []byte("seed"), 0o644)
	if err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if !wrote {
		t.Fatal("expected file to be written")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "seed" {
		t.Errorf("content = %q, want %q", got, "seed")
	}
}

func TestWriteIfAbsent_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("user edits"), 0o644); err != nil {
		t.Fatal(err)
	}

	wrote, err := WriteIfAbsent(path, []byte("seed"), 0o644)
	if err != nil {
		t.Fatalf("WriteIfAbsent: %v", err)
	}
	if wrote {
		t.Fatal("existing file must not be overwritten")
	}
	got, _ := os.ReadFile(path)
	if string(got) != "user edits" {
		t.Errorf("content = %q, want %q", got, "user edits")
	}
}
