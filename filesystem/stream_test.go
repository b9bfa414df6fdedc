package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStreamFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir,
		"file1.txt",
		"dir1/file2.txt",
		"dir1/dir2/file3.txt",
	)

	count := 0
	for range StreamFiles(tmpDir) {
		count++
	}

	if count != 3 {
		t.Errorf("expected 3 files, got %d", count)
	}
}

func TestDiscoverTestFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir,
		"src/b.test.ts",
		"src/a.spec.tsx",
		"src/util.ts",
		"coverage/report.test.js",
		"README.md",
	)

	paths, err := DiscoverTestFiles(tmpDir)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(tmpDir, "src", "a.spec.tsx"),
		filepath.Join(tmpDir, "src", "b.test.ts"),
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}
