package filesystem

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	cmd := exec.Command("git", "init")
	cmd.Dir = tmpDir
	if err := cmd.Run(); err != nil {
		t.Skipf("git unavailable: %v", err)
	}
	return tmpDir
}

func TestGetChangedFiles(t *testing.T) {
	tmpDir := initRepo(t)

	filePath := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(filePath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := GetChangedFiles(tmpDir)
	if err != nil {
		t.Fatalf("GetChangedFiles failed: %v", err)
	}

	if len(files) != 1 {
		t.Fatalf("expected 1 changed file, got %d", len(files))
	}

	if files[0] != filePath {
		t.Errorf("expected file path %s, got %s", filePath, files[0])
	}
}

func TestChangedTestFiles(t *testing.T) {
	tmpDir := initRepo(t)
	for _, name := range []string{"a.test.ts", "b.ts"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ChangedTestFiles(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != filepath.Join(tmpDir, "a.test.ts") {
		t.Errorf("expected only a.test.ts, got %v", files)
	}
}
