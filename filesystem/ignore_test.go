package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnorer(t *testing.T) {
	tmpDir := t.TempDir()

	gitignoreContent := `
# Comment
ignored_dir/
*.tmp
/root_only.txt
src/generated
!keep.tmp
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignoreContent), 0644); err != nil {
		t.Fatal(err)
	}

	ignorer := NewIgnorer(tmpDir)

	tests := []struct {
		path   string
		ignore bool
	}{
		{"node_modules", true},                   // Default
		{"node_modules/pkg/a.test.ts", true},     // Inside a default
		{".git", true},                           // Default
		{"src/app.ts", false},                    // Normal file
		{"ignored_dir", true},                    // From .gitignore
		{"src/ignored_dir", true},                // From .gitignore (recursive)
		{"src/ignored_dir/x.test.ts", true},      // Inside an ignored directory
		{"temp.tmp", true},                       // From .gitignore (glob)
		{"src/temp.tmp", true},                   // From .gitignore (glob recursive)
		{"root_only.txt", true},                  // From .gitignore (root anchored)
		{"src/root_only.txt", false},             // Anchored patterns only match at the root
		{"src/generated/api.test.ts", true},      // Path pattern
		{"lib/src/generated/api.test.ts", false}, // Path patterns are relative to root
		{"debug.log", true},                      // Default *.log
	}

	for _, tt := range tests {
		fullPath := filepath.Join(tmpDir, tt.path)
		if got := ignorer.ShouldIgnore(fullPath, tmpDir); got != tt.ignore {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.ignore)
		}
	}
}
