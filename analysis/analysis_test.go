package analysis

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func buildGraph(t *testing.T, dir string) *Graph {
	t.Helper()
	g := NewGraph(nil)
	if err := g.Build(dir); err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	return g
}

func join(dir string, names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(dir, n))
	}
	return out
}

func TestGraph(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"utils.ts":          "export const foo = 'bar';",
		"component.ts":      "import { foo } from './utils';",
		"utils.test.ts":     "import { foo } from './utils';",
		"component.test.ts": "import { Component } from './component';",
	})
	g := buildGraph(t, tmpDir)

	utilsPath := filepath.Join(tmpDir, "utils.ts")
	want := join(tmpDir, "component.test.ts", "component.ts", "utils.test.ts")
	if got := g.Dependents(utilsPath); !reflect.DeepEqual(got, want) {
		t.Errorf("Dependents = %v, want %v", got, want)
	}

	wantTests := join(tmpDir, "component.test.ts", "utils.test.ts")
	if got := g.AffectedTests(utilsPath); !reflect.DeepEqual(got, wantTests) {
		t.Errorf("AffectedTests = %v, want %v", got, wantTests)
	}

	testPath := filepath.Join(tmpDir, "utils.test.ts")
	if got := g.AffectedTests(testPath); !reflect.DeepEqual(got, []string{testPath}) {
		t.Errorf("a test file affects itself, got %v", got)
	}
}

func TestGraph_RelativeImports(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"src/lib/index.ts":         "export * from './math';",
		"src/lib/math.ts":          "export const add = (a, b) => a + b;",
		"src/app/main.ts":          "import { add } from '../lib';",
		"test/main.test.ts":        "import '../src/app/main';",
		"test/esm.test.ts":         "import { add } from '../src/lib/math.js';",
		"test/dynamic.test.ts":     "const m = await import('../src/lib/math');",
		"node_modules/pkg/index.js": "require('../../src/lib/math');",
	})
	g := buildGraph(t, tmpDir)

	want := join(tmpDir, "test/dynamic.test.ts", "test/esm.test.ts", "test/main.test.ts")
	got := g.AffectedTests(filepath.Join(tmpDir, "src/lib/math.ts"))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AffectedTests = %v, want %v", got, want)
	}
}

func TestGraph_PendingImport(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.test.ts": "import { helper } from './helper';",
	})
	g := buildGraph(t, tmpDir)

	helper := filepath.Join(tmpDir, "helper.ts")
	if got := g.Dependents(helper); len(got) != 0 {
		t.Fatalf("expected no dependents before the file exists, got %v", got)
	}

	writeFiles(t, tmpDir, map[string]string{"helper.ts": "export const helper = 1;"})
	g.Update(helper)

	if got := g.Dependents(helper); !reflect.DeepEqual(got, join(tmpDir, "a.test.ts")) {
		t.Errorf("expected the pending import to resolve, got %v", got)
	}
}

func TestGraph_Update(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"utils.ts":          "export const foo = 'bar';",
		"component.ts":      "import { foo } from './utils';",
		"component.test.ts": "import { Component } from './component';",
	})
	g := buildGraph(t, tmpDir)
	utilsPath := filepath.Join(tmpDir, "utils.ts")
	componentPath := filepath.Join(tmpDir, "component.ts")

	writeFiles(t, tmpDir, map[string]string{"component.ts": "export const Component = 1;"})
	g.Update(componentPath)
	if got := g.Dependents(utilsPath); len(got) != 0 {
		t.Errorf("dropped import should remove the edge, got %v", got)
	}

	writeFiles(t, tmpDir, map[string]string{"component.ts": "import { foo } from './utils';"})
	g.Update(componentPath)
	if got := g.AffectedTests(utilsPath); !reflect.DeepEqual(got, join(tmpDir, "component.test.ts")) {
		t.Errorf("restored import should restore the edge, got %v", got)
	}
}

func TestGraph_DeletedFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"utils.ts":      "export const foo = 'bar';",
		"utils.test.ts": "import { foo } from './utils';",
	})
	g := buildGraph(t, tmpDir)
	utilsPath := filepath.Join(tmpDir, "utils.ts")

	if err := os.Remove(utilsPath); err != nil {
		t.Fatal(err)
	}
	g.Update(utilsPath)
	if got := g.Dependents(utilsPath); len(got) != 0 {
		t.Errorf("deleted file should have no dependents, got %v", got)
	}

	writeFiles(t, tmpDir, map[string]string{"utils.ts": "export const foo = 'baz';"})
	g.Update(utilsPath)
	if got := g.Dependents(utilsPath); !reflect.DeepEqual(got, join(tmpDir, "utils.test.ts")) {
		t.Errorf("recreated file should be linked again, got %v", got)
	}
}

func TestParseImports(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.ts":       "",
		"b.tsx":      "",
		"c/index.js": "",
		"d.ts":       "",
	})

	tests := []struct {
		name           string
		source         string
		wantResolved   []string
		wantUnresolved []string
	}{
		{
			name:         "Import From",
			source:       "import { x } from './a';\nimport {\n  y,\n} from \"./b\";",
			wantResolved: join(tmpDir, "a.ts", "b.tsx"),
		},
		{
			name:         "Side Effect And Require",
			source:       "import './a';\nconst c = require('./c');",
			wantResolved: join(tmpDir, "a.ts", "c/index.js"),
		},
		{
			name:         "Export From",
			source:       "export { d } from './d';",
			wantResolved: join(tmpDir, "d.ts"),
		},
		{
			name:           "Packages Skipped",
			source:         "import React from 'react';\nimport { z } from './missing.ts';",
			wantUnresolved: join(tmpDir, "missing"),
		},
		{
			name:         "Duplicates",
			source:       "import { x } from './a';\nimport './a';",
			wantResolved: join(tmpDir, "a.ts"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, "src.test.ts")
			if err := os.WriteFile(path, []byte(tt.source), 0644); err != nil {
				t.Fatal(err)
			}
			imports, err := ParseImports(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(imports.Resolved) != len(tt.wantResolved) || (len(tt.wantResolved) > 0 && !reflect.DeepEqual(imports.Resolved, tt.wantResolved)) {
				t.Errorf("resolved = %v, want %v", imports.Resolved, tt.wantResolved)
			}
			if len(imports.Unresolved) != len(tt.wantUnresolved) || (len(tt.wantUnresolved) > 0 && !reflect.DeepEqual(imports.Unresolved, tt.wantUnresolved)) {
				t.Errorf("unresolved = %v, want %v", imports.Unresolved, tt.wantUnresolved)
			}
		})
	}

	if _, err := ParseImports(filepath.Join(tmpDir, "nope.ts")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
