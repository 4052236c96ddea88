package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smoynes/poke/internal/pvm"
)

func TestSplitLoadPath(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/a:/b", []string{"/a", "/b"}},
		{"/a::/b", []string{"/a", "/b"}},
		{`C:/a:D:/b`, []string{`C:/a`, `D:/b`}},
		{"%DATADIR%:/extra", []string{"%DATADIR%", "/extra"}},
	}

	for _, c := range cases {
		got := splitLoadPath(c.in)
		if len(got) != len(c.want) {
			t.Errorf("splitLoadPath(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("splitLoadPath(%q) = %v, want %v", c.in, got, c.want)
				break
			}
		}
	}
}

func TestResolveModuleAbsolute(t *testing.T) {
	got, err := ResolveModule("", "/tmp/whatever", true)
	if err != nil {
		t.Fatalf("resolve: %s", err)
	}
	if got != "/tmp/whatever" {
		t.Errorf("got %q, want /tmp/whatever", got)
	}
}

func TestResolveModuleSearchesLoadPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "greet.pk"), []byte("var hi = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveModule("/nonexistent:"+dir, "greet", false)
	if err != nil {
		t.Fatalf("resolve: %s", err)
	}
	if got != filepath.Join(dir, "greet.pk") {
		t.Errorf("got %q", got)
	}
}

func TestResolveModuleDataDirToken(t *testing.T) {
	dir := t.TempDir()
	old := DataDir
	DataDir = dir
	defer func() { DataDir = old }()

	if err := os.WriteFile(filepath.Join(dir, "std.pk"), []byte("var x = 1;"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveModule("%DATADIR%", "std", false)
	if err != nil {
		t.Fatalf("resolve: %s", err)
	}
	if got != filepath.Join(dir, "std.pk") {
		t.Errorf("got %q", got)
	}
}

func TestCompilerRequireLoadsAndRuns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.pk"), []byte("var shared = 21;"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt := pvm.NewRuntime()
	vm := pvm.New(rt, pvm.NewIOSpaceRegistry())
	c := New(rt, vm)

	ctx := context.Background()
	if err := c.Require(ctx, dir, "lib", false); err != nil {
		t.Fatalf("require: %s", err)
	}

	v, err := c.CompileExpression(ctx, "test", "shared * 2")
	if err != nil {
		t.Fatalf("compile expression: %s", err)
	}
	if got, want := v.String(), "42L32"; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestLoadCachesParsedModule(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "lib.pk")
	if err := os.WriteFile(file, []byte("var shared = 21;"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt := pvm.NewRuntime()
	vm := pvm.New(rt, pvm.NewIOSpaceRegistry())
	c := New(rt, vm)

	first, err := c.Load(dir, "lib", false)
	if err != nil {
		t.Fatalf("load: %s", err)
	}

	// Remove the file: a cache hit must not need to read it again.
	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}

	second, err := c.Load(dir, "lib", false)
	if err != nil {
		t.Fatalf("load (cached): %s", err)
	}
	if first != second {
		t.Errorf("expected the cached *ast.Program to be returned unchanged")
	}
}
