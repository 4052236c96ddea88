package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/smoynes/poke/internal/ast"
	"github.com/smoynes/poke/internal/parser"
)

// dataDirToken is expanded to DataDir when it appears as a load_path entry (spec §6.4).
const dataDirToken = "%DATADIR%"

// DataDir is the build-configured data directory modules resolve %DATADIR% against.
// The teacher has no analogous build-time constant (its ROM images are compiled in,
// not loaded from a data directory), so this is a plain package variable rather than
// an injected build flag -- overridable by tests and embedders.
var DataDir = "/usr/local/share/poke"

// moduleCacheSize bounds the module parse cache (spec §6.4 "parsed once"): sized for a
// session loading many modules across a handful of load_path entries, not for a
// long-running daemon serving arbitrarily many distinct modules.
const moduleCacheSize = 256

// ResolveModule resolves module to a filename (spec §6.4): an absolute (or
// drive-letter-prefixed) path is returned without searching loadPath, after the same
// ".pk" rule below; otherwise loadPath (colon-separated, %DATADIR%-expanding, Windows
// drive-letter-aware) is searched in order for a file that exists. literal suppresses
// appending the ".pk" extension, for callers that already pass a full filename.
func ResolveModule(loadPath, module string, literal bool) (string, error) {
	name := module
	if !literal && !strings.HasSuffix(name, ".pk") {
		name += ".pk"
	}

	if filepath.IsAbs(module) || hasDriveLetter(module) {
		return name, nil
	}

	for _, dir := range splitLoadPath(loadPath) {
		if dir == dataDirToken {
			dir = DataDir
		} else if strings.HasPrefix(dir, dataDirToken) {
			dir = DataDir + strings.TrimPrefix(dir, dataDirToken)
		}

		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("compiler: module %q not found in load_path %q", module, loadPath)
}

// splitLoadPath splits a load_path value on ':', except where the colon is the second
// character of a Windows drive-letter prefix ("C:/..."), which must stay joined to the
// path segment that follows it (spec §6.4).
func splitLoadPath(loadPath string) []string {
	var parts []string

	start := 0
	for i := 0; i < len(loadPath); i++ {
		if loadPath[i] != ':' {
			continue
		}
		if i == 1 && isDriveLetter(loadPath[0]) {
			continue
		}
		parts = append(parts, loadPath[start:i])
		start = i + 1
	}
	parts = append(parts, loadPath[start:])

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':'
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// moduleCache is a process-memory-only cache of parsed modules keyed by resolved path
// (spec §6.4, §6.6 "Persisted state: None"): a module imported from two different
// load_path entries that resolve to the same file is parsed once per Compiler.
type moduleCache struct {
	cache *lru.Cache[string, *ast.Program]
}

func newModuleCache() *moduleCache {
	c, err := lru.New[string, *ast.Program](moduleCacheSize)
	if err != nil {
		panic(fmt.Sprintf("compiler: module cache: %s", err))
	}
	return &moduleCache{cache: c}
}

// Load resolves module against loadPath, parsing (and caching) the file it names.
// literal suppresses the ".pk" extension for callers passing an exact filename, mirroring
// the `load` builtin's own literal-filename argument (spec §6.4).
func (c *Compiler) Load(loadPath, module string, literal bool) (*ast.Program, error) {
	path, err := ResolveModule(loadPath, module, literal)
	if err != nil {
		return nil, err
	}

	if prog, ok := c.modules.cache.Get(path); ok {
		return prog, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiler: load %q: %w", module, err)
	}

	cst, err := parser.ParseProgram(path, string(src))
	if err != nil {
		return nil, fmt.Errorf("compiler: load %q: parse: %w", module, err)
	}

	prog, err := parser.NewLowerer(c.ctx).Program(cst)
	if err != nil {
		return nil, fmt.Errorf("compiler: load %q: lower: %w", module, err)
	}

	c.modules.cache.Add(path, prog)

	return prog, nil
}

// Require resolves, loads and runs a module against the Compiler's persistent scope
// and VM, the host-level counterpart of the `load` builtin (spec §6.4): callers use it
// to preload library modules (std.pk-style dependencies) before compiling a program
// that references their declarations.
func (c *Compiler) Require(ctx context.Context, loadPath, module string, literal bool) error {
	prog, err := c.Load(loadPath, module, literal)
	if err != nil {
		return err
	}

	return c.compileAndRun(ctx, prog)
}
