// Package testutil holds the import-boundary checks the package tests use to
// keep printstack's layering honest: pkg/domain stays a leaf, and the kv and
// blob drivers never pull in domain types.
package testutil

import (
	"go/parser"
	"go/token"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// ImportsDomain matches import paths that resolve to the domain package.
func ImportsDomain(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// ImportsInternal matches import paths under any internal tree.
func ImportsInternal(path string) bool {
	return strings.Contains(path, "/internal/")
}

// RequireImportsClean parses every non-test source file in dir (usually "."
// from within the package under test) and fails if any import path matches
// the banned predicate. Build tags are not evaluated.
func RequireImportsClean(t testing.TB, dir string, banned func(importPath string) bool, rule string) {
	t.Helper()
	pattern := filepath.Join(dir, "*.go")
	files, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("glob %s: %v", pattern, err)
	}
	fset := token.NewFileSet()
	var violations []string
	for _, file := range files {
		if strings.HasSuffix(file, "_test.go") {
			continue
		}
		parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
		if err != nil {
			t.Fatalf("parse %s: %v", file, err)
		}
		for _, imp := range parsed.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			if banned(path) {
				violations = append(violations, filepath.Base(file)+" imports "+path)
			}
		}
	}
	reportViolations(t, rule, violations)
}

// RequireDepClosureClean resolves the full dependency closure of pattern via
// the go tool and fails if any package path in it matches the banned
// predicate. Unlike RequireImportsClean this sees transitive dependencies.
func RequireDepClosureClean(t testing.TB, pattern string, banned func(pkgPath string) bool, rule string) {
	t.Helper()
	out, err := runGoList(pattern)
	if err != nil {
		t.Fatalf("go list -deps %s: %v\n%s", pattern, err, out)
		return
	}
	var violations []string
	for _, pkg := range strings.Fields(string(out)) {
		if banned(pkg) {
			violations = append(violations, pkg)
		}
	}
	reportViolations(t, rule, violations)
}

// runGoList is a seam so the closure check can be exercised without the
// go tool on the path.
var runGoList = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func reportViolations(t testing.TB, rule string, violations []string) {
	t.Helper()
	if len(violations) == 0 {
		return
	}
	t.Fatalf("import boundary broken (%s):\n%s", rule, strings.Join(violations, "\n"))
}
