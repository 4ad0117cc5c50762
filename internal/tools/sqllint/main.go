// Command sqllint checks that every SQL string constant starts with a unique
// `--sql <uuid>` marker, which SQLRunner uses to label its logs.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlStatementPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern   = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

func main() {
	flag.Parse()
	os.Exit(run(flag.Args(), os.Stderr))
}

func run(targets []string, stderr io.Writer) int {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 1
		}
	}
	if len(l.violations) == 0 {
		return 0
	}
	fmt.Fprintln(stderr, "sqllint: SQL audit marker problems")
	for _, v := range l.violations {
		fmt.Fprintf(stderr, "  %s\n", v)
	}
	return 1
}

type linter struct {
	fset       *token.FileSet
	seen       map[string]violation
	violations []violation
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), seen: map[string]violation{}}
}

func (l *linter) walk(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil
		}
		return l.lintFile(target, nil)
	}
	return filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintFile(path, nil)
	})
}

// lintFile parses src, or the file at path when src is nil.
func (l *linter) lintFile(path string, src any) error {
	file, err := parser.ParseFile(l.fset, path, src, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlStatementPattern.MatchString(raw) {
				continue
			}
			v := violation{file: path, line: l.fset.Position(bl.Pos()).Line, name: joinNames(vs.Names)}
			marker := firstLine(raw)
			if !uuidMarkerPattern.MatchString(marker) {
				v.message = "missing or invalid --sql <uuid> marker"
				l.violations = append(l.violations, v)
				continue
			}
			if prev, dup := l.seen[marker]; dup {
				v.message = "marker already used by " + prev.name
				l.violations = append(l.violations, v)
				continue
			}
			l.seen[marker] = v
		}
		return true
	})
	return nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}

func joinNames(idents []*ast.Ident) string {
	parts := make([]string, 0, len(idents))
	for _, ident := range idents {
		if ident == nil {
			continue
		}
		parts = append(parts, ident.Name)
	}
	return strings.Join(parts, ",")
}
