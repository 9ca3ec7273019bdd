// Command sqllint checks that every inline SQL string constant starts
// with a "--sql <uuid>" audit marker and that no marker is reused.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|listen|notify)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type finding struct {
	file    string
	line    int
	name    string
	message string
}

type marker struct {
	file string
	line int
	name string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var findings []finding
	seen := map[string]marker{}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			fatal(err)
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				fs, err := lintFile(target, seen)
				if err != nil {
					fatal(err)
				}
				findings = append(findings, fs...)
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" {
				return nil
			}
			fs, err := lintFile(path, seen)
			if err != nil {
				return err
			}
			findings = append(findings, fs...)
			return nil
		})
		if err != nil {
			fatal(err)
		}
	}

	if len(findings) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker violations")
		for _, f := range findings {
			fmt.Fprintf(os.Stderr, "  %s:%d %s (%s)\n", f.file, f.line, f.message, f.name)
		}
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
	os.Exit(1)
}

func lintFile(path string, seen map[string]marker) ([]finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var findings []finding
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
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			pos := fset.Position(bl.Pos())
			name := joinNames(vs.Names)
			m := uuidMarkerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				findings = append(findings, finding{
					file:    path,
					line:    pos.Line,
					name:    name,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			id := m[1]
			if prev, dup := seen[id]; dup {
				findings = append(findings, finding{
					file:    path,
					line:    pos.Line,
					name:    name,
					message: fmt.Sprintf("marker %s already used at %s:%d (%s)", id, prev.file, prev.line, prev.name),
				})
				continue
			}
			seen[id] = marker{file: path, line: pos.Line, name: name}
		}
		return true
	})
	return findings, nil
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
