package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type query struct {
	file   string
	name   string
	line   int
	marker string
}

// lintSource reports query constants without a valid marker and returns the
// marked queries it found. Queries assembled with + are judged by their
// first literal, which is where the marker lives.
func lintSource(path string, src any) ([]violation, []query, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	var (
		violations []violation
		queries    []query
	)
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			lit, whole := leadingLiteral(value)
			if lit == nil {
				continue
			}
			raw, err := unquote(lit.Value)
			if err != nil || !sqlKeywordPattern.MatchString(whole) {
				continue
			}
			name := joinNames(vs.Names)
			if i < len(vs.Names) {
				name = vs.Names[i].Name
			}
			line := fset.Position(lit.Pos()).Line
			marker := firstLine(raw)
			if !uuidMarkerPattern.MatchString(marker) {
				violations = append(violations, violation{
					file:    path,
					line:    line,
					name:    name,
					message: "missing or invalid --sql <uuid> marker",
				})
				continue
			}
			queries = append(queries, query{file: path, name: name, line: line, marker: marker})
		}
		return true
	})
	return violations, queries, nil
}

// leadingLiteral returns the first string literal of a (possibly
// concatenated) expression together with the text of all its literals.
func leadingLiteral(expr ast.Expr) (*ast.BasicLit, string) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return nil, ""
		}
		raw, _ := unquote(e.Value)
		return e, raw
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return nil, ""
		}
		left, leftText := leadingLiteral(e.X)
		_, rightText := leadingLiteral(e.Y)
		return left, leftText + rightText
	case *ast.ParenExpr:
		return leadingLiteral(e.X)
	}
	return nil, ""
}

// duplicateMarkers reports every query that reuses a marker already seen.
func duplicateMarkers(queries []query) []violation {
	seen := map[string]query{}
	var out []violation
	for _, q := range queries {
		if first, ok := seen[q.marker]; ok {
			out = append(out, violation{
				file:    q.file,
				line:    q.line,
				name:    q.name,
				message: "marker already used by " + first.name,
			})
			continue
		}
		seen[q.marker] = q
	}
	return out
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
