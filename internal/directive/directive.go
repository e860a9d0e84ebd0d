// Package directive recognizes and parses //label: comments.
package directive

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/scanner"
	"go/token"
	"strings"
)

// Prefix marks a label directive. Like other Go directives it has no space after the slashes.
const Prefix = "//label:"

const declareKeyword = "declare"

// Kind is the kind of a directive.
type Kind int

const (
	Attach Kind = iota
	Declare
)

// Directive is a single //label: comment.
type Directive struct {
	Kind Kind
	Text string // everything after the prefix (and after "declare " for declarations)
	Pos  token.Pos
}

// Parse reports whether c is a label directive and returns it.
func Parse(c *ast.Comment) (Directive, bool) {
	if !strings.HasPrefix(c.Text, Prefix) {
		return Directive{}, false
	}
	body := strings.TrimSpace(c.Text[len(Prefix):])
	if rest, ok := strings.CutPrefix(body, declareKeyword); ok && (rest == "" || rest[0] == ' ' || rest[0] == '\t') {
		return Directive{Kind: Declare, Text: strings.TrimSpace(rest), Pos: c.Pos()}, true
	}
	return Directive{Kind: Attach, Text: body, Pos: c.Pos()}, true
}

// LabelKind is the kind of a declared label.
type LabelKind string

const (
	KindFunc  LabelKind = "func"
	KindVar   LabelKind = "var"
	KindConst LabelKind = "const"
)

// IsValue reports whether labels of this kind hold vars or consts.
func (k LabelKind) IsValue() bool { return k == KindVar || k == KindConst }

// Spec is one label declared by a //label:declare directive.
type Spec struct {
	Name string
	Kind LabelKind
	// Type is the signature for func labels and the value type for value labels.
	Type ast.Expr
	// TypeText is Type printed in canonical form.
	TypeText string
}

var (
	ErrEmptyDeclaration = errors.New("empty label declaration")
	ErrTypeParams       = errors.New("labels can not have type parameters")
	ErrMethod           = errors.New("labels can not have a receiver")
	ErrMissingType      = errors.New("value labels need a type")
	ErrInitialValue     = errors.New("value labels take a type, not a value")
	ErrBlankName        = errors.New("labels need a name")
)

// ParseDeclarations parses the text of a //label:declare directive. Several
// labels may be declared at once, separated by semicolons.
func ParseDeclarations(text string) ([]Spec, error) {
	parts, err := splitSpecs(text)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrEmptyDeclaration
	}

	var specs []Spec
	for _, part := range parts {
		s, err := parseSpec(part)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, err)
		}
		specs = append(specs, s...)
	}
	return specs, nil
}

// splitSpecs splits text at semicolons that are not nested inside brackets,
// so struct and interface types keep their own separators.
func splitSpecs(text string) ([]string, error) {
	var (
		s     scanner.Scanner
		errs  scanner.ErrorList
		parts []string
		depth int
		start int
	)
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(text))
	s.Init(file, []byte(text), func(pos token.Position, msg string) { errs.Add(pos, msg) }, 0)

	flush := func(end int) {
		if part := strings.TrimSpace(text[start:end]); part != "" {
			parts = append(parts, part)
		}
	}
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		switch tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			depth--
		case token.SEMICOLON:
			// The scanner inserts automatic semicolons with literal "\n".
			if depth == 0 && lit == ";" {
				off := file.Offset(pos)
				flush(off)
				start = off + 1
			}
		}
	}
	if errs.Len() > 0 {
		return nil, errs.Err()
	}
	flush(len(text))
	return parts, nil
}

func parseSpec(part string) ([]Spec, error) {
	kind := KindFunc
	src := part
	switch {
	case strings.HasPrefix(part, "const ") || strings.HasPrefix(part, "const\t"):
		// A const without a value does not parse; read it as a var and remember the kind.
		kind = KindConst
		src = "var" + part[len("const"):]
	case strings.HasPrefix(part, "var ") || strings.HasPrefix(part, "var\t"):
		kind = KindVar
	case strings.HasPrefix(part, "func"):
	default:
		return nil, fmt.Errorf("expected func, var or const")
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", "package p\n"+src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	if len(f.Decls) != 1 {
		return nil, fmt.Errorf("expected a single declaration")
	}

	switch d := f.Decls[0].(type) {
	case *ast.FuncDecl:
		if d.Recv != nil {
			return nil, ErrMethod
		}
		if d.Type.TypeParams != nil && len(d.Type.TypeParams.List) > 0 {
			return nil, ErrTypeParams
		}
		if d.Body != nil {
			return nil, fmt.Errorf("label declarations have no body")
		}
		if d.Name.Name == "_" {
			return nil, ErrBlankName
		}
		return []Spec{{Name: d.Name.Name, Kind: KindFunc, Type: d.Type, TypeText: render(fset, d.Type)}}, nil

	case *ast.GenDecl:
		if len(d.Specs) != 1 {
			return nil, fmt.Errorf("expected a single %s declaration", kind)
		}
		vs := d.Specs[0].(*ast.ValueSpec)
		if vs.Type == nil {
			return nil, ErrMissingType
		}
		if len(vs.Values) > 0 {
			return nil, ErrInitialValue
		}
		text := render(fset, vs.Type)
		var specs []Spec
		for _, name := range vs.Names {
			if name.Name == "_" {
				return nil, ErrBlankName
			}
			specs = append(specs, Spec{Name: name.Name, Kind: kind, Type: vs.Type, TypeText: text})
		}
		return specs, nil
	}
	return nil, fmt.Errorf("unsupported declaration")
}

func render(fset *token.FileSet, expr ast.Expr) string {
	var sb strings.Builder
	if err := printer.Fprint(&sb, fset, expr); err != nil {
		return ""
	}
	return sb.String()
}
