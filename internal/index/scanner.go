package index

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/abramin/golabel/internal/config"
	"github.com/abramin/golabel/internal/directive"
	"golang.org/x/tools/go/packages"
)

// Scanner extracts label declarations and attachments from loaded packages.
type Scanner struct {
	cfg        *config.Config
	fset       *token.FileSet
	modulePath string
	moduleDir  string
	diags      Diagnostics
}

// NewScanner creates a scanner for packages loaded into fset.
func NewScanner(cfg *config.Config, fset *token.FileSet, modulePath, moduleDir string) *Scanner {
	return &Scanner{
		cfg:        cfg,
		fset:       fset,
		modulePath: modulePath,
		moduleDir:  moduleDir,
	}
}

// Diagnostics returns the problems found so far.
func (s *Scanner) Diagnostics() Diagnostics {
	return s.diags
}

// ScanPackage scans one loaded package.
func (s *Scanner) ScanPackage(pkg *packages.Package, external bool) *Package {
	p := &Package{
		PkgPath:    pkg.PkgPath,
		Name:       pkg.Name,
		Dir:        packageDir(pkg),
		ModulePath: s.modulePath,
		ModuleDir:  s.moduleDir,
		IsMain:     pkg.Name == "main",
		External:   external,
		types:      pkg.Types,
		info:       pkg.TypesInfo,
	}
	if pkg.Module != nil {
		p.ModulePath, p.ModuleDir = pkg.Module.Path, pkg.Module.Dir
	}

	imports := make(map[string]bool)
	for _, file := range pkg.Syntax {
		filename := s.fset.File(file.Pos()).Name()
		if s.cfg.IsGenerated(filename) {
			if filepath.Base(filename) == s.cfg.Output.Declarations {
				p.generatedDecls = filename
			}
			continue
		}
		if s.cfg.IsExcludedFile(filename) {
			continue
		}
		for _, imp := range file.Imports {
			if ip, err := strconv.Unquote(imp.Path.Value); err == nil {
				imports[ip] = true
			}
		}
		s.scanFile(p, pkg, file)
	}
	for ip := range imports {
		p.Imports = append(p.Imports, ip)
	}
	sort.Strings(p.Imports)

	sort.SliceStable(p.Items, func(i, j int) bool {
		a, b := p.Items[i].Pos, p.Items[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Offset < b.Offset
	})
	s.checkDeclarations(p)
	return p
}

func (s *Scanner) scanFile(p *Package, pkg *packages.Package, file *ast.File) {
	fileImports := importNames(pkg, file)
	consumed := make(map[token.Pos]bool)

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			atts := s.attachments(d.Doc, consumed, fileImports)
			if len(atts) == 0 {
				continue
			}
			switch {
			case d.Recv != nil:
				s.diags.add(s.position(d.Pos()), "label attachments are not supported on methods (%s)", d.Name.Name)
				continue
			case d.Type.TypeParams != nil && len(d.Type.TypeParams.List) > 0:
				s.diags.add(s.position(d.Pos()), "generic function %s can not be attached to a label", d.Name.Name)
				continue
			}
			s.addItem(p, d.Name, ItemFunc, atts)

		case *ast.GenDecl:
			shared := s.attachments(d.Doc, consumed, fileImports)
			if d.Tok != token.VAR && d.Tok != token.CONST {
				if len(shared) > 0 {
					s.diags.add(s.position(d.Pos()), "label attachments only apply to func, var and const declarations, not %s", d.Tok)
				}
				continue
			}
			kind := ItemVar
			if d.Tok == token.CONST {
				kind = ItemConst
			}
			for _, spec := range d.Specs {
				vs := spec.(*ast.ValueSpec)
				own := s.attachments(vs.Doc, consumed, fileImports)
				if len(shared)+len(own) == 0 {
					continue
				}
				for _, name := range vs.Names {
					if name.Name == "_" {
						s.diags.add(s.position(name.Pos()), "blank %s can not be attached to a label", d.Tok)
						continue
					}
					atts := make([]*Attachment, 0, len(shared)+len(own))
					for _, a := range append(append([]*Attachment(nil), shared...), own...) {
						cp := *a
						atts = append(atts, &cp)
					}
					s.addItem(p, name, kind, atts)
				}
			}
		}
	}

	for _, group := range file.Comments {
		for _, c := range group.List {
			d, ok := directive.Parse(c)
			if !ok {
				continue
			}
			switch d.Kind {
			case directive.Declare:
				s.declare(p, d, fileImports)
			case directive.Attach:
				if !consumed[c.Pos()] {
					s.diags.add(s.position(c.Pos()), "label directive %q is not attached to a func, var or const declaration", c.Text)
				}
			}
		}
	}
}

// attachments collects the attach directives of a doc comment. Every other
// comment line, including declarations, is left alone.
func (s *Scanner) attachments(doc *ast.CommentGroup, consumed map[token.Pos]bool, fileImports map[string]string) []*Attachment {
	if doc == nil {
		return nil
	}
	var atts []*Attachment
	for _, c := range doc.List {
		d, ok := directive.Parse(c)
		if !ok || d.Kind != directive.Attach {
			continue
		}
		consumed[c.Pos()] = true
		atts = append(atts, &Attachment{
			Path:        d.Text,
			Pos:         s.position(c.Pos()),
			fileImports: fileImports,
		})
	}
	return atts
}

func (s *Scanner) addItem(p *Package, ident *ast.Ident, kind ItemKind, atts []*Attachment) {
	it := &Item{
		Pkg:         p,
		Name:        ident.Name,
		Kind:        kind,
		Pos:         s.position(ident.Pos()),
		Attachments: atts,
		ident:       ident,
	}
	for _, a := range atts {
		a.Item = it
	}
	p.Items = append(p.Items, it)
}

func (s *Scanner) declare(p *Package, d directive.Directive, fileImports map[string]string) {
	specs, err := directive.ParseDeclarations(d.Text)
	if err != nil {
		s.diags.add(s.position(d.Pos), "invalid label declaration: %v", err)
		return
	}
	for _, spec := range specs {
		p.Declarations = append(p.Declarations, &Declaration{
			Pkg:       p,
			Name:      spec.Name,
			Kind:      spec.Kind,
			Signature: spec.TypeText,
			Imports:   referencedImports(spec.Type, fileImports),
			Pos:       s.position(d.Pos),
			pos:       d.Pos,
		})
	}
}

// checkDeclarations rejects labels declared twice in one package and labels
// whose name is already taken by another package-level identifier.
func (s *Scanner) checkDeclarations(p *Package) {
	seen := make(map[string]*Declaration)
	for _, d := range p.Declarations {
		if prev, ok := seen[d.Name]; ok {
			s.diags.add(d.Pos, "label %s redeclared in this package\n\tprevious declaration at %s", d.Name, prev.Pos)
			continue
		}
		seen[d.Name] = d

		if p.types == nil {
			continue
		}
		obj := p.types.Scope().Lookup(d.Name)
		if obj == nil || !obj.Pos().IsValid() {
			continue
		}
		objPos := s.fset.Position(obj.Pos())
		if p.generatedDecls != "" && objPos.Filename == p.generatedDecls {
			continue
		}
		s.diags.add(d.Pos, "label %s collides with %s declared at %s", d.Name, obj.Name(), objPos)
	}
}

func (s *Scanner) position(pos token.Pos) token.Position {
	return s.fset.Position(pos)
}

// importNames maps the import names usable in file to their import paths.
func importNames(pkg *packages.Package, file *ast.File) map[string]string {
	names := make(map[string]string)
	for _, imp := range file.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		var name string
		switch {
		case imp.Name != nil:
			name = imp.Name.Name
		case pkg.TypesInfo != nil:
			if pn := pkg.TypesInfo.PkgNameOf(imp); pn != nil {
				name = pn.Name()
			}
		}
		if name == "" {
			name = guessPackageName(importPath)
		}
		if name == "_" || name == "." {
			continue
		}
		names[name] = importPath
	}
	return names
}

// guessPackageName derives a package name from an import path when type
// information is unavailable: "gopkg.in/yaml.v3" -> "yaml", "example.com/x/v2" -> "x".
func guessPackageName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]
	if len(elems) > 1 && len(name) > 1 && name[0] == 'v' && isDigits(name[1:]) {
		name = elems[len(elems)-2]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, "-", "_")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// referencedImports returns the file imports a type expression refers to.
func referencedImports(expr ast.Expr, fileImports map[string]string) []Import {
	seen := make(map[string]bool)
	var imports []Import
	ast.Inspect(expr, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		id, ok := sel.X.(*ast.Ident)
		if !ok || seen[id.Name] {
			return true
		}
		if ip, ok := fileImports[id.Name]; ok {
			seen[id.Name] = true
			imports = append(imports, Import{Name: id.Name, Path: ip})
		}
		return true
	})
	sort.Slice(imports, func(i, j int) bool { return imports[i].Path < imports[j].Path })
	return imports
}
