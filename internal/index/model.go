package index

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strings"

	"github.com/abramin/golabel/internal/directive"
	"github.com/abramin/golabel/internal/resolve"
)

// ItemKind is the kind of an attachable item.
type ItemKind string

const (
	ItemFunc  ItemKind = "func"
	ItemVar   ItemKind = "var"
	ItemConst ItemKind = "const"
)

// Package is a scanned Go package.
type Package struct {
	PkgPath    string
	Name       string
	Dir        string
	ModulePath string
	ModuleDir  string
	IsMain     bool
	// External packages were loaded only to find labels named by import path.
	External bool
	// Imports lists the import paths of the package's own source files.
	Imports []string

	Declarations []*Declaration
	Items        []*Item

	types *types.Package
	info  *types.Info
	// generatedDecls is the path of an existing declarations file, if any.
	generatedDecls string
}

// HasLinkedItems reports whether any item in the package is attached to a
// resolved label, so that loading the package registers something.
func (p *Package) HasLinkedItems() bool {
	for _, it := range p.Items {
		for _, a := range it.Attachments {
			if a.Label != nil {
				return true
			}
		}
	}
	return false
}

// Declaration is a declared label.
type Declaration struct {
	Pkg       *Package
	Name      string
	Kind      directive.LabelKind
	Signature string
	// Imports are the imports of the declaring file that Signature refers to.
	Imports []Import
	Pos     token.Position

	pos token.Pos
}

// Target returns the resolved reference that names this declaration.
func (d *Declaration) Target() resolve.Target {
	return resolve.Target{PkgPath: d.Pkg.PkgPath, Name: d.Name}
}

// Import is an import referenced from generated code.
type Import struct {
	Name string
	Path string
}

// Item is a func, var or const with at least one attachment.
type Item struct {
	Pkg         *Package
	Name        string
	Kind        ItemKind
	Pos         token.Position
	Attachments []*Attachment

	ident *ast.Ident
}

// Attachment is one //label: directive on an item.
type Attachment struct {
	Item   *Item
	Path   string
	Pos    token.Position
	Target resolve.Target
	// Label is the declaration the path resolved to. Nil until linked.
	Label *Declaration

	fileImports map[string]string
}

// Index is the result of scanning a module.
type Index struct {
	ModulePath string
	ModuleDir  string
	Packages   []*Package
}

// LocalPackages returns the packages of the scanned module, sorted by import path.
func (idx *Index) LocalPackages() []*Package {
	var pkgs []*Package
	for _, p := range idx.Packages {
		if !p.External {
			pkgs = append(pkgs, p)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })
	return pkgs
}

// Package returns the package with the given import path, or nil.
func (idx *Index) Package(pkgPath string) *Package {
	for _, p := range idx.Packages {
		if p.PkgPath == pkgPath {
			return p
		}
	}
	return nil
}

// Attachments returns every attachment in the module.
func (idx *Index) Attachments() []*Attachment {
	var atts []*Attachment
	for _, p := range idx.Packages {
		for _, it := range p.Items {
			atts = append(atts, it.Attachments...)
		}
	}
	return atts
}

// Diagnostic is a positioned problem found while indexing.
type Diagnostic struct {
	Pos token.Position
	Msg string
}

func (d Diagnostic) Error() string {
	if !d.Pos.IsValid() {
		return d.Msg
	}
	return fmt.Sprintf("%s: %s", d.Pos, d.Msg)
}

// Diagnostics collects every problem of a run so they can be reported together.
type Diagnostics []Diagnostic

func (ds Diagnostics) Error() string {
	msgs := make([]string, len(ds))
	for i, d := range ds {
		msgs[i] = d.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns ds as an error, or nil if it is empty.
func (ds Diagnostics) Err() error {
	if len(ds) == 0 {
		return nil
	}
	sorted := append(Diagnostics(nil), ds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Pos, sorted[j].Pos
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.Offset < b.Offset
	})
	return sorted
}

func (ds *Diagnostics) add(pos token.Position, format string, args ...any) {
	*ds = append(*ds, Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}
