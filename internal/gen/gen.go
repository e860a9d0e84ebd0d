// Package gen renders the Go files labelgen writes: label declarations,
// per-item registration init functions, and blank-import link files.
package gen

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/abramin/golabel/internal/config"
	"github.com/abramin/golabel/internal/directive"
	"github.com/abramin/golabel/internal/index"
	"golang.org/x/tools/imports"
)

// Header starts every generated file.
const Header = "// Code generated by labelgen. DO NOT EDIT.\n"

// aliasPrefix keeps generated import names out of the way of package-level identifiers.
const aliasPrefix = "_lbl_"

// runtimeAlias is the import name of the label runtime in declaration files.
const runtimeAlias = aliasPrefix + "label"

// FileKind is the kind of a generated file.
type FileKind string

const (
	FileDeclarations  FileKind = "declarations"
	FileRegistrations FileKind = "registrations"
	FileLink          FileKind = "link"
)

// File is one generated file.
type File struct {
	Path    string
	PkgPath string
	Kind    FileKind
	Content []byte
}

// Plan lists the files to write and the stale files to remove.
type Plan struct {
	Files  []File
	Remove []string
	// Warnings report attaching packages a linked main package can not import.
	// Their items are not registered when that program runs.
	Warnings index.Diagnostics
}

// Generator renders generated files for an index.
type Generator struct {
	cfg      *config.Config
	warnings index.Diagnostics
}

// New creates a generator.
func New(cfg *config.Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate renders every file the index needs. Existing generated files
// that are no longer needed are listed in Plan.Remove.
func (g *Generator) Generate(idx *index.Index) (*Plan, error) {
	plan := &Plan{}
	g.warnings = nil
	for _, p := range idx.LocalPackages() {
		if err := g.generatePackage(idx, p, plan); err != nil {
			return nil, fmt.Errorf("%s: %w", p.PkgPath, err)
		}
	}
	plan.Warnings = g.warnings
	return plan, nil
}

func (g *Generator) generatePackage(idx *index.Index, p *index.Package, plan *Plan) error {
	outputs := []struct {
		kind   FileKind
		name   string
		render func(*index.Index, *index.Package) ([]byte, error)
	}{
		{FileDeclarations, g.cfg.Output.Declarations, g.declarations},
		{FileRegistrations, g.cfg.Output.Registrations, g.registrations},
		{FileLink, g.cfg.Output.Link, g.link},
	}

	for _, out := range outputs {
		filename := filepath.Join(p.Dir, out.name)
		src, err := out.render(idx, p)
		if err != nil {
			return fmt.Errorf("rendering %s: %w", out.name, err)
		}
		if src == nil {
			if _, err := os.Stat(filename); err == nil {
				plan.Remove = append(plan.Remove, filename)
			}
			continue
		}
		formatted, err := format(filename, src)
		if err != nil {
			return err
		}
		plan.Files = append(plan.Files, File{Path: filename, PkgPath: p.PkgPath, Kind: out.kind, Content: formatted})
	}
	return nil
}

// declarations renders one registry variable per label declared in p.
func (g *Generator) declarations(_ *index.Index, p *index.Package) ([]byte, error) {
	if len(p.Declarations) == 0 {
		return nil, nil
	}

	imps := map[string]string{runtimeAlias: g.cfg.RuntimeImport}
	for _, d := range p.Declarations {
		for _, imp := range d.Imports {
			if prev, ok := imps[imp.Name]; ok && prev != imp.Path {
				return nil, fmt.Errorf("label %s: import name %s refers to both %s and %s", d.Name, imp.Name, prev, imp.Path)
			}
			imps[imp.Name] = imp.Path
		}
	}

	var buf bytes.Buffer
	writePreamble(&buf, p.Name, imps)
	for _, d := range p.Declarations {
		buf.WriteString("\n")
		switch d.Kind {
		case directive.KindFunc:
			fmt.Fprintf(&buf, "// %s is the label for functions of type %s.\n", d.Name, d.Signature)
			fmt.Fprintf(&buf, "var %s = %s.NewFunc[%s](%q)\n", d.Name, runtimeAlias, d.Signature, d.Name)
		case directive.KindVar:
			fmt.Fprintf(&buf, "// %s is the label for vars and consts of type %s.\n", d.Name, d.Signature)
			fmt.Fprintf(&buf, "var %s = %s.NewValue[%s](%q, %s.Var)\n", d.Name, runtimeAlias, d.Signature, d.Name, runtimeAlias)
		case directive.KindConst:
			fmt.Fprintf(&buf, "// %s is the label for constant values of type %s.\n", d.Name, d.Signature)
			fmt.Fprintf(&buf, "var %s = %s.NewValue[%s](%q, %s.Const)\n", d.Name, runtimeAlias, d.Signature, d.Name, runtimeAlias)
		}
	}
	return buf.Bytes(), nil
}

// registrations renders one init function per attached item in p. Each init
// holds one add call per attachment, in the order they were written.
func (g *Generator) registrations(_ *index.Index, p *index.Package) ([]byte, error) {
	var items []*index.Item
	for _, it := range p.Items {
		for _, a := range it.Attachments {
			if a.Label != nil {
				items = append(items, it)
				break
			}
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	aliases := newAliasSet()
	for _, it := range items {
		for _, a := range it.Attachments {
			if a.Label != nil && a.Label.Pkg.PkgPath != p.PkgPath {
				aliases.add(a.Label.Pkg.PkgPath, a.Label.Pkg.Name)
			}
		}
	}

	var buf bytes.Buffer
	writePreamble(&buf, p.Name, aliases.imports())
	for _, it := range items {
		buf.WriteString("\nfunc init() {\n")
		for _, a := range it.Attachments {
			if a.Label == nil {
				continue
			}
			ref := a.Label.Name
			if a.Label.Pkg.PkgPath != p.PkgPath {
				ref = aliases.alias(a.Label.Pkg.PkgPath) + "." + ref
			}
			fmt.Fprintf(&buf, "\t%s\n", addCall(ref, it, a.Label))
		}
		buf.WriteString("}\n")
	}
	return buf.Bytes(), nil
}

func addCall(ref string, it *index.Item, d *index.Declaration) string {
	name := strconv.Quote(it.Name)
	switch {
	case it.Kind == index.ItemFunc:
		return fmt.Sprintf("%s.Add(%s, %s)", ref, name, it.Name)
	case it.Kind == index.ItemVar && d.Kind == directive.KindVar:
		return fmt.Sprintf("%s.AddVar(%s, &%s)", ref, name, it.Name)
	default:
		return fmt.Sprintf("%s.AddConst(%s, %s)", ref, name, it.Name)
	}
}

// link renders blank imports of every attaching package into main packages
// selected by the link configuration, so the init functions of those
// packages run even when nothing else imports them. Packages the main
// package already reaches through its imports are left out.
func (g *Generator) link(idx *index.Index, p *index.Package) ([]byte, error) {
	if !p.IsMain || !g.cfg.ShouldLink(p.PkgPath) {
		return nil, nil
	}

	reached := reachable(idx, p)
	var paths []string
	for _, other := range idx.LocalPackages() {
		if other.PkgPath == p.PkgPath || other.IsMain || reached[other.PkgPath] || !other.HasLinkedItems() {
			continue
		}
		if !importable(p.PkgPath, other.PkgPath) {
			g.warnings = append(g.warnings, index.Diagnostic{
				Pos: other.Items[0].Pos,
				Msg: fmt.Sprintf("%s is internal and can not be linked into %s; its items are not registered in that program", other.PkgPath, p.PkgPath),
			})
			continue
		}
		paths = append(paths, other.PkgPath)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	buf.WriteString(Header)
	fmt.Fprintf(&buf, "\npackage %s\n\nimport (\n", p.Name)
	for _, ip := range paths {
		fmt.Fprintf(&buf, "\t_ %q\n", ip)
	}
	buf.WriteString(")\n")
	return buf.Bytes(), nil
}

// reachable returns the import paths p imports directly or through other
// packages of the index.
func reachable(idx *index.Index, p *index.Package) map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), p.Imports...)
	for len(queue) > 0 {
		ip := queue[0]
		queue = queue[1:]
		if seen[ip] {
			continue
		}
		seen[ip] = true
		if dep := idx.Package(ip); dep != nil {
			queue = append(queue, dep.Imports...)
		}
	}
	return seen
}

// importable reports whether importer may import pkgPath under the go
// command's internal directory rule.
func importable(importer, pkgPath string) bool {
	var parent string
	switch {
	case strings.HasSuffix(pkgPath, "/internal"):
		parent = strings.TrimSuffix(pkgPath, "/internal")
	case strings.Contains(pkgPath, "/internal/"):
		parent = pkgPath[:strings.LastIndex(pkgPath, "/internal/")]
	case pkgPath == "internal" || strings.HasPrefix(pkgPath, "internal/"):
		return false
	default:
		return true
	}
	return importer == parent || strings.HasPrefix(importer, parent+"/")
}

func writePreamble(buf *bytes.Buffer, pkgName string, imps map[string]string) {
	buf.WriteString(Header)
	fmt.Fprintf(buf, "\npackage %s\n", pkgName)
	if len(imps) == 0 {
		return
	}

	names := make([]string, 0, len(imps))
	for name := range imps {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return imps[names[i]] < imps[names[j]] })

	buf.WriteString("\nimport (\n")
	for _, name := range names {
		if name == path.Base(imps[name]) {
			fmt.Fprintf(buf, "\t%q\n", imps[name])
			continue
		}
		fmt.Fprintf(buf, "\t%s %q\n", name, imps[name])
	}
	buf.WriteString(")\n")
}

// format gofmts src and sorts its imports into standard library and third-party groups.
func format(filename string, src []byte) ([]byte, error) {
	out, err := imports.Process(filename, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w\n%s", filepath.Base(filename), err, src)
	}
	return out, nil
}
