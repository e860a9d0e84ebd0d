// Package resolve turns the path written in a //label: attachment into the
// import path and name of the label it refers to.
//
// Registration code is generated into the attaching package itself, so a
// path is always resolved relative to that package and never shifted.
package resolve

import (
	"errors"
	"fmt"
	"go/token"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrMalformedPath = errors.New("malformed label path")
	ErrEscapesModule = errors.New("label path leaves the module")
	ErrUnknownImport = errors.New("label path names a package the file does not import")
	ErrNoModule      = errors.New("package is not part of a module")
)

// Form classifies how a path addresses its package.
type Form int

const (
	// Local names a label in the attaching package: "Test" or "./Test".
	Local Form = iota
	// Relative addresses a package directory relative to the attaching
	// package: "sub/Test", "../Test", "../sibling/Test".
	Relative
	// ModuleRooted addresses a directory from the module root: "/internal/labels/Test".
	ModuleRooted
	// ImportRooted is a full import path: "example.com/lib/labels/Test".
	ImportRooted
	// Qualified uses an import name of the attaching file: "labels.Test".
	Qualified
)

func (f Form) String() string {
	switch f {
	case Local:
		return "local"
	case Relative:
		return "relative"
	case ModuleRooted:
		return "module-rooted"
	case ImportRooted:
		return "import-rooted"
	case Qualified:
		return "qualified"
	default:
		return "unknown"
	}
}

// Path is a parsed attachment path.
type Path struct {
	Form Form
	// Pkg is the directory, import path or import name part, depending on Form.
	Pkg  string
	Name string
}

// Parse validates the syntax of an attachment path.
func Parse(text string) (Path, error) {
	if text == "" || strings.ContainsAny(text, " \t\\") {
		return Path{}, fmt.Errorf("%w %q", ErrMalformedPath, text)
	}

	if !strings.Contains(text, "/") {
		if qual, name, ok := strings.Cut(text, "."); ok {
			if !isIdent(qual) || !isIdent(name) {
				return Path{}, fmt.Errorf("%w %q", ErrMalformedPath, text)
			}
			return Path{Form: Qualified, Pkg: qual, Name: name}, nil
		}
		if !isIdent(text) {
			return Path{}, fmt.Errorf("%w %q", ErrMalformedPath, text)
		}
		return Path{Form: Local, Name: text}, nil
	}

	i := strings.LastIndex(text, "/")
	dir, name := text[:i], text[i+1:]
	if !isIdent(name) {
		return Path{}, fmt.Errorf("%w %q: last element must be a label name", ErrMalformedPath, text)
	}

	form := Relative
	switch {
	case strings.HasPrefix(text, "/"):
		form = ModuleRooted
		dir = strings.TrimPrefix(dir, "/")
	case strings.Contains(strings.SplitN(dir, "/", 2)[0], ".") && !strings.HasPrefix(dir, "."):
		form = ImportRooted
	}

	for _, elem := range strings.Split(dir, "/") {
		if elem == "" && !(form == ModuleRooted && dir == "") {
			return Path{}, fmt.Errorf("%w %q: empty path element", ErrMalformedPath, text)
		}
		if form != Relative && (elem == "." || elem == "..") {
			return Path{}, fmt.Errorf("%w %q: %s paths can not contain %q", ErrMalformedPath, text, form, elem)
		}
	}

	if form == Relative && path.Clean(dir) == "." {
		return Path{Form: Local, Name: name}, nil
	}
	return Path{Form: form, Pkg: dir, Name: name}, nil
}

// Context describes where an attachment was written.
type Context struct {
	ModulePath string
	ModuleDir  string
	// PkgPath and PkgDir identify the attaching package.
	PkgPath string
	PkgDir  string
	// Imports maps the import names of the attaching file to import paths.
	Imports map[string]string
}

// Target is a resolved label reference.
type Target struct {
	PkgPath string
	Name    string
}

func (t Target) String() string {
	return t.PkgPath + "." + t.Name
}

// Resolve parses text and resolves it in ctx.
func Resolve(ctx Context, text string) (Target, error) {
	p, err := Parse(text)
	if err != nil {
		return Target{}, err
	}
	return ctx.Resolve(p)
}

// Resolve resolves an already parsed path.
func (c Context) Resolve(p Path) (Target, error) {
	switch p.Form {
	case Local:
		return Target{PkgPath: c.PkgPath, Name: p.Name}, nil

	case Qualified:
		importPath, ok := c.Imports[p.Pkg]
		if !ok {
			return Target{}, fmt.Errorf("%w: %s", ErrUnknownImport, p.Pkg)
		}
		return Target{PkgPath: importPath, Name: p.Name}, nil

	case ImportRooted:
		return Target{PkgPath: p.Pkg, Name: p.Name}, nil

	case Relative, ModuleRooted:
		if c.ModulePath == "" || c.ModuleDir == "" {
			return Target{}, fmt.Errorf("%w: %s", ErrNoModule, c.PkgPath)
		}
		base := c.PkgDir
		if p.Form == ModuleRooted {
			base = c.ModuleDir
		}
		importPath, err := c.importPathForDir(filepath.Join(base, filepath.FromSlash(p.Pkg)))
		if err != nil {
			return Target{}, fmt.Errorf("%s/%s: %w", p.Pkg, p.Name, err)
		}
		return Target{PkgPath: importPath, Name: p.Name}, nil
	}
	return Target{}, fmt.Errorf("%w: unknown form %d", ErrMalformedPath, p.Form)
}

func (c Context) importPathForDir(dir string) (string, error) {
	rel, err := filepath.Rel(c.ModuleDir, dir)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", ErrEscapesModule
	}
	if rel == "." {
		return c.ModulePath, nil
	}
	return c.ModulePath + "/" + rel, nil
}

func isIdent(s string) bool {
	return token.IsIdentifier(s)
}
