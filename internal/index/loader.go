package index

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/abramin/golabel/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

// LoadMode defines the packages.Load mode required for label indexing.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports |
	packages.NeedModule

// Loader handles loading Go packages for scanning.
type Loader struct {
	cfg        *config.Config
	projectDir string
	logger     zerolog.Logger
	fset       *token.FileSet
	pkgs       []*packages.Package
	external   []*packages.Package
	overlay    map[string][]byte

	modulePath string
	moduleDir  string
}

// NewLoader creates a new package loader.
func NewLoader(cfg *config.Config, projectDir string, logger zerolog.Logger) *Loader {
	return &Loader{
		cfg:        cfg,
		projectDir: projectDir,
		logger:     logger,
		fset:       token.NewFileSet(),
	}
}

// Load loads every Go package of the module containing the project
// directory, whichever package directory it names.
func (l *Loader) Load(ctx context.Context) error {
	modPath, modDir, err := FindModule(l.projectDir)
	if err != nil {
		return err
	}
	l.modulePath, l.moduleDir = modPath, modDir

	overlay, err := l.staleOutputOverlay()
	if err != nil {
		return fmt.Errorf("preparing overlay: %w", err)
	}
	l.overlay = overlay

	pkgs, err := packages.Load(l.packagesConfig(ctx), "./...")
	if err != nil {
		return fmt.Errorf("loading packages: %w", err)
	}

	var filtered []*packages.Package
	for _, pkg := range pkgs {
		if l.shouldExcludePackage(pkg) {
			continue
		}
		filtered = append(filtered, pkg)
	}
	l.pkgs = filtered

	l.reportErrors(l.pkgs)
	return nil
}

// LoadExternal loads packages outside the project that attachments name by import path.
func (l *Loader) LoadExternal(ctx context.Context, importPaths []string) error {
	if len(importPaths) == 0 {
		return nil
	}
	pkgs, err := packages.Load(l.packagesConfig(ctx), importPaths...)
	if err != nil {
		return fmt.Errorf("loading external packages: %w", err)
	}
	l.external = append(l.external, pkgs...)
	l.reportErrors(pkgs)
	return nil
}

func (l *Loader) packagesConfig(ctx context.Context) *packages.Config {
	return &packages.Config{
		Context:    ctx,
		Mode:       LoadMode,
		Dir:        l.moduleDir,
		Fset:       l.fset,
		BuildFlags: l.cfg.BuildFlags,
		Overlay:    l.overlay,
	}
}

// reportErrors logs loading errors. Type errors are expected when user code
// already refers to labels that have not been generated yet.
func (l *Loader) reportErrors(pkgs []*packages.Package) {
	var errs []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, err := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, err.Msg))
		}
	})
	if len(errs) == 0 {
		return
	}
	l.logger.Debug().Int("count", len(errs)).Msg("package loading errors")
	for _, err := range errs[:min(5, len(errs))] {
		l.logger.Debug().Msg(err)
	}
}

// staleOutputOverlay replaces existing registration and link files with an
// empty package clause, so output from an earlier run can not break loading
// or leak into the import graph.
func (l *Loader) staleOutputOverlay() (map[string][]byte, error) {
	overlay := make(map[string][]byte)
	err := filepath.WalkDir(l.moduleDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == l.moduleDir {
				return nil
			}
			if name := d.Name(); strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || l.cfg.IsExcludedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		base := filepath.Base(path)
		if base != l.cfg.Output.Registrations && base != l.cfg.Output.Link {
			return nil
		}
		f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.PackageClauseOnly)
		if err != nil {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		overlay[abs] = []byte("package " + f.Name.Name + "\n")
		return nil
	})
	return overlay, err
}

// shouldExcludePackage checks if a package lives in an excluded directory.
func (l *Loader) shouldExcludePackage(pkg *packages.Package) bool {
	dir := packageDir(pkg)
	if dir == "" {
		return true
	}
	rel, err := filepath.Rel(l.moduleDir, dir)
	if err != nil {
		return false
	}
	for elem := rel; elem != "." && elem != string(filepath.Separator); elem = filepath.Dir(elem) {
		if l.cfg.IsExcludedDir(elem) {
			return true
		}
	}
	return false
}

// Packages returns the loaded project packages.
func (l *Loader) Packages() []*packages.Package {
	return l.pkgs
}

// External returns the packages loaded by LoadExternal.
func (l *Loader) External() []*packages.Package {
	return l.external
}

// FileSet returns the file set used for parsing.
func (l *Loader) FileSet() *token.FileSet {
	return l.fset
}

// Module returns the module path and root directory of the project.
func (l *Loader) Module() (path, dir string) {
	return l.modulePath, l.moduleDir
}

// FindModule walks up from dir to the enclosing go.mod and returns the
// module path and root directory.
func FindModule(dir string) (modPath, modDir string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	for d := abs; ; d = filepath.Dir(d) {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			modPath := modfile.ModulePath(data)
			if modPath == "" {
				return "", "", fmt.Errorf("%s: go.mod has no module directive", d)
			}
			return modPath, d, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("reading go.mod: %w", err)
		}
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	return "", "", fmt.Errorf("no go.mod found above %s: labelgen requires module mode", abs)
}

// packageDir returns the directory of a package.
func packageDir(pkg *packages.Package) string {
	if len(pkg.GoFiles) > 0 {
		return filepath.Dir(pkg.GoFiles[0])
	}
	if len(pkg.OtherFiles) > 0 {
		return filepath.Dir(pkg.OtherFiles[0])
	}
	return ""
}
