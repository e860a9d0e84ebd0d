package index

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/abramin/golabel/internal/config"
	"github.com/rs/zerolog"
)

// Indexer coordinates loading, scanning, resolving and checking a module.
type Indexer struct {
	cfg        *config.Config
	projectDir string
	logger     zerolog.Logger
}

// NewIndexer creates a new indexer for the given project directory.
func NewIndexer(cfg *config.Config, projectDir string, logger zerolog.Logger) *Indexer {
	absPath, err := filepath.Abs(projectDir)
	if err != nil {
		absPath = projectDir
	}
	return &Indexer{
		cfg:        cfg,
		projectDir: absPath,
		logger:     logger,
	}
}

// Result holds the results of an indexing run.
type Result struct {
	Index           *Index
	PackageCount    int
	LabelCount      int
	AttachmentCount int
	Duration        time.Duration
}

// Run loads the module and builds its label index. Problems in user code are
// returned together as Diagnostics; other errors abort the run.
func (idx *Indexer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	idx.logger.Debug().Str("dir", idx.projectDir).Msg("loading packages")
	loader := NewLoader(idx.cfg, idx.projectDir, idx.logger)
	if err := loader.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	idx.logger.Debug().Int("packages", len(loader.Packages())).Msg("loaded packages")

	modPath, modDir := loader.Module()
	scanner := NewScanner(idx.cfg, loader.FileSet(), modPath, modDir)
	index := &Index{ModulePath: modPath, ModuleDir: modDir}
	for _, pkg := range loader.Packages() {
		index.Packages = append(index.Packages, scanner.ScanPackage(pkg, false))
	}

	diags := append(Diagnostics(nil), scanner.Diagnostics()...)
	missing := resolveTargets(index, &diags)
	if len(missing) > 0 {
		idx.logger.Debug().Strs("packages", missing).Msg("loading packages named by label paths")
		if err := loader.LoadExternal(ctx, missing); err != nil {
			return nil, err
		}
		before := len(scanner.Diagnostics())
		for _, pkg := range loader.External() {
			if len(pkg.Syntax) == 0 {
				continue
			}
			index.Packages = append(index.Packages, scanner.ScanPackage(pkg, true))
		}
		diags = append(diags, scanner.Diagnostics()[before:]...)
	}

	link(index, &diags)
	if idx.cfg.CheckTypes() {
		NewChecker(loader.FileSet()).Check(index, &diags)
	}

	result := &Result{
		Index:    index,
		Duration: time.Since(start),
	}
	for _, p := range index.Packages {
		if p.External {
			continue
		}
		result.PackageCount++
		result.LabelCount += len(p.Declarations)
		for _, it := range p.Items {
			result.AttachmentCount += len(it.Attachments)
		}
	}
	return result, diags.Err()
}
