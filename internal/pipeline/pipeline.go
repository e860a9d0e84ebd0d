// Package pipeline runs labelgen end to end: index the module, render the
// generated files, write or compare them, and record the label index.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/abramin/golabel/internal/config"
	"github.com/abramin/golabel/internal/gen"
	"github.com/abramin/golabel/internal/index"
	"github.com/abramin/golabel/internal/store"
	"github.com/rs/zerolog"
)

// Pipeline generates label code for one project directory.
type Pipeline struct {
	cfg        *config.Config
	projectDir string
	logger     zerolog.Logger
}

// New creates a pipeline for the module containing projectDir.
func New(cfg *config.Config, projectDir string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, projectDir: projectDir, logger: logger}
}

// Result holds the outcome of a run.
type Result struct {
	Index *index.Result
	Plan  *gen.Plan
	// Write is set by Generate.
	Write *gen.WriteResult
	// Stale is set by Check and lists files that differ from what would be generated.
	Stale    []string
	DBPath   string
	Duration time.Duration
}

// Generate indexes the module, writes the generated files and updates the
// label index. Nothing is written when indexing reports diagnostics.
func (p *Pipeline) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := p.plan(ctx)
	if err != nil {
		return res, err
	}

	res.Write, err = gen.Write(res.Plan)
	if err != nil {
		return res, fmt.Errorf("writing generated files: %w", err)
	}
	for _, path := range res.Write.Written {
		p.logger.Debug().Str("file", path).Msg("wrote")
	}
	for _, path := range res.Write.Removed {
		p.logger.Debug().Str("file", path).Msg("removed")
	}

	res.DBPath, err = p.persist(res.Index.Index)
	if err != nil {
		return res, fmt.Errorf("saving label index: %w", err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// Check indexes the module and reports generated files that are out of date
// without writing anything.
func (p *Pipeline) Check(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := p.plan(ctx)
	if err != nil {
		return res, err
	}

	res.Stale, err = gen.Check(res.Plan)
	if err != nil {
		return res, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (p *Pipeline) plan(ctx context.Context) (*Result, error) {
	indexed, err := index.NewIndexer(p.cfg, p.projectDir, p.logger).Run(ctx)
	res := &Result{Index: indexed}
	if err != nil {
		return res, err
	}

	res.Plan, err = gen.New(p.cfg).Generate(indexed.Index)
	if err != nil {
		return res, fmt.Errorf("generating code: %w", err)
	}
	for _, w := range res.Plan.Warnings {
		p.logger.Warn().Msg(w.Error())
	}
	return res, nil
}

// persist replaces the stored label index with idx.
func (p *Pipeline) persist(idx *index.Index) (string, error) {
	dir := idx.ModuleDir
	if dir == "" {
		dir = p.projectDir
	}
	st, err := store.Open(dir, p.cfg.StoreDir)
	if err != nil {
		return "", err
	}
	defer st.Close()

	if err := st.Clear(); err != nil {
		return "", err
	}
	if err := save(st, idx, time.Now()); err != nil {
		return "", err
	}
	if err := st.WriteIndexJSON(); err != nil {
		return "", err
	}
	return st.DBPath(), nil
}

func save(st *store.Store, idx *index.Index, indexedAt time.Time) (err error) {
	batch, err := st.BeginBatch()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			batch.Rollback()
		}
	}()

	ids := make(map[*index.Declaration]store.LabelID)
	for _, pkg := range idx.Packages {
		if len(pkg.Declarations) == 0 && len(pkg.Items) == 0 {
			continue
		}
		if err := batch.InsertPackage(&store.Package{
			PkgPath: pkg.PkgPath,
			Name:    pkg.Name,
			Module:  pkg.ModulePath,
			Dir:     pkg.Dir,
			IsMain:  pkg.IsMain,
		}); err != nil {
			return fmt.Errorf("inserting package %s: %w", pkg.PkgPath, err)
		}
		for _, d := range pkg.Declarations {
			id, err := batch.InsertLabel(&store.Label{
				PkgPath:   pkg.PkgPath,
				Name:      d.Name,
				Kind:      string(d.Kind),
				Signature: d.Signature,
				File:      d.Pos.Filename,
				Line:      d.Pos.Line,
			})
			if err != nil {
				return fmt.Errorf("inserting label %s: %w", d.Target(), err)
			}
			ids[d] = id
		}
	}

	for _, a := range idx.Attachments() {
		if a.Label == nil {
			continue
		}
		if err := batch.InsertAttachment(&store.Attachment{
			LabelID:  ids[a.Label],
			PkgPath:  a.Item.Pkg.PkgPath,
			Item:     a.Item.Name,
			ItemKind: string(a.Item.Kind),
			Path:     a.Path,
			File:     a.Pos.Filename,
			Line:     a.Pos.Line,
		}); err != nil {
			return fmt.Errorf("inserting attachment of %s: %w", a.Item.Name, err)
		}
	}

	if err := batch.SetMetadata("indexed_at", indexedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := batch.SetMetadata("module", idx.ModulePath); err != nil {
		return err
	}
	return batch.Commit()
}
