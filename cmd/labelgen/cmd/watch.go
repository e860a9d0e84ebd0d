package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/abramin/golabel/internal/config"
	"github.com/abramin/golabel/internal/pipeline"
	"github.com/abramin/golabel/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Regenerate label code whenever Go sources change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := moduleRoot(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(dir)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := pipeline.New(cfg, dir, logger)
		for {
			dirs := regenerate(ctx, p, cfg, dir)
			if err := waitForChange(ctx, cfg, dirs); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	},
}

// regenerate runs one generation and returns the directories to watch next.
func regenerate(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, dir string) []string {
	res, err := p.Generate(ctx)
	if err != nil {
		logger.Error().Msg(err.Error())
	} else {
		logger.Info().
			Int("labels", res.Index.LabelCount).
			Int("attachments", res.Index.AttachmentCount).
			Int("written", len(res.Write.Written)).
			Dur("took", res.Duration).
			Msg("generated")
	}

	dirs, err := watchDirs(dir, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("listing directories to watch")
	}
	return dirs
}

// watchDirs lists root and every directory below it that is neither hidden
// nor excluded, so new package directories are noticed wherever they appear.
func watchDirs(root string, cfg *config.Config) ([]string, error) {
	dirs := []string{root}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || cfg.IsExcludedDir(path) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

func waitForChange(ctx context.Context, cfg *config.Config, dirs []string) error {
	wcfg := watcher.DefaultConfig(dirs)
	wcfg.Ignore = func(path string) bool {
		return cfg.IsGenerated(path) || cfg.IsExcludedDir(path)
	}
	wcfg.Logger = logger
	w, err := watcher.New(wcfg)
	if err != nil {
		return err
	}
	defer w.Stop()

	changed, err := w.Start()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	logger.Debug().Int("dirs", len(dirs)).Msg("watching for changes")

	select {
	case <-changed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
