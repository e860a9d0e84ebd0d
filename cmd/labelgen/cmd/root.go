package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/abramin/golabel/internal/config"
	"github.com/abramin/golabel/internal/index"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	linkFlags []string
	noCheck   bool
	logger    zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "labelgen",
	Short: "labelgen - Generate label registries for Go packages",
	Long: `labelgen scans a Go module for //label: directives and generates the code
that collects attached functions, vars and consts into typed labels.

Declare a label in any package:

    //label:declare func Test(string) int

Attach items to it from anywhere in the module:

    //label:../labels/Test
    func check(s string) int { ... }

Every attached item is registered before main runs, and the label can be
iterated with Test.Iter() or Test.IterNamed().`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			Level(level).
			With().Timestamp().Logger()
	},
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is labelgen.yaml in the module root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringSliceVar(&linkFlags, "link", nil, "main packages to write link files into (import path, \"/...\" matches below)")
	rootCmd.PersistentFlags().BoolVar(&noCheck, "no-check", false, "skip the type check of attached items")
}

// loadConfig reads the config for the project at dir and applies command line overrides.
func loadConfig(dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if len(linkFlags) > 0 {
		cfg.Link = append(cfg.Link, linkFlags...)
	}
	if noCheck {
		check := false
		cfg.Check = &check
	}
	return cfg, nil
}

// moduleRoot returns the root of the module containing the path argument.
// The config file, the scanned packages and the label index all hang off it,
// so running from a package directory under go generate sees the whole module.
func moduleRoot(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	_, root, err := index.FindModule(dir)
	if err != nil {
		return "", err
	}
	return root, nil
}
