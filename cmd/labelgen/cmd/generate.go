package cmd

import (
	"fmt"
	"time"

	"github.com/abramin/golabel/internal/pipeline"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate label declarations and registrations",
	Long: `Scan the module containing path and write the generated files.

The generate command:
- Loads Go packages using go/packages
- Collects //label:declare declarations and //label: attachments
- Resolves every attachment path and checks item types against their labels
- Writes declarations, per-item init registrations and link files
- Records the label index in .labelgen/index.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := moduleRoot(args)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(dir)
		if err != nil {
			return err
		}

		res, err := pipeline.New(cfg, dir, logger).Generate(cmd.Context())
		if err != nil {
			return fmt.Errorf("generation failed:\n%w", err)
		}

		fmt.Printf("Generation complete!\n")
		fmt.Printf("  Packages:    %d\n", res.Index.PackageCount)
		fmt.Printf("  Labels:      %d\n", res.Index.LabelCount)
		fmt.Printf("  Attachments: %d\n", res.Index.AttachmentCount)
		fmt.Printf("  Written:     %d (unchanged %d, removed %d)\n", len(res.Write.Written), len(res.Write.Unchanged), len(res.Write.Removed))
		fmt.Printf("  Duration:    %s\n", res.Duration.Round(time.Millisecond))
		fmt.Printf("  Database:    %s\n", res.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.RunE = generateCmd.RunE
	rootCmd.Args = generateCmd.Args
}
