package cmd

import (
	"fmt"

	"github.com/abramin/golabel/internal/pipeline"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Verify that generated label code is up to date",
	Long: `Run the same analysis as generate without writing anything.

check fails if any attachment is invalid or if a generated file differs
from what generate would write. Use it in CI.`,
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

		res, err := pipeline.New(cfg, dir, logger).Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("check failed:\n%w", err)
		}

		if len(res.Stale) > 0 {
			for _, path := range res.Stale {
				fmt.Printf("  out of date: %s\n", path)
			}
			return fmt.Errorf("%d generated files are out of date; run labelgen generate", len(res.Stale))
		}

		fmt.Printf("%d labels, %d attachments: generated code is up to date\n", res.Index.LabelCount, res.Index.AttachmentCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
