package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/abramin/golabel/internal/store"
	"github.com/spf13/cobra"
)

var listAttachments bool

var listCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List labels recorded by the last generate run",
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

		if dbPath := store.Path(dir, cfg.StoreDir); !fileExists(dbPath) {
			return fmt.Errorf("no label index at %s; run labelgen generate first", dbPath)
		}
		st, err := store.Open(dir, cfg.StoreDir)
		if err != nil {
			return err
		}
		defer st.Close()

		labels, err := st.Labels()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tKIND\tTYPE\tITEMS")
		for _, l := range labels {
			fmt.Fprintf(w, "%s.%s\t%s\t%s\t%d\n", l.PkgPath, l.Name, l.Kind, l.Signature, l.AttachmentCount)
			if !listAttachments {
				continue
			}
			atts, err := st.Attachments(l.ID)
			if err != nil {
				return err
			}
			for _, a := range atts {
				fmt.Fprintf(w, "  %s.%s\t%s\t%s:%d\t\n", a.PkgPath, a.Item, a.ItemKind, a.File, a.Line)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}

		stats, err := st.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("\n%d labels, %d attachments in %d packages (indexed %s)\n",
			stats.LabelCount, stats.AttachmentCount, stats.PackageCount, stats.IndexedAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&listAttachments, "attachments", "a", false, "show the items attached to each label")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
