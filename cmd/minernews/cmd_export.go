package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/minernews/internal/export"
)

var exportFlags struct {
	days int
	out  string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Bundle recent reports into a Word digest",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.IntVar(&exportFlags.days, "days", 7, "include reports from the last N days (0 for all)")
	f.StringVarP(&exportFlags.out, "output", "o", "", "output .docx path (default <reports>/digests/digest_<date>.docx)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if exportFlags.days < 0 {
		return fmt.Errorf("--days must not be negative, got %d", exportFlags.days)
	}

	now := time.Now().UTC()
	var since time.Time
	if exportFlags.days > 0 {
		since = now.AddDate(0, 0, -exportFlags.days)
	}

	out := exportFlags.out
	if out == "" {
		out = filepath.Join(cfg.Reports.Directory, "digests", "digest_"+now.Format("20060102")+".docx")
	}

	n, err := export.Digest(cfg.Reports.Directory, since, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d report(s) to %s\n", n, out)
	return nil
}
