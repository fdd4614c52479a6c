package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/minernews/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or rebuild the processed-article ledger",
}

var ledgerRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the ledger index from the reports directory",
	Args:  cobra.NoArgs,
	RunE:  runLedgerRebuild,
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Report whether an article URL has already been analyzed",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerCheck,
}

func init() {
	ledgerCmd.AddCommand(ledgerRebuildCmd)
	ledgerCmd.AddCommand(ledgerCheckCmd)
}

func runLedgerRebuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := ledger.Rebuild(cmd.Context(), store, cfg.Reports.Directory)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ledger rebuilt from %s: %d article(s)\n", cfg.Reports.Directory, n)
	return nil
}

func runLedgerCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	set := ledger.Load(cmd.Context(), store, cfg.Reports.Directory)
	out := cmd.OutOrStdout()
	entry, ok := set.Get(args[0])
	if !ok {
		fmt.Fprintf(out, "not reported: %s\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "reported: %s\n  report: %s\n  processed: %s\n",
		entry.URL, entry.ReportPath, entry.ProcessedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return nil
}
