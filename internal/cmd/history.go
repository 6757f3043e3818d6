package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/draftprune/internal/core/store"
	"github.com/namelens/draftprune/internal/output"
)

var (
	historyOutput string
	historyOut    string
	historyOutDir string
	historyRunID  string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled delete attempts",
	Long: `Show delete attempts recorded by runs started with --journal.

Entries are listed newest first. Use --run to restrict the listing to one run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(historyOutput, output.FormatTable)
		if err != nil {
			return err
		}

		query := store.DeletionQuery{
			RunID: strings.TrimSpace(historyRunID),
			Limit: historyLimit,
		}
		if query.RunID == "" {
			query.All = true
		}

		db, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		records, err := db.ListDeletions(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath, err := resolveOutPath(historyOut, historyOutDir, "history", format)
		if err != nil {
			return err
		}
		sink, err := openSink(outPath, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if len(records) == 0 && format == output.FormatTable {
			_, err = fmt.Fprintln(sink.writer, "(no journaled deletions)")
			return err
		}

		rendered, err := output.NewFormatter(format).FormatDeletions(records)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyOutput, "output-format", string(output.FormatTable), "Output format: text|table|json|yaml")
	historyCmd.Flags().StringVar(&historyOut, "out", "", "Write output to a file (default stdout)")
	historyCmd.Flags().StringVar(&historyOutDir, "out-dir", "", "Write output to a directory")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Only show entries from this run id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum number of entries (0 for all)")

	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
