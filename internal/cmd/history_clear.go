package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/namelens/draftprune/internal/core/store"
	"github.com/namelens/draftprune/internal/output"
)

var (
	historyClearAll    bool
	historyClearRunID  string
	historyClearYes    bool
	historyClearDryRun bool
	historyClearOutput string
	historyClearOut    string
	historyClearOutDir string
)

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove journaled delete attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(historyClearOutput, output.FormatTable)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable && format != output.FormatText {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		query := store.DeletionQuery{
			All:   historyClearAll,
			RunID: strings.TrimSpace(historyClearRunID),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !historyClearYes && !historyClearDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, err := openConfiguredStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountDeletions(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath, err := resolveOutPath(historyClearOut, historyClearOutDir, "history.clear", format)
		if err != nil {
			return err
		}
		sink, err := openSink(outPath, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if historyClearDryRun {
			return writeHistoryClearResult(format, sink.writer, matched, 0, true)
		}

		removed, err := db.ClearDeletions(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeHistoryClearResult(format, sink.writer, matched, removed, false)
	},
}

func writeHistoryClearResult(format output.Format, w io.Writer, matched int, removed int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"removed": removed,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would remove %d journal entr(ies)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Removed %d/%d journal entr(ies)\n", removed, matched)
	return err
}

func init() {
	historyClearCmd.Flags().BoolVar(&historyClearAll, "all", false, "Remove every entry")
	historyClearCmd.Flags().StringVar(&historyClearRunID, "run", "", "Remove entries of a single run")
	historyClearCmd.Flags().BoolVar(&historyClearYes, "yes", false, "Confirm destructive clear")
	historyClearCmd.Flags().BoolVar(&historyClearDryRun, "dry-run", false, "Show what would be removed")
	historyClearCmd.Flags().StringVar(&historyClearOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	historyClearCmd.Flags().StringVar(&historyClearOut, "out", "", "Write output to a file (default stdout)")
	historyClearCmd.Flags().StringVar(&historyClearOutDir, "out-dir", "", "Write output to a directory")
}
