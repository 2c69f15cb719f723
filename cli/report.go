package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/api"
	"github.com/cinemacentral/borderel/logger"
)

// =============================================================================
// HISTORY
// =============================================================================

func (a *app) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored daily sales of a period",
		Example: `  borderel history --from 2024-03-01 --to 2024-03-31
  borderel history --from 2024-03-01 --to 2024-03-31 --csv maart.csv`,
		RunE: a.runHistory,
	}
	cmd.Flags().String("from", "", "First day (format: YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last day, inclusive (format: YYYY-MM-DD)")
	cmd.Flags().String("csv", "", "Write the rows to this CSV file instead of printing JSON")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}

	engine, closeFn, err := a.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	rows, err := engine.History.Rows(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("csv"); path != "" {
		return writeHistoryCSVFile(cmd, path, rows)
	}
	period, _ := accounting.NewPeriod(from, to)
	return printJSON(cmd.OutOrStdout(), api.ToHistoryResponse(period, rows, engine.History.Totals(rows)))
}

func writeHistoryCSVFile(cmd *cobra.Command, path string, rows []accounting.HistoryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := api.WriteHistoryCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log := logger.WithComponent("history")
	log.Info().Str("file", path).Int("rows", len(rows)).Msg("History exported")
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// =============================================================================
// STATEMENTS
// =============================================================================

func (a *app) statementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Build the statements of a period",
		Long: `Build one statement per film, room and speelweek with sales in the
period. Ticket ranges are allocated on first build and reused afterwards.

Without --out the batch is printed; with --out each statement is written
to its own JSON file named after the week, distributor and title.`,
		Example: `  borderel statements --from 2024-03-13 --to 2024-03-19
  borderel statements --from 2024-03-13 --to 2024-03-19 --out ./borderellen`,
		RunE: a.runStatements,
	}
	cmd.Flags().String("from", "", "First day (format: YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last day, inclusive (format: YYYY-MM-DD)")
	cmd.Flags().String("out", "", "Directory to write one JSON file per statement")
	return cmd
}

func (a *app) runStatements(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("statements")

	from, err := dateFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")

	engine, closeFn, err := a.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	batch, err := engine.Statements.BuildRange(cmd.Context(), from, to)
	if err != nil {
		return err
	}
	resp := api.ToBatchResponse(batch)

	if out == "" {
		return printJSON(cmd.OutOrStdout(), resp)
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, st := range resp.Statements {
		path := filepath.Join(out, st.FileName+".json")
		if err := writeJSONFile(path, st); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	for _, f := range resp.Failures {
		log.Warn().
			Int64("speelweek_id", f.SpeelweekID).
			Int64("film_id", f.FilmID).
			Int64("room_id", f.RoomID).
			Str("error", f.Error).
			Msg("Statement skipped")
	}
	if len(resp.Failures) > 0 {
		return fmt.Errorf("%d statements failed", len(resp.Failures))
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := printJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
