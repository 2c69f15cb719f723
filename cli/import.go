package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/api"
	"github.com/cinemacentral/borderel/logger"
	"github.com/cinemacentral/borderel/posexport"
)

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import one day of POS export",
		Long: `Import a point-of-sale day export (CSV) for one sale date.

Rows are grouped per film and room. Re-importing the same date replaces
the stored totals instead of adding to them.`,
		Example: `  borderel import --date 2024-03-15 --file kassa-2024-03-15.csv
  borderel import --date 2024-03-15 --file export.csv --delimiter ';'`,
		RunE: a.runImport,
	}
	cmd.Flags().String("date", "", "Sale date (format: YYYY-MM-DD)")
	cmd.Flags().String("file", "", "POS export file")
	cmd.Flags().String("delimiter", ",", "CSV field delimiter")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("import")

	date, err := dateFlag(cmd, "date")
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	delim, _ := cmd.Flags().GetString("delimiter")
	if utf8.RuneCountInString(delim) != 1 {
		return fmt.Errorf("--delimiter must be a single character")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	comma, _ := utf8.DecodeRuneInString(delim)
	rows, err := posexport.Reader{Comma: comma}.Read(f)
	if err != nil {
		return fmt.Errorf("failed to read export %s: %w", path, err)
	}

	engine, closeFn, err := a.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := engine.Importer.Import(cmd.Context(), accounting.ImportRequest{
		Date:       date,
		SourceFile: filepath.Base(path),
		Rows:       rows,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("date", accounting.FormatDate(date)).
		Int("rows", len(rows)).
		Int("saved", res.Saved).
		Int("failed", len(res.Failed())).
		Msg("Import finished")

	if err := printJSON(cmd.OutOrStdout(), api.ToImportResponse(res)); err != nil {
		return err
	}
	if n := len(res.Failed()); n > 0 {
		return fmt.Errorf("%d of %d rows not saved", n, len(res.Rows))
	}
	return nil
}
