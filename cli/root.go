// Package cli is the borderel command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/config"
	"github.com/cinemacentral/borderel/logger"
	"github.com/cinemacentral/borderel/store/sqlstore"
)

var version = "1.0.0"

// app carries the configuration shared by every command.
type app struct {
	cfg *config.Config
}

// NewRootCmd builds the command tree. Database flags override cfg.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:   "borderel",
		Short: "Box-office accounting for cinema programming weeks",
		Long: `borderel imports daily point-of-sale exports, groups them into
speelweken (programming weeks) and produces the weekly statement
("borderel") per film and room, with continuous ticket numbering.

The database is configured through DB_DRIVER and DB_DSN (or the flags
below); business settings such as the week start day and tax rates are
stored in the database and edited with "borderel settings".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.DBDriver, "db-driver", cfg.DBDriver, "Database driver (sqlite, mysql)")
	root.PersistentFlags().StringVar(&a.cfg.DBDSN, "db-dsn", cfg.DBDSN, "Database DSN or SQLite file path")

	root.AddCommand(
		a.serveCmd(),
		a.importCmd(),
		a.historyCmd(),
		a.statementsCmd(),
		a.settingsCmd(),
		a.weekCmd(),
		a.ticketsCmd(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if err := NewRootCmd(cfg).Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad input, 3 for missing data and 1 otherwise.
func exitCode(err error) int {
	switch {
	case accounting.IsClientError(err):
		return 2
	case accounting.IsNotFound(err):
		return 3
	default:
		return 1
	}
}

// openEngine opens the configured store. The returned func closes it.
func (a *app) openEngine() (*accounting.Engine, func(), error) {
	st, err := sqlstore.Open(a.cfg.DBDriver, a.cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	log := logger.WithComponent("cmd")
	log.Debug().
		Str("dialect", st.Dialect()).
		Msg("Database opened")
	closeFn := func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
	return accounting.NewEngine(st, nil), closeFn, nil
}

// dateFlag reads a required YYYY-MM-DD flag.
func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, fmt.Errorf("--%s is required (format: YYYY-MM-DD)", name)
	}
	d, err := accounting.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s. Use YYYY-MM-DD: %w", name, err)
	}
	return d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
