package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/api"
)

func (a *app) weekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Resolve, inspect or renumber speelweken",
	}

	resolve := &cobra.Command{
		Use:     "resolve DATE",
		Short:   "Get or create the speelweek of a date",
		Example: `  borderel week resolve 2024-03-15`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := accounting.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("invalid date. Use YYYY-MM-DD: %w", err)
			}
			engine, closeFn, err := a.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			week, err := engine.Calendar.Resolve(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.ToSpeelweekDTO(*week))
		},
	}

	current := &cobra.Command{
		Use:   "current",
		Short: "Print the date range of this week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := a.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := engine.Calendar.Current(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.ToPeriodDTO(p))
		},
	}

	renumber := &cobra.Command{
		Use:     "renumber ID NUMBER",
		Short:   "Correct the week number of a speelweek",
		Example: `  borderel week renumber 12 14`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid speelweek ID %q", args[0])
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid week number %q", args[1])
			}
			engine, closeFn, err := a.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			week, err := engine.History.RenumberWeek(cmd.Context(), accounting.SpeelweekID(id), n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.ToSpeelweekDTO(*week))
		},
	}

	cmd.AddCommand(resolve, current, renumber)
	return cmd
}
