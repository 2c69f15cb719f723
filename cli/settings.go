package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/api"
)

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change business settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, closeFn, err := a.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := engine.Settings.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.ToSettingsDTO(snap))
		},
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		Long: `Change settings. Only the flags given are written, all in one
transaction; nothing is written when any value is invalid.`,
		Example: `  borderel settings set --week-start dinsdag --week-counter 5
  borderel settings set --vat 5,66 --author 1,2
  borderel settings set --tickets-volw 1000 --tickets-kind 500`,
		RunE: a.runSettingsSet,
	}
	set.Flags().String("week-start", "", "First day of the speelweek (0-6 or Dutch day name)")
	set.Flags().Int("week-counter", 0, "Number given to the next new speelweek")
	set.Flags().String("vat", "", "VAT percentage (e.g. 5,66)")
	set.Flags().String("author", "", "Author rights percentage (e.g. 1,2)")
	set.Flags().Int("tickets-volw", 0, "Next adult ticket number")
	set.Flags().Int("tickets-kind", 0, "Next child ticket number")

	cmd.AddCommand(show, set)
	return cmd
}

func (a *app) runSettingsSet(cmd *cobra.Command, args []string) error {
	var u accounting.SettingsUpdate
	changed := 0
	flags := cmd.Flags()

	if flags.Changed("week-start") {
		v, _ := flags.GetString("week-start")
		wd, ok := accounting.ParseWeekday(v)
		if !ok {
			return fmt.Errorf("invalid --week-start %q", v)
		}
		u.WeekStartWeekday = &wd
		changed++
	}
	for _, f := range []struct {
		name string
		dst  **int
	}{
		{"week-counter", &u.WeekCounter},
		{"tickets-volw", &u.TicketCounterAdult},
		{"tickets-kind", &u.TicketCounterChild},
	} {
		if flags.Changed(f.name) {
			v, _ := flags.GetInt(f.name)
			*f.dst = &v
			changed++
		}
	}
	for _, f := range []struct {
		name string
		dst  **string
	}{
		{"vat", &u.VATPercent},
		{"author", &u.AuthorPercent},
	} {
		if flags.Changed(f.name) {
			v, _ := flags.GetString(f.name)
			*f.dst = &v
			changed++
		}
	}
	if changed == 0 {
		return fmt.Errorf("no settings given")
	}

	engine, closeFn, err := a.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := engine.Settings.Update(cmd.Context(), u); err != nil {
		return err
	}
	snap, err := engine.Settings.Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), api.ToSettingsDTO(snap))
}
