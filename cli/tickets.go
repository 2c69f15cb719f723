package cli

import (
	"github.com/spf13/cobra"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/api"
)

func (a *app) ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Ticket numbering tools",
	}

	audit := &cobra.Command{
		Use:   "audit",
		Short: "Report ticket ranges that do not follow the previous week",
		Long: `Ticket ranges are fixed when a statement is first built. If an
earlier week is corrected afterwards, the next range no longer starts right
after it. audit lists every such boundary for a film in a room; stored
ranges are not changed.`,
		Example: `  borderel tickets audit --film 3 --room 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			film, _ := cmd.Flags().GetInt64("film")
			room, _ := cmd.Flags().GetInt64("room")

			engine, closeFn, err := a.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			drifts, err := engine.Allocator.Audit(cmd.Context(), accounting.FilmID(film), accounting.RoomID(room))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.ToTicketDriftDTOs(drifts))
		},
	}
	audit.Flags().Int64("film", 0, "Film ID")
	audit.Flags().Int64("room", 0, "Room ID")
	_ = audit.MarkFlagRequired("film")
	_ = audit.MarkFlagRequired("room")

	cmd.AddCommand(audit)
	return cmd
}
