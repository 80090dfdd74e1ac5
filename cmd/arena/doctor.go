package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tagarena/cmd/arena/ui"
)

func doctorCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check coordinator reachability, roster health, and clock sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newClient(*server).health(cmd.Context())
			if err != nil {
				return err
			}

			reach := ui.SuccessMsg("all %d teams reachable", h.TeamsTotal)
			if !h.AllReachable {
				reach = ui.WarnMsg("%d of %d teams not fully reachable",
					h.TeamsStale+h.TeamsOffline, h.TeamsTotal)
			}
			fmt.Println(reach)
			fmt.Print(ui.KeyValues("  ",
				ui.KV("Online", strconv.Itoa(h.TeamsOnline)),
				ui.KV("Stale", strconv.Itoa(h.TeamsStale)),
				ui.KV("Offline", strconv.Itoa(h.TeamsOffline)),
			))

			if h.NTPPhase != "" {
				pairs := []ui.Pair{
					ui.KV("NTP", h.NTPPhase),
					ui.KV("Offset", fmt.Sprintf("%dms", h.NTPOffsetMS)),
				}
				fmt.Print(ui.KeyValues("  ", pairs...))
			}
			return nil
		},
	}
}
