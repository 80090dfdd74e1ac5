package main

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tagarena/cmd/arena/ui"
)

func teamsCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List registered teams with liveness and scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := newClient(*server).teams(cmd.Context())
			if err != nil {
				return err
			}
			if len(report.Teams) == 0 {
				fmt.Println(ui.InfoMsg("no teams registered"))
				return nil
			}

			teams := make([]teamRow, 0, len(report.Teams))
			for _, t := range report.Teams {
				teams = append(teams, t)
			}
			slices.SortFunc(teams, func(a, b teamRow) int { return a.TeamID - b.TeamID })

			rows := make([][]string, 0, len(teams))
			for _, t := range teams {
				rows = append(rows, []string{
					strconv.Itoa(t.TeamID),
					t.TeamName,
					t.RobotName,
					ui.Liveness(t.Liveness),
					ui.Ready(t.Ready),
					strconv.Itoa(t.Points),
					fmt.Sprintf("%d/%d", t.Kills, t.Deaths),
					disabledLabel(t),
				})
			}
			fmt.Println(ui.Table(
				[]string{"ID", "Team", "Robot", "Link", "Ready", "Points", "K/D", "Status"},
				rows))
			fmt.Println(ui.Muted(fmt.Sprintf("match running: %t, awards allowed: %t",
				report.MatchRunning, report.AwardsAllowed)))
			return nil
		},
	}
}

func disabledLabel(t teamRow) string {
	if !t.Disabled {
		return ui.Muted("active")
	}
	until := time.Unix(0, int64(t.DisabledUntil*float64(time.Second)))
	remaining := time.Until(until).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return ui.ErrorStyle.Render(fmt.Sprintf("disabled by %d (%s)", t.DisabledBy, remaining))
}
