package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tagarena/cmd/arena/ui"
)

func matchCmd(server *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show the current match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newClient(*server).match(cmd.Context())
			if err != nil {
				return err
			}
			printMatch(m)
			return nil
		},
	}
	cmd.AddCommand(armCmd(server))
	cmd.AddCommand(startCmd(server))
	cmd.AddCommand(endCmd(server))
	cmd.AddCommand(cancelCmd(server))
	return cmd
}

func armCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "arm <team-id>...",
		Short: "Arm a match with the given participants",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, a := range args {
				id, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("bad team id %q", a)
				}
				ids = append(ids, id)
			}
			err := newClient(*server).post(cmd.Context(), "/match/arm",
				map[string]any{"participants": ids})
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("match armed with teams %s", strings.Join(args, ", ")))
			return nil
		},
	}
}

func startCmd(server *string) *cobra.Command {
	var durationS int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the armed match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]any{}
			if cmd.Flags().Changed("duration") {
				body["duration_s"] = durationS
			}
			if err := newClient(*server).post(cmd.Context(), "/match/start", body); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("match started"))
			return nil
		},
	}
	cmd.Flags().IntVar(&durationS, "duration", 0, "Match duration in seconds (0 = untimed)")
	return cmd
}

func endCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the running match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := newClient(*server).post(cmd.Context(), "/match/end", nil); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("match ended"))
			return nil
		},
	}
}

func cancelCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the armed match before it starts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := newClient(*server).post(cmd.Context(), "/match/cancel", nil); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("match cancelled"))
			return nil
		},
	}
}

func printMatch(m matchReport) {
	pairs := []ui.Pair{
		ui.KV("Phase", ui.Phase(m.Phase)),
	}
	if m.MatchID != "" {
		pairs = append(pairs, ui.KV("Match", m.MatchID))
	}
	if m.DurationS > 0 {
		pairs = append(pairs, ui.KV("Duration", (time.Duration(m.DurationS)*time.Second).String()))
	}
	fmt.Print(ui.KeyValues("  ", pairs...))

	if len(m.Scores) > 0 {
		ids := make([]string, 0, len(m.Scores))
		for id := range m.Scores {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			sc := m.Scores[id]
			rows = append(rows, []string{
				id,
				strconv.Itoa(sc["points"]),
				strconv.Itoa(sc["kills"]),
				strconv.Itoa(sc["deaths"]),
			})
		}
		fmt.Println(ui.Table([]string{"Team", "Points", "Kills", "Deaths"}, rows))
	}

	if len(m.HitLog) > 0 {
		fmt.Println(ui.Bold("Hit log"))
		for _, h := range m.HitLog {
			fmt.Println("  " + hitLine(h))
		}
	}
}

func hitLine(h hitRow) string {
	at := ui.Muted(fmt.Sprintf("%7.2fs", h.T))
	if h.Kind == "award" {
		return fmt.Sprintf("%s  %s %s to team %d (+%d)",
			at, ui.Accent("award"), h.Category, h.Attacker, h.Points)
	}
	return fmt.Sprintf("%s  team %d tagged team %d (+%d)",
		at, h.Attacker, h.Defender, h.Points)
}
