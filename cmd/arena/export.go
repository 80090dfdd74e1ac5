package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"tagarena"
	"tagarena/cmd/arena/ui"
	"tagarena/store"
)

func exportCmd() *cobra.Command {
	var dbPath, outPath string
	cmd := &cobra.Command{
		Use:   "export <match-id>",
		Short: "Write a plain-text rankings report for an archived match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			m, reason, err := archive.Match(args[0])
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = m.ID + ".txt"
			}
			report := renderReport(m, reason)
			if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Println(ui.SuccessMsg("report written to %s", path))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "/var/lib/tagarena/matches.db", "Archive database path")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default <match-id>.txt)")
	return cmd
}

// renderReport is deliberately plain text: reports get printed and
// pinned to the pit wall.
func renderReport(m tagarena.Match, reason string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Match %s\n", m.ID)
	fmt.Fprintf(&sb, "Started: %s\n", m.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Ended:   %s", m.EndTime.Format("2006-01-02 15:04:05"))
	if reason != "" {
		fmt.Fprintf(&sb, " (%s)", reason)
	}
	sb.WriteString("\n\nFinal rankings\n")

	type ranked struct {
		id tagarena.TeamID
		s  tagarena.Score
	}
	rows := make([]ranked, 0, len(m.Scores))
	for id, s := range m.Scores {
		rows = append(rows, ranked{id: id, s: s})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].s.Points != rows[j].s.Points {
			return rows[i].s.Points > rows[j].s.Points
		}
		return rows[i].id < rows[j].id
	})

	fmt.Fprintf(&sb, "%-5s %-6s %-8s %-7s %-7s %s\n",
		"Rank", "Team", "Points", "Kills", "Deaths", "K/D")
	for i, r := range rows {
		ratio := float64(r.s.Kills)
		if r.s.Deaths > 0 {
			ratio = float64(r.s.Kills) / float64(r.s.Deaths)
		}
		fmt.Fprintf(&sb, "%-5d %-6d %-8d %-7d %-7d %.2f\n",
			i+1, r.id, r.s.Points, r.s.Kills, r.s.Deaths, ratio)
	}

	if len(m.HitLog) > 0 {
		sb.WriteString("\nHit log\n")
		for _, h := range m.HitLog {
			if h.Kind == tagarena.HitAward {
				fmt.Fprintf(&sb, "%7.2fs  award %s to team %d (+%d)\n",
					h.T.Seconds(), h.Category, h.Attacker, h.Points)
				continue
			}
			fmt.Fprintf(&sb, "%7.2fs  team %d tagged team %d (+%d)\n",
				h.T.Seconds(), h.Attacker, h.Defender, h.Points)
		}
	}
	return sb.String()
}
