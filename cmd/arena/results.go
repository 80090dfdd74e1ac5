package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"tagarena"
	"tagarena/cmd/arena/ui"
	"tagarena/store"
)

func resultsCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "results [match-id]",
		Short: "Browse archived match results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			if len(args) == 1 {
				return printArchivedMatch(archive, args[0])
			}
			return printMatchList(archive)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "/var/lib/tagarena/matches.db", "Archive database path")
	return cmd
}

func printMatchList(archive *store.Archive) error {
	matches, err := archive.Matches()
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println(ui.InfoMsg("archive is empty"))
		return nil
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			m.ID,
			m.StartedAt.Format("2006-01-02 15:04:05"),
			m.Duration.String(),
			strconv.Itoa(m.Hits),
			m.EndReason,
		})
	}
	fmt.Println(ui.Table([]string{"Match", "Started", "Duration", "Hits", "Ended"}, rows))
	return nil
}

func printArchivedMatch(archive *store.Archive, id string) error {
	m, reason, err := archive.Match(id)
	if err != nil {
		return err
	}

	fmt.Print(ui.KeyValues("  ",
		ui.KV("Match", m.ID),
		ui.KV("Started", m.StartTime.Format("2006-01-02 15:04:05")),
		ui.KV("Ended", m.EndTime.Format("2006-01-02 15:04:05")),
		ui.KV("Reason", reason),
	))

	ids := make([]tagarena.TeamID, 0, len(m.Scores))
	for id := range m.Scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		sc := m.Scores[id]
		rows = append(rows, []string{
			strconv.Itoa(int(id)),
			strconv.Itoa(sc.Points),
			strconv.Itoa(sc.Kills),
			strconv.Itoa(sc.Deaths),
		})
	}
	fmt.Println(ui.Table([]string{"Team", "Points", "Kills", "Deaths"}, rows))

	if len(m.HitLog) > 0 {
		fmt.Println(ui.Bold("Hit log"))
		for _, h := range m.HitLog {
			fmt.Println("  " + hitLine(hitRow{
				Sequence: h.Sequence,
				T:        h.T.Seconds(),
				Attacker: int(h.Attacker),
				Defender: int(h.Defender),
				Points:   h.Points,
				Kind:     h.Kind.String(),
				Category: string(h.Category),
			}))
		}
	}
	return nil
}
