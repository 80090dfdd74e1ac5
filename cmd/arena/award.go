package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tagarena/cmd/arena/ui"
)

func awardCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "award <team-id> <category>",
		Short: "Grant an objective award (retrieval, steal, possession)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad team id %q", args[0])
			}
			err = newClient(*server).post(cmd.Context(), "/award",
				map[string]any{"team_id": id, "category": args[1]})
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("%s award granted to team %d", args[1], id))
			return nil
		},
	}
}

func readyCheckCmd(server *string) *cobra.Command {
	return &cobra.Command{
		Use:   "readycheck",
		Short: "Poll every operator station for readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := newClient(*server).post(cmd.Context(), "/readycheck", nil); err != nil {
				return err
			}
			fmt.Println(ui.InfoMsg("ready check sent; run 'arena teams' to see responses"))
			return nil
		},
	}
}

func forceReadyCmd(server *string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "forceready <team-id>",
		Short: "Mark a team ready over the operator's head",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad team id %q", args[0])
			}
			err = newClient(*server).post(cmd.Context(), "/forceready",
				map[string]any{"team_id": id, "reason": reason})
			if err != nil {
				return err
			}
			fmt.Println(ui.WarnMsg("team %d forced ready", id))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the override")
	return cmd
}
