// Command arena is the referee's console. It drives the coordinator's
// HTTP surface for match control and reads the SQLite archive for past
// results.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tagarena/cmd/arena/ui"
	"tagarena/internal/logging"
)

func main() {
	var (
		debug   bool
		noColor bool
		server  string
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "arena",
		Short:         "Laser-tag tournament referee console",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.Configure(noColor)
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().StringVar(&server, "server", "http://localhost:6700", "Referee endpoint base URL")

	root.AddCommand(teamsCmd(&server))
	root.AddCommand(matchCmd(&server))
	root.AddCommand(awardCmd(&server))
	root.AddCommand(readyCheckCmd(&server))
	root.AddCommand(forceReadyCmd(&server))
	root.AddCommand(doctorCmd(&server))
	root.AddCommand(resultsCmd())
	root.AddCommand(exportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
