// Command robotd is the on-robot agent daemon. Hardware sits behind
// the robot.Actuator and robot.Emitter ports; this binary ships with a
// logging simulator so the full network stack can run off-robot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagarena/config"
	"tagarena/internal/logging"
	"tagarena/robot"
	"tagarena/transport"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "robotd",
		Short: "Laser-tag robot agent",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&configPath, "config", "/etc/tagarena/robot.yaml", "Config file path")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Team.TeamID == 0 {
		return errMissingTeam
	}

	endpoint, err := transport.Listen(cfg.Network.RobotListenPort)
	if err != nil {
		return err
	}
	defer endpoint.Stop()

	agent := robot.New(cfg, endpoint, &simActuator{}, &simEmitter{})
	endpoint.Start(ctx, agent.Handle)
	agent.Start(ctx)
	defer agent.Stop()
	slog.Info("robot agent up", "team", cfg.Team.TeamID, "listen_port", cfg.Network.RobotListenPort)

	<-ctx.Done()
	return nil
}
