// Command operatord is the driver-station proxy daemon. It learns its
// team identity from the robot, registers with the coordinator, and
// relays gated driver input to the robot.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagarena/config"
	"tagarena/internal/logging"
	"tagarena/operator"
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
	var robotIP string
	var debug bool

	cmd := &cobra.Command{
		Use:   "operatord",
		Short: "Laser-tag driver-station proxy",
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
			return run(ctx, configPath, robotIP)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&configPath, "config", "/etc/tagarena/operator.yaml", "Config file path")
	cmd.Flags().StringVar(&robotIP, "robot", "", "Robot IP address (required)")
	_ = cmd.MarkFlagRequired("robot")
	return cmd
}

func run(ctx context.Context, configPath, robotIP string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ip, err := netip.ParseAddr(robotIP)
	if err != nil {
		return fmt.Errorf("parse robot address %q: %w", robotIP, err)
	}
	robotAddr := netip.AddrPortFrom(ip, uint16(cfg.Network.RobotListenPort))

	// Identity comes from the robot, so the conventional base+id port
	// is unknown until the handshake finishes. Bootstrap on an ephemeral
	// socket just long enough to learn who we are.
	boot, err := transport.Listen(0)
	if err != nil {
		return err
	}
	seed := operator.New(cfg, boot, robotAddr,
		operator.WithListenPort(boot.LocalPort()))
	boot.Start(ctx, seed.Handle)

	if err := seed.Handshake(ctx); err != nil {
		boot.Stop()
		return err
	}
	team := seed.Team()
	boot.Stop()

	// Serve on the conventional port, falling back to ephemeral when it
	// is taken. Registrations advertise whichever port we got.
	port := cfg.OperatorPort(team.TeamID)
	endpoint, err := transport.Listen(port)
	if err != nil {
		slog.Warn("operator port unavailable, binding ephemeral", "port", port, "err", err)
		if endpoint, err = transport.Listen(0); err != nil {
			return err
		}
	}
	defer endpoint.Stop()

	proxy := operator.New(cfg, endpoint, robotAddr,
		operator.WithIdentity(team),
		operator.WithListenPort(endpoint.LocalPort()))
	endpoint.Start(ctx, proxy.Handle)

	proxy.Start(ctx)
	defer proxy.Stop()
	slog.Info("operator proxy up", "team", team.TeamID,
		"robot", robotAddr, "listen_port", endpoint.LocalPort())

	<-ctx.Done()
	return nil
}
