package main

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tagarena"
	"tagarena/config"
	"tagarena/coordinator"
	"tagarena/coordinator/referee"
	"tagarena/internal/signal/ntp"
	"tagarena/internal/telemetry"
	"tagarena/store"
	"tagarena/transport"
)

func run(ctx context.Context, configPath, archivePath string) error {
	cfgStore, err := config.NewStore(configPath)
	if err != nil {
		return err
	}
	cfg := cfgStore.Current()

	shutdownTracing, err := telemetry.Setup(ctx, "arenad")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	endpoint, err := transport.Listen(cfg.Network.CoordinatorPort)
	if err != nil {
		return err
	}

	archive, err := store.Open(archivePath)
	if err != nil {
		endpoint.Stop()
		return err
	}
	defer func() { _ = archive.Close() }()

	coord := coordinator.New(cfg, endpoint)
	writer := store.NewWriter(archive, coord)
	clockHealth := ntp.NewChecker(tagarena.RealClock{})

	ref := referee.New(coord, cfg.DefaultMatchDuration(), referee.WithClockHealth(clockHealth))
	if err := ref.Start(cfg.Network.RefereePort); err != nil {
		endpoint.Stop()
		return err
	}

	endpoint.Start(ctx, coord.Handle)
	coord.Start(ctx)
	slog.Info("coordinator up", "udp_port", cfg.Network.CoordinatorPort,
		"referee_port", cfg.Network.RefereePort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clockHealth.Run(gctx)
		return nil
	})
	g.Go(func() error {
		writer.Run(gctx, coord.Events().Subscribe(gctx))
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		coord.Stop()
		endpoint.Stop()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return ref.Stop(stopCtx)
	})
	return g.Wait()
}
