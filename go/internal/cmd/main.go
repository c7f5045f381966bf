package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mcdev12/blitz/go/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const releaseVersion = "0.4.0"

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("blitz exited with error")
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "blitz",
		Short:         "Real-time two-player game server with authoritative chess clocks.",
		Args:          cobra.NoArgs,
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.Flags()
	config.RegisterFlags(fs, config.Default())
	v := config.NewViper(fs)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(fs, v)
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		return run(cmd.Context(), cfg)
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("blitz v{{.Version}}\n")

	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	services, err := setupServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	server := setupServer(cfg.Server, services)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return services.Coordinator.Run(gctx)
	})
	g.Go(func() error {
		return services.Dispatcher.Run(gctx)
	})
	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("version", releaseVersion).
			Bool("nats_enabled", cfg.NATS.Enabled).
			Dur("tick_interval", cfg.Clock.TickInterval).
			Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// hijacked WebSocket connections are not closed by server.Shutdown
		services.Gateway.Shutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server exited")
	return nil
}
