package main

import (
	"os"
	"os/signal"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/sandevgo/mythic/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Mythic services",
	Long:  `Starts the orchestrator, its workers and all enabled transports (CLI, Telegram).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, nil)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long:  `Starts the orchestrator with only the interactive terminal transport.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(cfg *config.AppConfig) {
			cfg.EnableCLI = true
			cfg.EnableTelegram = false
		})
	},
}

// run starts the services and blocks until interrupted or the terminal
// chat exits. override adjusts the loaded config.
func run(cmd *cobra.Command, override func(*config.AppConfig)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// logger setup
	var flushLog func()
	ctx, flushLog = setupLogger(ctx)
	defer flushLog()

	logger := log.FromCtx(ctx)
	logger.Info().Msg("starting mythic")

	cfg, err := loadAppConfig(ctx)
	if err != nil {
		return err
	}
	if override != nil {
		override(cfg)
	}

	services := NewServices(ctx, cfg, stop)

	// Start services
	srv.StartServices(ctx, services)

	// Wait for shutdown signal
	srv.ShutdownServices(ctx, services, cfg.ShutdownTimeout)
	logger.Info().Msg("mythic has been shut down gracefully")

	return nil
}

func init() {
	rootCmd.AddCommand(startCmd, chatCmd)
}
