package main

import (
	"fmt"

	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
	"github.com/sandevgo/mythic/internal/service/ui"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Initialize the workers once and report their health",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()
		logger := log.FromCtx(ctx)

		cfg, err := loadAppConfig(ctx)
		if err != nil {
			return err
		}

		bus := events.NewBus(events.WithHandlerTimeout(cfg.OperationTimeout))
		c, err := initContainer(ctx, cfg, bus)
		if err != nil {
			return err
		}

		o := orchestrator.New(orchestratorConfig(cfg), c, bus)
		startErr := o.Start(ctx)
		defer func() {
			if err := o.Shutdown(ctx); err != nil {
				logger.Warn().Err(err).Msg("shutdown after status check failed")
			}
		}()

		var host *ui.HostStats
		if hs, err := ui.ReadHostStats(ctx); err != nil {
			logger.Debug().Err(err).Msg("host stats unavailable")
		} else {
			host = &hs
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.RenderStatus(o.Status(), host))
		return startErr
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
