package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/pkg/env"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a default .env into the runtime directory",
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
		envPath := cfg.GetEnvPath()
		if _, err := os.Stat(envPath); err == nil && !forceInit {
			return fmt.Errorf("%s already exists, use --force to overwrite", envPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		llmCfg, err := config.ParseLLMConfig()
		if err != nil {
			return err
		}
		storeCfg, err := config.ParseStorageConfig()
		if err != nil {
			return err
		}
		ttsCfg, err := config.ParseTTSConfig()
		if err != nil {
			return err
		}

		content, err := env.MarshalEnv(cfg, llmCfg, storeCfg, ttsCfg)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}
		if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
			return err
		}

		logger.Info().Msgf("initialized runtime directory at: %s", cfg.RuntimePath)
		logger.Info().Msg("Edit the .env file, then run 'mythic start'.")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing .env")
	rootCmd.AddCommand(initCmd)
}
