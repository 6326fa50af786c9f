package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:          "export",
	Short:        "Print the stored transcript of a session as JSON",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(cmd, func(ctx context.Context, cfg *config.AppConfig, repo core.TranscriptRepository) error {
			t, ok, err := repo.Load(ctx, cfg.SessionID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no transcript stored for session %q", cfg.SessionID)
			}

			data, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if exportOutput == "" || exportOutput == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(exportOutput, data, 0600)
		})
	},
}

var importCmd = &cobra.Command{
	Use:          "import [file]",
	Short:        "Replace the stored transcript of a session with a JSON export",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		t, err := decodeTranscript(r)
		if err != nil {
			return err
		}

		return withRepository(cmd, func(ctx context.Context, cfg *config.AppConfig, repo core.TranscriptRepository) error {
			if err := repo.Save(ctx, cfg.SessionID, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d messages and %d summaries into session %q\n",
				len(t.RawMessages), len(t.Summaries), cfg.SessionID)
			return nil
		})
	},
}

var forgetCmd = &cobra.Command{
	Use:          "forget",
	Short:        "Delete the stored transcript of a session",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepository(cmd, func(ctx context.Context, cfg *config.AppConfig, repo core.TranscriptRepository) error {
			return repo.Delete(ctx, cfg.SessionID)
		})
	},
}

// decodeTranscript reads a JSON transcript and checks every message.
func decodeTranscript(r io.Reader) (core.Transcript, error) {
	var t core.Transcript
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return core.Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}
	for i, m := range t.RawMessages {
		if !m.Role.Valid() {
			return core.Transcript{}, fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	return t, nil
}

func withRepository(cmd *cobra.Command, fn func(context.Context, *config.AppConfig, core.TranscriptRepository) error) error {
	ctx, flushLog := setupLogger(cmd.Context())
	defer flushLog()

	cfg, err := loadAppConfig(ctx)
	if err != nil {
		return err
	}
	repo, closeRepo, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if repo == nil {
		return errors.New("transcript storage is disabled (STORE_BACKEND=none)")
	}
	defer closeRepo()

	return fn(ctx, cfg, repo)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd, importCmd, forgetCmd)
}
