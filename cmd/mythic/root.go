package main

import (
	"context"
	"os"

	"github.com/sandevgo/mythic/internal/config"
	"github.com/sandevgo/mythic/internal/service/ui"
	"github.com/sandevgo/mythic/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug   bool
	session string
)

var rootCmd = &cobra.Command{
	Use:   "mythic",
	Short: "Mythic - a conversational AI worker runtime",
	Long:  `Mythic orchestrates LLM, memory and speech workers into a single conversation.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&session, "session", "s", "", "conversation session id (overrides MYTHIC_SESSION)")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	return log.NewContextWithOptions(ctx, log.Options{
		Debug: debug || config.IsDebug(),
		JSON:  config.IsJSONLog(),
	})
}

// loadAppConfig loads <runtime>/.env into the environment and parses the
// application config, applying command line overrides.
func loadAppConfig(ctx context.Context) (*config.AppConfig, error) {
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, err
	}
	cfg, err := config.ParseAppConfig()
	if err != nil {
		return nil, err
	}
	if session != "" {
		cfg.SessionID = session
	}
	return cfg, nil
}

func CustomizeHelp(rootCmd *cobra.Command) {
	cobra.AddTemplateFunc("StyleTitle", func(s string) string { return ui.TitleStyle.Render(s) })
	cobra.AddTemplateFunc("StyleUsage", func(s string) string { return ui.UsageStyle.Render(s) })
	cobra.AddTemplateFunc("StyleFlag", func(s string) string { return ui.FlagStyle.Render(s) })
	cobra.AddTemplateFunc("StyleDesc", func(s string) string { return ui.DescStyle.Render(s) })

	template := `
{{StyleTitle "USAGE"}}
  {{.UseLine}}
{{if gt (len .Commands) 0}}{{StyleTitle "AVAILABLE COMMANDS"}}
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding}} {{StyleDesc .Short}}{{end}}
{{end}}{{end}}
{{if .HasAvailableLocalFlags}}{{StyleTitle "FLAGS"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}
`
	rootCmd.SetHelpTemplate(template)
}
