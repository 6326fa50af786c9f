package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"MYTHIC_RUNTIME_PATH" envDefault:".mythic"`
	SessionID   string `env:"MYTHIC_SESSION" envDefault:"default"`

	// Transport Flags
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableCLI      bool `env:"ENABLE_CLI" envDefault:"true"`
	EnableTTS      bool `env:"ENABLE_TTS" envDefault:"false"`
	Stream         bool `env:"MYTHIC_STREAM" envDefault:"false"`

	SystemPrompt string `env:"MYTHIC_SYSTEM_PROMPT" envDefault:"You are Mythic, a helpful voice assistant. Keep answers short and conversational."`

	// Context Management
	MaxHistoryLength        int `env:"MYTHIC_MAX_HISTORY_LENGTH" envDefault:"50"`
	SummaryTriggerThreshold int `env:"MYTHIC_SUMMARY_TRIGGER_THRESHOLD" envDefault:"20"`
	RecentTailSize          int `env:"MYTHIC_RECENT_TAIL_SIZE" envDefault:"6"`
	SummaryMaxWords         int `env:"MYTHIC_SUMMARY_MAX_WORDS" envDefault:"150"`

	// Token Budget
	TotalTokenBudget     int `env:"MYTHIC_TOTAL_TOKEN_BUDGET" envDefault:"4096"`
	SystemReserveTokens  int `env:"MYTHIC_SYSTEM_RESERVE_TOKENS" envDefault:"512"`
	SummaryReserveTokens int `env:"MYTHIC_SUMMARY_RESERVE_TOKENS" envDefault:"512"`
	RecentReserveTokens  int `env:"MYTHIC_RECENT_RESERVE_TOKENS" envDefault:"2560"`

	OperationTimeout time.Duration `env:"MYTHIC_OPERATION_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout  time.Duration `env:"MYTHIC_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AutosaveInterval time.Duration `env:"MYTHIC_AUTOSAVE_INTERVAL" envDefault:"30s"`

	// Generation
	MaxResponseTokens int     `env:"MYTHIC_MAX_RESPONSE_TOKENS" envDefault:"140"`
	Temperature       float64 `env:"MYTHIC_TEMPERATURE" envDefault:"0.7"`
}

const defaultRuntimeDir = ".mythic"

// ParseAppConfig reads the application config from the environment.
func ParseAppConfig() (*AppConfig, error) {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c, nil
}

// GetRuntimePath resolves MYTHIC_RUNTIME_PATH before the config is parsed,
// so the .env inside the runtime directory can be loaded first.
func GetRuntimePath() string {
	return resolveRuntimePath(os.Getenv("MYTHIC_RUNTIME_PATH"))
}

// resolveRuntimePath anchors relative and ~ paths at the home directory.
func resolveRuntimePath(path string) string {
	if path == "" {
		path = defaultRuntimeDir
	}
	path = strings.TrimPrefix(path, "~/")
	if filepath.IsAbs(path) {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, path)
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c, err := ParseAppConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) Budget() core.Budget {
	return core.Budget{
		TotalTokens:    c.TotalTokenBudget,
		SystemReserve:  c.SystemReserveTokens,
		SummaryReserve: c.SummaryReserveTokens,
		RecentReserve:  c.RecentReserveTokens,
	}
}

func (c AppConfig) GenerateOptions() core.GenerateOptions {
	return core.GenerateOptions{
		MaxTokens:   c.MaxResponseTokens,
		Temperature: c.Temperature,
	}
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetSystemPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetIdentityPath() string {
	return filepath.Join(c.RuntimePath, "IDENTITY.md")
}

func (c AppConfig) GetUserProfilePath() string {
	return filepath.Join(c.RuntimePath, "USER.md")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "mythic.db")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
