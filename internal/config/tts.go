package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/mythic/pkg/log"
)

type TTSConfig struct {
	BaseURL string   `env:"TTS_BASE_URL" envDefault:"https://api.openai.com"`
	APIKey  string   `env:"TTS_API_KEY"`
	Model   string   `env:"TTS_MODEL" envDefault:"tts-1"`
	Voice   string   `env:"TTS_VOICE" envDefault:"alloy"`
	Voices  []string `env:"TTS_VOICES" envSeparator:"," envDefault:"alloy,echo,fable,onyx,nova,shimmer"`
	Format  string   `env:"TTS_FORMAT" envDefault:"mp3"`

	RequestTimeout time.Duration `env:"TTS_REQUEST_TIMEOUT" envDefault:"60s"`
}

func ParseTTSConfig() (*TTSConfig, error) {
	c := &TTSConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	return c, nil
}

func NewTTSConfig(ctx context.Context) *TTSConfig {
	c, err := ParseTTSConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse TTS config")
	}
	return c
}
