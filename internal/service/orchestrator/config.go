package orchestrator

import (
	"errors"
	"time"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/service/conversation"
)

const (
	DefaultFallbackText    = "Sorry, I couldn't complete that. Please try again."
	DefaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	Conversation conversation.Config
	Budget       core.Budget

	OperationTimeout time.Duration
	ShutdownTimeout  time.Duration

	// EnableTTS resolves a TTS worker and speaks every response.
	EnableTTS bool
	Voice     string
	// Stream generates with GenerateStream and publishes response.chunk events.
	Stream   bool
	Generate core.GenerateOptions

	// FallbackText is published as response.fallback when a turn fails
	// before a response was delivered.
	FallbackText string
}

func (c Config) validate() error {
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	if c.OperationTimeout <= 0 {
		return errors.New("operation timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}
