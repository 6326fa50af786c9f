package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// PrintfLogger adapts the context logger to libraries that log through
// Printf/Fatalf, such as goose.
type PrintfLogger struct {
	logger zerolog.Logger
}

func NewPrintfLogger(ctx context.Context, component string) *PrintfLogger {
	return &PrintfLogger{
		logger: FromCtx(ctx).With().Str("component", component).Logger(),
	}
}

func (p *PrintfLogger) Printf(format string, v ...any) {
	p.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level and leaves exiting to the caller.
func (p *PrintfLogger) Fatalf(format string, v ...any) {
	p.logger.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
