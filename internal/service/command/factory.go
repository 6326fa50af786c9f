package command

import (
	"github.com/sandevgo/mythic/internal/service/conversation"
	"github.com/sandevgo/mythic/internal/service/orchestrator"
)

// Session is what the chat commands inspect and control.
type Session interface {
	Engine() *conversation.Engine
	Status() orchestrator.Report
}

func NewCommands(session Session) []Command {
	return []Command{
		NewClearCommand(session),
		NewStatsCommand(session),
		NewSummarizeCommand(session),
		NewStatusCommand(session),
	}
}
