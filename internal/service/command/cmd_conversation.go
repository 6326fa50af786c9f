package command

import (
	"context"
	"fmt"
)

type ClearCommand struct {
	session Session
}

func NewClearCommand(session Session) *ClearCommand {
	return &ClearCommand{session: session}
}

func (c *ClearCommand) Name() string { return "clear" }

func (c *ClearCommand) Description() string { return "Forget the conversation" }

func (c *ClearCommand) Execute(context.Context, []string) (string, error) {
	c.session.Engine().Clear()
	return success("Conversation cleared"), nil
}

type StatsCommand struct {
	session Session
}

func NewStatsCommand(session Session) *StatsCommand {
	return &StatsCommand{session: session}
}

func (c *StatsCommand) Name() string { return "stats" }

func (c *StatsCommand) Description() string { return "Show conversation statistics" }

func (c *StatsCommand) Execute(context.Context, []string) (string, error) {
	s := c.session.Engine().Stats()
	summary := "none"
	if s.HasSummary {
		summary = fmt.Sprintf("covers %d messages", s.SummarizedMessages)
	}
	return sections(
		title("Conversation"),
		label("Messages", fmt.Sprintf("%d (user %d, assistant %d)", s.TotalMessages, s.UserMessages, s.AssistantMessages)),
		label("Raw tokens", fmt.Sprint(s.RawTokens)),
		label("Summary", summary),
		label("Summarizing", fmt.Sprint(s.Summarizing)),
	), nil
}

type SummarizeCommand struct {
	session Session
}

func NewSummarizeCommand(session Session) *SummarizeCommand {
	return &SummarizeCommand{session: session}
}

func (c *SummarizeCommand) Name() string { return "summarize" }

func (c *SummarizeCommand) Description() string { return "Summarize older messages now" }

func (c *SummarizeCommand) Execute(ctx context.Context, _ []string) (string, error) {
	engine := c.session.Engine()
	if err := engine.SummarizeNow(ctx); err != nil {
		return "", err
	}
	return success(fmt.Sprintf("Summary now covers %d messages", engine.Stats().SummarizedMessages)), nil
}
