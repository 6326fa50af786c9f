package command

import (
	"context"
	"fmt"
	"time"
)

type StatusCommand struct {
	session Session
}

func NewStatusCommand(session Session) *StatusCommand {
	return &StatusCommand{session: session}
}

func (c *StatusCommand) Name() string { return "status" }

func (c *StatusCommand) Description() string { return "Show worker health" }

func (c *StatusCommand) Execute(context.Context, []string) (string, error) {
	r := c.session.Status()

	workers := make([]string, 0, len(r.Workers))
	for _, w := range r.Workers {
		line := fmt.Sprintf("%s: `%s`", w.Name, w.State)
		if w.LastError != "" {
			line += " " + w.LastError
		}
		workers = append(workers, line)
	}
	if len(workers) == 0 {
		workers = append(workers, "no workers")
	}

	uptime := "not started"
	if !r.StartedAt.IsZero() {
		uptime = r.Uptime.Round(time.Second).String()
	}

	return sections(
		title("Workers"),
		bullets(workers),
		label("Turn", r.Turn.String()),
		label("Turns", fmt.Sprintf("%d completed, %d failed", r.CompletedTurns, r.FailedTurns)),
		label("Uptime", uptime),
	), nil
}
