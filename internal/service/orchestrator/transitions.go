package orchestrator

import (
	"context"

	"github.com/sandevgo/mythic/internal/events"
	"github.com/sandevgo/mythic/internal/worker"
)

// TransitionPublisher returns a worker transition hook that publishes
// worker.state_changed events on bus.
func TransitionPublisher(ctx context.Context, bus *events.Bus) func(worker.Transition) {
	return func(tr worker.Transition) {
		payload := map[string]any{
			events.KeyWorker: tr.Worker,
			events.KeyFrom:   tr.From.String(),
			events.KeyTo:     tr.To.String(),
		}
		if tr.Err != nil {
			payload[events.KeyError] = tr.Err.Error()
		}
		bus.Emit(ctx, "worker", events.WorkerStateChanged, payload)
	}
}
