package srv

import (
	"context"
	"time"

	"github.com/sandevgo/mythic/pkg/log"
)

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// StartServices runs every service on its own goroutine. A start error is fatal.
func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Fatal().Err(err).Msgf("%T failed to start", service)
			}
		}(service)
	}
}

// ShutdownServices waits for ctx to be cancelled, then shuts services down in
// reverse start order. Each Shutdown gets a fresh context bounded by timeout.
func ShutdownServices(ctx context.Context, services []Service, timeout time.Duration) {
	<-ctx.Done()
	ShutdownNow(context.WithoutCancel(ctx), services, timeout)
}

func ShutdownNow(ctx context.Context, services []Service, timeout time.Duration) {
	logger := log.FromCtx(ctx)
	for i := len(services) - 1; i >= 0; i-- {
		sctx, cancel := context.WithTimeout(ctx, timeout)
		if err := services[i].Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
		cancel()
	}
}
