package orchestrator

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/sandevgo/mythic/internal/service/orchestrator"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
)
