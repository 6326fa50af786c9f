package events

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable notification. The payload shape is determined by Kind
// and is checked by handlers through the typed accessors.
type Event struct {
	id        uuid.UUID
	timestamp time.Time
	source    string
	kind      Kind
	payload   map[string]any
}

func New(source string, kind Kind, payload map[string]any) Event {
	return Event{
		id:        uuid.New(),
		timestamp: time.Now(),
		source:    source,
		kind:      kind,
		payload:   maps.Clone(payload),
	}
}

func (e Event) ID() uuid.UUID        { return e.id }
func (e Event) Timestamp() time.Time { return e.timestamp }
func (e Event) Source() string       { return e.source }
func (e Event) Kind() Kind           { return e.kind }

// Payload returns a copy of the payload map.
func (e Event) Payload() map[string]any {
	return maps.Clone(e.payload)
}

func (e Event) Value(key string) (any, bool) {
	v, ok := e.payload[key]
	return v, ok
}

func (e Event) Str(key string) string {
	v, _ := e.payload[key].(string)
	return v
}

func (e Event) Int(key string) int {
	switch v := e.payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (e Event) Bytes(key string) []byte {
	v, _ := e.payload[key].([]byte)
	return v
}
