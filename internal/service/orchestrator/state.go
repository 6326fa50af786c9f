package orchestrator

type TurnState int32

const (
	StateIdle TurnState = iota
	StateAwaitingLLM
	StateAwaitingTTS
	StateError
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLLM:
		return "awaiting_llm"
	case StateAwaitingTTS:
		return "awaiting_tts"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
