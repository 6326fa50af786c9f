package events

type Kind string

// Turn lifecycle
const (
	TurnStarted   Kind = "turn.started"
	TurnCompleted Kind = "turn.completed"
	TurnFailed    Kind = "turn.failed"
)

// Conversation input and output
const (
	UserInput         Kind = "user.input"
	ResponseChunk     Kind = "response.chunk"
	ResponseCompleted Kind = "response.completed"
	ResponseFallback  Kind = "response.fallback"
)

// Speech playback
const (
	PlaybackStarted Kind = "playback.started"
	PlaybackChunk   Kind = "playback.chunk"
	PlaybackEnded   Kind = "playback.ended"
	PlaybackSkipped Kind = "playback.skipped"
)

// Background summarization
const (
	SummaryStarted   Kind = "summary.started"
	SummaryCompleted Kind = "summary.completed"
	SummaryFailed    Kind = "summary.failed"
)

const (
	WorkerStateChanged Kind = "worker.state_changed"
	Error              Kind = "error"
)

// Payload keys
const (
	KeyTurnID    = "turn_id"
	KeyText      = "text"
	KeyInput     = "input"
	KeyResponse  = "response"
	KeyOrigin    = "origin"
	KeyErrorKind = "error_kind"
	KeyError     = "error"
	KeyAudio     = "audio"
	KeyBytes     = "bytes"
	KeyVoice     = "voice"
	KeyReason    = "reason"
	KeyMessages  = "messages"
	KeyCovers    = "covers"
	KeyTokens    = "tokens"
	KeyWorker    = "worker"
	KeyFrom      = "from"
	KeyTo        = "to"
)
