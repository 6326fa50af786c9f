package core

import (
	"fmt"
	"time"
)

const (
	MythicName          = "Mythic"
	MythicUserAgent     = "Mythic-Orchestrator/0.1"
	MythicRepositoryURL = "https://github.com/sandevgo/mythic"
	MythicVersion       = "0.1.0"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single conversation entry. It is never mutated after creation.
type Message struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	TokenCount int       `json:"token_count"`
}

// Summary replaces a prefix of raw messages.
type Summary struct {
	Text               string    `json:"text"`
	CoversMessageCount int       `json:"covers_message_count"`
	CreatedAt          time.Time `json:"created_at"`
}

// Transcript is the exported conversation state in chronological order.
type Transcript struct {
	Summaries   []Summary `json:"summaries"`
	RawMessages []Message `json:"raw_messages"`
}

// Budget splits the prompt token budget into reserves.
type Budget struct {
	TotalTokens    int `json:"total_tokens"`
	SystemReserve  int `json:"system_reserve"`
	SummaryReserve int `json:"summary_reserve"`
	RecentReserve  int `json:"recent_reserve"`
}

func (b Budget) Validate() error {
	if b.TotalTokens <= 0 {
		return fmt.Errorf("total token budget must be positive, got %d", b.TotalTokens)
	}
	if b.SystemReserve < 0 || b.SummaryReserve < 0 || b.RecentReserve < 0 {
		return fmt.Errorf("token reserves must not be negative: %+v", b)
	}
	if b.SystemReserve+b.SummaryReserve > b.TotalTokens {
		return &ContextOverflowError{
			TotalTokens:    b.TotalTokens,
			SystemReserve:  b.SystemReserve,
			SummaryReserve: b.SummaryReserve,
		}
	}
	if b.SystemReserve+b.SummaryReserve+b.RecentReserve > b.TotalTokens {
		return fmt.Errorf("reserves sum to %d, above total budget %d",
			b.SystemReserve+b.SummaryReserve+b.RecentReserve, b.TotalTokens)
	}
	return nil
}

type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}
