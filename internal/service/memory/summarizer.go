package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/mythic/internal/core"
	"github.com/sandevgo/mythic/internal/worker"
	"github.com/sandevgo/mythic/pkg/log"
)

const (
	summaryTemperature = 0.3
	// tokens per requested word, to leave the model room to finish
	tokensPerWord = 2
)

var errEmptySummary = errors.New("llm returned an empty summary")

// Summarizer is a memory worker that compresses conversation history with
// the LLM worker.
type Summarizer struct {
	*worker.Lifecycle
	llm core.LLMWorker
}

func NewSummarizer(llm core.LLMWorker, opts ...worker.Option) *Summarizer {
	s := &Summarizer{llm: llm}
	s.Lifecycle = worker.New("memory", worker.Hooks{Init: s.init}, opts...)
	return s
}

func (s *Summarizer) init(ctx context.Context) error {
	if s.llm == nil {
		return errors.New("llm worker is required")
	}
	if err := s.llm.Initialize(ctx); err != nil {
		return fmt.Errorf("llm dependency: %w", err)
	}
	return nil
}

// Summarize returns a summary of at most maxLength words. It never returns an
// empty summary without an error.
func (s *Summarizer) Summarize(ctx context.Context, messages []core.Message, maxLength int) (string, error) {
	if err := s.Check("summarize"); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", s.Track("summarize", errors.New("no messages to summarize"))
	}

	conversation := formatConversation(messages)
	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("summarizing conversation")

	resp, err := s.llm.Generate(ctx, buildSummaryPrompt(conversation, maxLength), core.GenerateOptions{
		MaxTokens:   maxLength * tokensPerWord,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", s.Track("summarize", fmt.Errorf("llm generate: %w", err))
	}

	summary := limitWords(cleanSummary(resp), maxLength)
	if summary == "" {
		return "", s.Track("summarize", errEmptySummary)
	}
	return summary, s.Track("summarize", nil)
}

func formatConversation(msgs []core.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		if m.Role == core.RoleSystem {
			b.WriteString("CONTEXT: ")
		} else {
			b.WriteString(strings.ToUpper(string(m.Role)))
			b.WriteString(": ")
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}

func buildSummaryPrompt(conversation string, maxLength int) string {
	return fmt.Sprintf(
		`Summarize the conversation below in at most %d words. Keep names, facts, decisions and open questions. Merge any CONTEXT line into the summary. Write plain prose without a title. Conversation:
%s`,
		maxLength, conversation,
	)
}

func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	for _, label := range []string{"Summary:", "SUMMARY:", "summary:"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, label))
	}
	return s
}

func limitWords(s string, n int) string {
	if n <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
