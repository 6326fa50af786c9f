package conversation

import (
	"strings"
	"unicode"

	"github.com/sandevgo/mythic/internal/core"
)

const (
	summaryHeader    = "Summary of earlier conversation:\n"
	sectionSeparator = "\n\n"
	lineSeparator    = "\n"
)

var rolePrefix = map[core.Role]string{
	core.RoleUser:      "User: ",
	core.RoleAssistant: "Assistant: ",
	core.RoleSystem:    "System: ",
}

// AssemblePrompt renders the system content, the current summary and the
// newest raw messages that fit their reserves. It is deterministic for a given
// state and budget, never exceeds budget.TotalTokens, and includes the newest
// message whenever RecentReserve is positive.
func (e *Engine) AssemblePrompt(budget core.Budget) (string, error) {
	if err := budget.Validate(); err != nil {
		return "", err
	}
	st := e.current.Load()

	system := e.truncate(e.cfg.SystemPrompt, budget.SystemReserve)

	var summary string
	if st.summary != nil && budget.SummaryReserve > 0 {
		summary = e.truncate(summaryHeader+st.summary.Text, budget.SummaryReserve)
	}

	window := e.recentWindow(st.raw, budget.RecentReserve)

	for {
		prompt := compose(system, summary, window)
		over := e.estimator.EstimateTokens(prompt) - budget.TotalTokens
		if over <= 0 {
			return prompt, nil
		}

		// separators can push the joined prompt past the budget; shrink the
		// least valuable section first
		switch {
		case len(window) > 1:
			window = window[1:]
		case summary != "":
			summary = e.shrink(summary, over)
		case system != "":
			system = e.shrink(system, over)
		case len(window) == 1 && window[0] != "":
			window[0] = e.fitMessage(st.raw[len(st.raw)-1], e.estimator.EstimateTokens(window[0])-over)
		default:
			return prompt, nil
		}
	}
}

// recentWindow returns rendered lines for the newest messages that fit reserve,
// oldest first. Older messages are dropped first; the newest is truncated
// rather than dropped.
func (e *Engine) recentWindow(raw []core.Message, reserve int) []string {
	if reserve <= 0 || len(raw) == 0 {
		return nil
	}
	if limit := e.cfg.MaxHistoryLength; limit > 0 && len(raw) > limit {
		raw = raw[len(raw)-limit:]
	}

	var lines []string
	used := 0
	for i := len(raw) - 1; i >= 0; i-- {
		line := render(raw[i])
		cost := e.estimator.EstimateTokens(line)
		if len(lines) > 0 {
			cost += e.estimator.EstimateTokens(lineSeparator)
		}

		if used+cost > reserve {
			if len(lines) == 0 {
				lines = append(lines, e.fitMessage(raw[i], reserve))
			}
			break
		}
		lines = append(lines, line)
		used += cost
	}

	// collected newest first
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines
}

// fitMessage renders m within limit tokens, cutting the text rather than the
// role prefix. When the prefix leaves no room, only a text prefix is kept.
func (e *Engine) fitMessage(m core.Message, limit int) string {
	if limit <= 0 {
		return ""
	}
	prefix := rolePrefix[m.Role]
	for textLimit := limit - e.estimator.EstimateTokens(prefix); textLimit > 0; textLimit-- {
		text := e.truncate(m.Text, textLimit)
		if text == "" {
			break
		}
		if line := prefix + text; e.estimator.EstimateTokens(line) <= limit {
			return line
		}
	}
	return e.truncate(m.Text, limit)
}

func render(m core.Message) string {
	return rolePrefix[m.Role] + m.Text
}

func compose(system, summary string, window []string) string {
	parts := make([]string, 0, 3)
	if system != "" {
		parts = append(parts, system)
	}
	if summary != "" {
		parts = append(parts, summary)
	}
	if len(window) > 0 {
		parts = append(parts, strings.Join(window, lineSeparator))
	}
	return strings.Join(parts, sectionSeparator)
}

// shrink cuts text so its estimate drops by at least over tokens.
func (e *Engine) shrink(text string, over int) string {
	return e.truncate(text, max(0, e.estimator.EstimateTokens(text)-over))
}

// truncate returns the longest rune prefix of text whose estimate is within
// limit, without trailing whitespace.
func (e *Engine) truncate(text string, limit int) string {
	if limit <= 0 || text == "" {
		return ""
	}
	if e.estimator.EstimateTokens(text) <= limit {
		return text
	}

	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if e.estimator.EstimateTokens(string(runes[:mid])) <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimRightFunc(string(runes[:lo]), unicode.IsSpace)
}
