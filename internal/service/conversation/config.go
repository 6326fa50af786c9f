package conversation

import (
	"fmt"
	"time"
)

type Config struct {
	SystemPrompt string
	// MaxHistoryLength caps how many of the newest raw messages are eligible
	// for the recent window. Zero means no cap.
	MaxHistoryLength int
	// SummaryTriggerThreshold (T): summarization starts once the raw count exceeds it.
	SummaryTriggerThreshold int
	// RecentTailSize (K): messages always left raw by a triggered summarization.
	RecentTailSize   int
	SummaryMaxLength int
	OperationTimeout time.Duration
}

func (c Config) Validate() error {
	if c.RecentTailSize < 0 {
		return fmt.Errorf("recent tail size must not be negative, got %d", c.RecentTailSize)
	}
	if c.SummaryTriggerThreshold <= c.RecentTailSize {
		return fmt.Errorf("summary trigger threshold %d must be greater than recent tail size %d",
			c.SummaryTriggerThreshold, c.RecentTailSize)
	}
	if c.MaxHistoryLength < 0 {
		return fmt.Errorf("max history length must not be negative, got %d", c.MaxHistoryLength)
	}
	if c.SummaryMaxLength <= 0 {
		return fmt.Errorf("summary max length must be positive, got %d", c.SummaryMaxLength)
	}
	return nil
}
