package memory

import (
	"os"
	"strings"

	"github.com/sandevgo/mythic/internal/core"
)

// SysPrompt builds the system content from the runtime prompt files.
type SysPrompt struct {
	files    core.PromptFiles
	fallback string
}

func NewSysPrompt(files core.PromptFiles, fallback string) *SysPrompt {
	return &SysPrompt{
		files:    files,
		fallback: fallback,
	}
}

// Build concatenates SYSTEM.md, IDENTITY.md and USER.md, skipping missing
// files. Without any file it returns the fallback prompt.
func (p *SysPrompt) Build() string {
	readFile := func(path string) string {
		content, err := os.ReadFile(path)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(content))
	}

	var parts []string
	for _, path := range []string{p.files.GetSystemPath(), p.files.GetIdentityPath(), p.files.GetUserProfilePath()} {
		if content := readFile(path); content != "" {
			parts = append(parts, content)
		}
	}
	if len(parts) == 0 {
		return p.fallback
	}
	return strings.Join(parts, "\n\n")
}
