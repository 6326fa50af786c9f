package command

import (
	"fmt"
	"strings"
)

// Markdown building blocks for command replies. Telegram renders them as
// HTML, the terminal prints them as they are.

func title(s string) string {
	return fmt.Sprintf("⚙️ **%s**\n", s)
}

func success(message string) string {
	return fmt.Sprintf("✅ **%s**\n", message)
}

func failure(err error) string {
	return fmt.Sprintf("❌ **Command Error**\n\n**Issue**: %s\n", err.Error())
}

func label(name, value string) string {
	return fmt.Sprintf("**%s**  ›  `%s`\n", name, value)
}

func bullets(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "› %s\n", item)
	}
	return sb.String()
}

func sections(parts ...string) string {
	return strings.Join(parts, "\n")
}
