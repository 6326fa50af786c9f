package conv

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

const extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock

var (
	// Allowed tags https://core.telegram.org/bots/api#html-style
	telegramPolicy = bluemonday.NewPolicy().
			AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")

	// speechPolicy keeps only block breaks so formatting markers never reach TTS.
	speechPolicy = bluemonday.NewPolicy().AllowElements("p", "br")
)

func init() {
	telegramPolicy.AllowAttrs("href").OnElements("a")
	telegramPolicy.AllowAttrs("class").OnElements("code")
}

// render converts markdown to HTML and sanitizes it with policy.
func render(md []byte, flags html.Flags, policy *bluemonday.Policy) []byte {
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: flags})
	return policy.SanitizeBytes(markdown.Render(p.Parse(md), renderer))
}

// MarkdownToTelegramHTML renders an LLM response for Telegram's HTML parse mode.
func MarkdownToTelegramHTML(md []byte) string {
	return string(render(md, html.CommonFlags|html.HrefTargetBlank, telegramPolicy))
}

// MarkdownToSpeech renders markdown as plain text suitable for synthesis.
func MarkdownToSpeech(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}

	rendered := string(render([]byte(md), html.CommonFlags, speechPolicy))
	text, err := html2text.FromString(rendered, html2text.Options{OmitLinks: true})
	if err != nil {
		text = rendered
	}
	return strings.Join(strings.Fields(text), " ")
}
