package telegram

import "strings"

// MarkdownV2 reserves these characters; unescaped occurrences make the
// Bot API reject the whole message.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMarkdown escapes rendered text for the MarkdownV2 parse mode.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
