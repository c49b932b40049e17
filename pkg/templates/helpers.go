package templates

import "strings"

// Escape sets per the Telegram Bot API formatting rules. Markdown and
// MarkdownV2 share the same reserved characters, but V2 additionally
// requires the backslash itself to be escaped; code and link contexts
// only reserve their delimiters.
const (
	markdownReserved   = "_*[]()~`>#+-=|{}.!"
	markdownV2Reserved = "\\" + markdownReserved
	codeReserved       = "\\`"
	linkReserved       = "\\)"
)

var (
	markdownEscaper   = newEscaper(markdownReserved)
	markdownV2Escaper = newEscaper(markdownV2Reserved)
	codeEscaper       = newEscaper(codeReserved)
	linkEscaper       = newEscaper(linkReserved)
)

func newEscaper(reserved string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(reserved))
	for _, ch := range reserved {
		pairs = append(pairs, string(ch), `\`+string(ch))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes reserved characters for the legacy Markdown
// parse mode.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// EscapeMarkdownV2 escapes reserved characters for MarkdownV2,
// backslashes included.
func EscapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}

// EscapeMarkdownV2Code escapes the characters reserved inside code and
// pre entities.
func EscapeMarkdownV2Code(code string) string {
	return codeEscaper.Replace(code)
}

// EscapeMarkdownV2Link escapes the characters reserved inside the URL
// part of an inline link.
func EscapeMarkdownV2Link(url string) string {
	return linkEscaper.Replace(url)
}

// SafeText strips invalid UTF-8 and escapes the text for Markdown.
// Script bodies and collector errors pass through here before they are
// interpolated into notification templates.
func SafeText(text string) string {
	return EscapeMarkdown(strings.ToValidUTF8(text, ""))
}

// SafeTextV2 strips invalid UTF-8 and escapes the text for MarkdownV2.
func SafeTextV2(text string) string {
	return EscapeMarkdownV2(strings.ToValidUTF8(text, ""))
}
