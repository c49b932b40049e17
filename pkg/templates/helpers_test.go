package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdown(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"plain text":      {"Hook for woodworking niche", "Hook for woodworking niche"},
		"bold marker":     {"This is *huge*", "This is \\*huge\\*"},
		"metric snippet":  {"Views: 1,234.56 (+5%)", "Views: 1,234\\.56 \\(\\+5%\\)"},
		"error payload":   {"provider error (code=-401)", "provider error \\(code\\=\\-401\\)"},
		"every delimiter": {"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, EscapeMarkdown(tc.in))
		})
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"plain text":         {"Trend report", "Trend report"},
		"backslash escaped":  {`a\b`, `a\\b`},
		"reserved set":       {"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
		"mixed with content": {"1,234.56 views (+5.2%)", "1,234\\.56 views \\(\\+5\\.2%\\)"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, EscapeMarkdownV2(tc.in))
		})
	}
}

func TestEscapeMarkdownV2Code(t *testing.T) {
	assert.Equal(t, "const x = \\`tmpl\\`", EscapeMarkdownV2Code("const x = `tmpl`"))
	assert.Equal(t, `path\\to\\file`, EscapeMarkdownV2Code(`path\to\file`))
	// Other reserved characters stay literal inside code blocks
	assert.Equal(t, "a+b=(c)", EscapeMarkdownV2Code("a+b=(c)"))
}

func TestEscapeMarkdownV2Link(t *testing.T) {
	assert.Equal(t, "https://example.com/trends", EscapeMarkdownV2Link("https://example.com/trends"))
	assert.Equal(t,
		"https://en.wikipedia.org/wiki/Markdown_(software\\)",
		EscapeMarkdownV2Link("https://en.wikipedia.org/wiki/Markdown_(software)"))
}

func TestSafeText(t *testing.T) {
	// Invalid UTF-8 from upstream payloads is dropped before escaping
	assert.Equal(t, "provider error \\(code\\=\\-401\\)", SafeText("provider\xff error (code=-401)"))
	assert.Equal(t, "Views: 100 \\(high\\)", SafeText("Views: 100 (high)"))
}

func TestSafeTextV2(t *testing.T) {
	assert.Equal(t, "provider error \\(code\\=\\-401\\)", SafeTextV2("provider\xff error (code=-401)"))
	assert.Equal(t, `a\\b \(c\)`, SafeTextV2(`a\b (c)`))
}
