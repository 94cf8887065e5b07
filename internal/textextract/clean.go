package textextract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PageSeparator keeps a clear page break marker between pages.
const PageSeparator = "\n\f\n"

// ElisionMarker replaces the middle of over-budget text.
const ElisionMarker = "\n\n[... middle of document omitted ...]\n\n"

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reHorizontal = regexp.MustCompile(`[ \t\v\f\x{00A0}]+`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// CleanPage collapses whitespace runs, drops control characters and trims lines.
// Line breaks survive; more than one blank line collapses to one.
func CleanPage(s string) string {
	if s == "" {
		return s
	}
	s = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t') {
			return -1
		}
		return r
	}, s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reHorizontal.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// JoinPages cleans each page and joins the non-empty ones.
func JoinPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		p = CleanPage(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(PageSeparator)
		}
		b.WriteString(p)
	}
	return b.String()
}

// Chunk bounds text to roughly budget runes by keeping the first 60% and the
// last 20% of the budget around ElisionMarker. Text within budget is returned as is.
func Chunk(text string, budget int) (string, bool) {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text, false
	}
	r := []rune(text)
	head := budget * 60 / 100
	tail := budget * 20 / 100
	return string(r[:head]) + ElisionMarker + string(r[len(r)-tail:]), true
}
