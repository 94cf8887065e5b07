package textextract

import (
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// reBlockEnd marks tags after which a visual line ends.
var reBlockEnd = regexp.MustCompile(`(?i)<(?:br|hr|/p|/div|/li|/tr|/h[1-6]|/td|/th|/section|/article|/table)\b[^>]*>`)

var strict = bluemonday.StrictPolicy()

// htmlText strips all markup (script and style bodies included) and returns one page.
func htmlText(data []byte) string {
	marked := reBlockEnd.ReplaceAll(data, []byte("$0\n"))
	return html.UnescapeString(string(strict.SanitizeBytes(marked)))
}
