package constants

import (
	"bytes"
	"net/http"
	"strings"
	"unicode/utf8"
)

// DocumentFormat is the detected format of a fetched document.
type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatHTML    DocumentFormat = "html"
	FormatText    DocumentFormat = "text"
	FormatUnknown DocumentFormat = "unknown"
)

var pdfMagic = []byte("%PDF-")

// DetectFormat sniffs the payload; the content type from the server is only a hint
// because many hosts serve PDFs as application/octet-stream.
// A PDF must start with the magic after optional leading whitespace or a BOM;
// text that merely quotes it is not a PDF.
func DetectFormat(data []byte, contentType string) DocumentFormat {
	if bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\n\f\r \ufeff"), pdfMagic) {
		return FormatPDF
	}
	sniffed := http.DetectContentType(data)
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(sniffed, "text/html"), strings.Contains(ct, "html"):
		return FormatHTML
	case strings.HasPrefix(sniffed, "text/plain"), strings.HasPrefix(ct, "text/"):
		if utf8.Valid(data) {
			return FormatText
		}
	}
	return FormatUnknown
}
