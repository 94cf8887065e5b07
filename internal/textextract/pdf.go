package textextract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfPages reads at most maxPages pages of text with pdfcpu. total is the
// document's page count.
func pdfPages(data []byte, maxPages int) (pages []string, total int, err error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	total = ctx.PageCount
	n := total
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	pages = make([]string, 0, n)
	for pageNr := 1; pageNr <= n; pageNr++ {
		pages = append(pages, pdfPageText(ctx, pageNr))
	}
	return pages, total, nil
}

func pdfPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromContentStream(data)
}

// textOpRe matches text-showing operators ([..] TJ, (..) Tj, (..) ', (..) ")
// and the positioning operators that end a visual line.
var textOpRe = regexp.MustCompile(`\[((?:\\.|[^\]\\])*)\]\s*TJ|\(((?:\\.|[^\\)])*)\)\s*(?:Tj|'|")|\b(T\*|Td|TD|ET)(?:\s|$)`)

var stringLitRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream pulls literal strings out of a page content stream.
// Hex strings (CID fonts) are not decoded; those documents fall back to pdftotext.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, m := range textOpRe.FindAllSubmatch(data, -1) {
		switch {
		case m[1] != nil:
			for _, lit := range stringLitRe.FindAllSubmatch(m[1], -1) {
				sb.WriteString(decodePDFString(lit[1]))
			}
		case m[2] != nil:
			sb.WriteString(decodePDFString(m[2]))
		default:
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// winAnsiHigh covers the WinAnsi code points that differ from Latin-1.
var winAnsiHigh = map[byte]rune{
	0x80: '€', 0x85: '…', 0x91: '‘', 0x92: '’', 0x93: '“', 0x94: '”',
	0x95: '•', 0x96: '–', 0x97: '—', 0x99: '™',
}

// decodePDFString resolves escape sequences and maps bytes as WinAnsi.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	put := func(b byte) {
		if r, ok := winAnsiHigh[b]; ok {
			sb.WriteRune(r)
			return
		}
		sb.WriteRune(rune(b))
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			put(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '\\', '(', ')':
			sb.WriteByte(c)
		case '\n':
			// line continuation
		default:
			if c >= '0' && c <= '7' {
				j := i
				for j < len(raw) && j < i+3 && raw[j] >= '0' && raw[j] <= '7' {
					j++
				}
				v, _ := strconv.ParseUint(string(raw[i:j]), 8, 8)
				put(byte(v))
				i = j - 1
			} else {
				put(c)
			}
		}
	}
	return sb.String()
}

// pdftotextPages runs poppler's pdftotext on a temp copy of the document.
// Pages come back separated by form feeds.
func (e *Extractor) pdftotextPages(ctx context.Context, data []byte, maxPages int) ([]string, error) {
	f, err := os.CreateTemp("", "sa-doc-*.pdf")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, f.Name(), "-")
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, args...)
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}
