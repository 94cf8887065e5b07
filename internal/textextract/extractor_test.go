package textextract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/fetch"
)

const sponsorText = "Gold Sponsor – $500: logo on jersey, fence banner. " +
	"Silver Sponsor – $250: social media post and a PA announcement at every home game."

func TestChunkBound(t *testing.T) {
	for _, n := range []int{0, 1, 99, 7999, 8000, 8001, 12000, 50000} {
		in := strings.Repeat("é", n)
		out, chunked := Chunk(in, 8000)
		assert.LessOrEqual(t, len(out), len(in)+len(ElisionMarker), "n=%d", n)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), utf8.RuneCountInString(in)+utf8.RuneCountInString(ElisionMarker))
		assert.Equal(t, n > 8000, chunked, "n=%d", n)
	}
}

func TestChunkKeepsOpeningAndClosing(t *testing.T) {
	text := "GOAL" + strings.Repeat("m", 20000) + "ORDER"
	out, chunked := Chunk(text, 1000)
	require.True(t, chunked)
	assert.True(t, strings.HasPrefix(out, "GOAL"))
	assert.True(t, strings.HasSuffix(out, "ORDER"))
	assert.Contains(t, out, ElisionMarker)
	assert.Equal(t, 600+200+utf8.RuneCountInString(ElisionMarker), utf8.RuneCountInString(out))
}

func TestCleanPage(t *testing.T) {
	in := "  Gold\t\tSponsor   $500 \r\n\r\n\r\n\r\nlogo\x00 on   jersey  "
	assert.Equal(t, "Gold Sponsor $500\n\nlogo on jersey", CleanPage(in))
}

func TestJoinPagesSkipsBlankPages(t *testing.T) {
	assert.Equal(t, "one"+PageSeparator+"two", JoinPages([]string{" one ", "   ", "two"}))
}

func TestExtractShortTextIsNoText(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	text := strings.Repeat("x", 40)
	_, err := e.Extract(context.Background(), fetch.Document{Bytes: []byte(text), ContentType: "text/plain"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoExtractableText)
}

func TestExtractPlainTextChunks(t *testing.T) {
	e := NewExtractor(Config{BudgetChars: 200}, nil)
	res, err := e.Extract(context.Background(), fetch.Document{
		Bytes:       []byte(strings.Repeat(sponsorText+"\n", 5)),
		ContentType: "text/plain; charset=utf-8",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.FormatText, res.Format)
	assert.True(t, res.Chunked)
	assert.Contains(t, res.Text, ElisionMarker)
	assert.True(t, strings.HasPrefix(res.Text, "Gold Sponsor"))
}

func TestExtractHTMLStripsMarkup(t *testing.T) {
	page := `<!DOCTYPE html><html><head><style>body{color:red}</style>
<script>var secret = "do not leak";</script></head>
<body><h1>Sponsorship Packages</h1><p>Gold Sponsor &ndash; $500: logo on jersey, fence banner.</p>
<ul><li>Silver Sponsor &amp; friends – $250</li><li>social media post</li></ul>
<p>` + strings.Repeat("Support our youth league this season. ", 3) + `</p></body></html>`

	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), fetch.Document{
		Bytes: []byte(page), ContentType: "text/html",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.FormatHTML, res.Format)
	assert.Contains(t, res.Text, "Gold Sponsor – $500: logo on jersey, fence banner.")
	assert.Contains(t, res.Text, "Silver Sponsor & friends")
	assert.NotContains(t, res.Text, "do not leak")
	assert.NotContains(t, res.Text, "color:red")
	assert.NotContains(t, res.Text, "<p>")
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 720 Td\n(Gold Sponsor \\226 $500:) Tj\n0 -14 Td\n" +
		"[(logo on )-250(jersey\\), fence)] TJ\nT*\n(banner) Tj\nET")
	got := CleanPage(textFromContentStream(stream))
	assert.Equal(t, "Gold Sponsor – $500:\nlogo on jersey), fence\nbanner", got)
}

func TestExtractPDF(t *testing.T) {
	pdf := buildTextPDF(
		"Gold Sponsor \\226 $500: logo on jersey, fence banner.",
		"Silver Sponsor \\226 $250: social media post and a PA announcement.",
	)
	res, err := NewExtractor(Config{MinChars: 20}, nil).Extract(context.Background(), fetch.Document{
		Bytes: pdf, ContentType: "application/octet-stream",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.FormatPDF, res.Format)
	assert.Equal(t, "pdfcpu", res.Method)
	assert.Equal(t, 2, res.PagesTotal)
	assert.Contains(t, res.Text, "Gold Sponsor – $500: logo on jersey, fence banner.")
	assert.Contains(t, res.Text, PageSeparator+"Silver Sponsor")
}

func TestExtractPDFPageCap(t *testing.T) {
	pages := make([]string, 5)
	for i := range pages {
		pages[i] = fmt.Sprintf("Page %d lists the Bronze package benefits.", i+1)
	}
	res, err := NewExtractor(Config{MaxPages: 3, MinChars: 20}, nil).Extract(context.Background(), fetch.Document{
		Bytes: buildTextPDF(pages...),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, res.PagesTotal)
	assert.Equal(t, 3, res.Pages)
	assert.True(t, res.Truncated)
	assert.Contains(t, res.Text, "Page 3")
	assert.NotContains(t, res.Text, "Page 4")
}

type fakeRunner struct {
	out  string
	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	return []byte(f.out), nil, nil
}

func TestExtractPDFFallsBackToPdftotext(t *testing.T) {
	r := &fakeRunner{out: sponsorText + "\f" + "Second page with more sponsorship detail.\f"}
	e := NewExtractor(Config{Pdftotext: "pdftotext"}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), fetch.Document{Bytes: []byte("%PDF-1.7\nnot really a pdf")})
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", res.Method)
	assert.Equal(t, "pdftotext", r.name)
	assert.Contains(t, r.args, "-l")
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "Gold Sponsor")
}

func TestExtractCorruptPDFWithoutFallback(t *testing.T) {
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), fetch.Document{Bytes: []byte("%PDF-1.7\ngarbage")})
	assert.ErrorIs(t, err, common.ErrNoExtractableText)
}

type stallingFetcher struct{}

func (stallingFetcher) Fetch(ctx context.Context, _ string) (fetch.Document, error) {
	<-ctx.Done()
	return fetch.Document{}, fmt.Errorf("%w: %v", common.ErrDownloadFailed, ctx.Err())
}

type staticFetcher struct{ doc fetch.Document }

func (s staticFetcher) Fetch(context.Context, string) (fetch.Document, error) { return s.doc, nil }

func TestFetchAndExtractWatchdog(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := NewExtractor(Config{Watchdog: 50 * time.Millisecond}, nil)
	_, err := e.FetchAndExtract(context.Background(), stallingFetcher{}, "https://example.com/deck.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtractionTimeout)
	assert.False(t, errors.Is(err, common.ErrDownloadFailed))
}

func TestFetchAndExtractOK(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	res, err := e.FetchAndExtract(context.Background(), staticFetcher{fetch.Document{
		Bytes: []byte(sponsorText), ContentType: "text/plain",
	}}, "https://example.com/deck.txt")
	require.NoError(t, err)
	assert.Equal(t, sponsorText, res.Text)
}

// buildTextPDF writes a minimal PDF with one Tj line per page and a correct xref table.
func buildTextPDF(pages ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	n := 3 + 2*len(pages)
	offsets := make([]int, n+1)

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), len(pages))
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, text := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i
		stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n", pageObj, contentObj)
		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentObj, len(stream), stream)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", n+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", n+1, xref)
	return []byte(b.String())
}
