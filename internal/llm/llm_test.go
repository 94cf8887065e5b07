package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
)

func TestNormalizeCoercions(t *testing.T) {
	raw := `{
		"fundingGoal": "$12,500.00",
		"term": "  2025 season ",
		"impact": null,
		"totalSupported": "120",
		"packages": [
			{"name": " Gold Sponsor ", "cost": "$1,000", "rawPlacements": ["logo on jersey", "  ", "fence banner", 42]},
			{"name": "", "cost": 50, "rawPlacements": ["ignored"]},
			{"name": "Silver", "cost": -5, "rawPlacements": "social media post"},
			{"name": "Bronze", "cost": "call us"},
			"not an object"
		]
	}`
	got, err := Normalize([]byte(raw))
	require.NoError(t, err)

	require.NotNil(t, got.FundingGoal)
	assert.Equal(t, 12500.0, *got.FundingGoal)
	assert.Equal(t, "2025 season", got.Term)
	assert.Equal(t, "", got.Impact)
	require.NotNil(t, got.TotalSupported)
	assert.Equal(t, 120, *got.TotalSupported)

	require.Len(t, got.Packages, 3)
	assert.Equal(t, "Gold Sponsor", got.Packages[0].Name)
	assert.Equal(t, 1000.0, *got.Packages[0].Cost)
	assert.Equal(t, []string{"logo on jersey", "fence banner", "42"}, got.Packages[0].RawPlacements)

	assert.Nil(t, got.Packages[1].Cost)
	assert.Equal(t, []string{"social media post"}, got.Packages[1].RawPlacements)

	assert.Nil(t, got.Packages[2].Cost)
	assert.NotNil(t, got.Packages[2].RawPlacements)
	assert.Empty(t, got.Packages[2].RawPlacements)
}

func TestNormalizeRejectsFractionalCount(t *testing.T) {
	got, err := Normalize([]byte(`{"totalSupported": 12.5, "packages": [{"name": "A"}]}`))
	require.NoError(t, err)
	assert.Nil(t, got.TotalSupported)
}

func TestNormalizeCapsPlacementLength(t *testing.T) {
	long := strings.Repeat("word ", 60)
	got, err := Normalize([]byte(fmt.Sprintf(`{"packages": [{"name": "A", "rawPlacements": [%q]}]}`, long)))
	require.NoError(t, err)
	p := got.Packages[0].RawPlacements[0]
	assert.LessOrEqual(t, len([]rune(p)), MaxPlacementChars)
	assert.Equal(t, strings.TrimSpace(p), p)
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`{"fundingGoal": "1,200", "term": " Fall ", "packages": [{"name": "Gold", "cost": "$500", "rawPlacements": ["a", " b "]}]}`,
		`{"packages": [{"name": "Only", "rawPlacements": "` + strings.Repeat("x ", 80) + `"}]}`,
		`{"fundingGoal": null, "term": null, "impact": "Buys helmets", "totalSupported": 40, "packages": [{"name": 2025}]}`,
	}
	for _, in := range inputs {
		first, err := Normalize([]byte(in))
		require.NoError(t, err, in)

		b, err := json.Marshal(first)
		require.NoError(t, err)
		second, err := Normalize(b)
		require.NoError(t, err)
		assert.Equal(t, first, second, in)
	}
}

func TestNormalizeErrors(t *testing.T) {
	_, err := Normalize([]byte(`not json`))
	assert.ErrorIs(t, err, common.ErrMalformedResponse)

	_, err = Normalize([]byte(`null`))
	assert.ErrorIs(t, err, common.ErrMalformedResponse)

	_, err = Normalize([]byte(`{"packages": [{"name": "  "}, {"cost": 100}]}`))
	assert.ErrorIs(t, err, common.ErrNoPackagesExtracted)

	_, err = Normalize([]byte(`{"term": "2025"}`))
	assert.ErrorIs(t, err, common.ErrNoPackagesExtracted)
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```  ", `{"a":1}`},
		{"```json{\"a\":1}```", `{"a":1}`},
		{`  {"a":1} `, `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StripCodeFences(tc.in))
	}
}

func TestValidateExtraction(t *testing.T) {
	assert.NoError(t, ValidateExtraction([]byte(`{"fundingGoal": "$5", "packages": [{"name": "A", "cost": null, "rawPlacements": ["x"]}]}`)))
	assert.NoError(t, ValidateExtraction([]byte(`{}`)))
	assert.Error(t, ValidateExtraction([]byte(`[1, 2]`)))
	assert.Error(t, ValidateExtraction([]byte(`{"packages": "Gold"}`)))
	assert.Error(t, ValidateExtraction([]byte(`{"packages": [{"cost": {"amount": 5}}]}`)))
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	limited := &AttemptError{Status: http.StatusTooManyRequests, Err: errors.New("slow down")}
	failed := &AttemptError{Status: http.StatusBadGateway, Err: errors.New("bad gateway")}

	assert.Equal(t, 2*time.Second, p.Delay(1, limited))
	assert.Equal(t, 4*time.Second, p.Delay(2, limited))
	assert.Equal(t, 8*time.Second, p.Delay(3, limited))
	assert.Equal(t, time.Second, p.Delay(1, failed))
	assert.Equal(t, 2*time.Second, p.Delay(2, failed))
}

func TestExhaustedMapsSentinels(t *testing.T) {
	assert.ErrorIs(t, Exhausted(&AttemptError{Status: 429, Err: errors.New("x")}, 3), common.ErrRateLimited)
	assert.ErrorIs(t, Exhausted(&AttemptError{Status: 500, Err: errors.New("x")}, 3), common.ErrExtractionAPI)
	assert.ErrorIs(t, Exhausted(NewAttemptError(fmt.Errorf("post: %w", errDeadline{}), 0), 3), common.ErrExtractionTimeout)
	assert.NoError(t, Exhausted(nil, 1))
}

type errDeadline struct{}

func (errDeadline) Error() string   { return "i/o timeout" }
func (errDeadline) Timeout() bool   { return true }
func (errDeadline) Temporary() bool { return true }
