package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/sponsorship-analyzer/constants"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/entity"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeAnalyzer struct {
	submitted []analysis.SubmitRequest
	submitErr error
	views     map[string]analysis.StatusView
	result    *analysis.Result
}

func (f *fakeAnalyzer) Submit(_ context.Context, req analysis.SubmitRequest) (analysis.SubmitResponse, error) {
	if f.submitErr != nil {
		return analysis.SubmitResponse{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return analysis.SubmitResponse{Accepted: true, JobID: req.JobID}, nil
}

func (f *fakeAnalyzer) GetStatus(_ context.Context, jobID string) (analysis.StatusView, error) {
	v, ok := f.views[jobID]
	if !ok {
		return analysis.StatusView{}, common.ErrNotFound
	}
	return v, nil
}

func (f *fakeAnalyzer) GetResult(_ context.Context, jobID string) (*analysis.Result, error) {
	if f.result == nil || f.result.JobID != jobID {
		return nil, common.ErrInvalidTransition
	}
	return f.result, nil
}

type fakeExporter struct{ owner string }

func (f *fakeExporter) ExportOffersXLSX(_ context.Context, ownerID string) ([]byte, error) {
	f.owner = ownerID
	return []byte("PK-xlsx"), nil
}

func newAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{views: map[string]analysis.StatusView{
		"job-ok": {JobID: "job-ok", Status: constants.JobStatusAnalyzing},
		"job-err": {
			JobID: "job-err", Status: constants.JobStatusError, ErrorCategory: constants.ErrorNoText,
			UserMessage: "We couldn't find readable text in your document.", SuggestedAction: "Upload a text-based PDF.",
		},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPSubmit(t *testing.T) {
	fa := newAnalyzer()
	h := NewHTTPHandler(fa, nil, nil, testLogger())

	rec := do(t, h, http.MethodPost, "/api/v1/analyses",
		`{"sourceDocumentUrl":"https://example.com/a.pdf","jobId":"job-1","ownerId":"owner-1"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"accepted":true,"jobId":"job-1"}`, rec.Body.String())
	require.Len(t, fa.submitted, 1)
	assert.Equal(t, "owner-1", fa.submitted[0].OwnerID)

	rec = do(t, h, http.MethodPost, "/api/v1/analyses", `{"nope":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{common.ErrValidation, http.StatusBadRequest},
		{common.ErrAlreadySubmitted, http.StatusConflict},
		{errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		fa := newAnalyzer()
		fa.submitErr = tc.err
		rec := do(t, NewHTTPHandler(fa, nil, nil, testLogger()), http.MethodPost, "/api/v1/analyses",
			`{"sourceDocumentUrl":"https://example.com/a.pdf","ownerId":"o"}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		if tc.code == http.StatusInternalServerError {
			assert.NotContains(t, rec.Body.String(), "connection reset")
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	h := NewHTTPHandler(newAnalyzer(), nil, nil, testLogger())

	rec := do(t, h, http.MethodGet, "/api/v1/analyses/job-err", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view analysis.StatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, constants.JobStatusError, view.Status)
	assert.Equal(t, constants.ErrorNoText, view.ErrorCategory)
	assert.NotEmpty(t, view.SuggestedAction)

	rec = do(t, h, http.MethodGet, "/api/v1/analyses/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPResult(t *testing.T) {
	fa := newAnalyzer()
	fa.result = &analysis.Result{JobID: "job-done", Offer: &entity.Offer{ID: "job-done", Title: "$600 Sponsorship Program"}}
	h := NewHTTPHandler(fa, nil, nil, testLogger())

	rec := do(t, h, http.MethodGet, "/api/v1/analyses/job-done/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "$600 Sponsorship Program")

	rec = do(t, h, http.MethodGet, "/api/v1/analyses/job-ok/result", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHTTPExportAndHealth(t *testing.T) {
	ex := &fakeExporter{}
	healthy := true
	h := NewHTTPHandler(newAnalyzer(), ex, func(context.Context) error {
		if !healthy {
			return errors.New("db down")
		}
		return nil
	}, testLogger())

	rec := do(t, h, http.MethodGet, "/api/v1/owners/owner-9/offers.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-9", ex.owner)
	assert.Equal(t, "PK-xlsx", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func startGRPC(t *testing.T, svc Analyzer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(svc, testLogger())
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCAnalysisService(t *testing.T) {
	fa := newAnalyzer()
	client := NewAnalysisClient(startGRPC(t, fa))
	ctx := context.Background()

	resp, err := client.Submit(ctx, analysis.SubmitRequest{SourceDocumentURL: "https://example.com/a.pdf", JobID: "job-g", OwnerID: "o"})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "job-g", resp.JobID)

	view, err := client.GetStatus(ctx, "job-err")
	require.NoError(t, err)
	assert.Equal(t, constants.ErrorNoText, view.ErrorCategory)

	_, err = client.GetStatus(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	fa.submitErr = common.ErrAlreadySubmitted
	_, err = client.Submit(ctx, analysis.SubmitRequest{JobID: "job-g"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGRPCGetStatusValidatesJobID(t *testing.T) {
	client := NewAnalysisClient(startGRPC(t, newAnalyzer()))
	ctx := context.Background()

	_, err := client.GetStatus(ctx, "  ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "job_id")

	_, err = client.GetStatus(ctx, strings.Repeat("j", 129))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	conn := startGRPC(t, newAnalyzer())
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: AnalysisServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestPollOverGRPC(t *testing.T) {
	client := NewAnalysisClient(startGRPC(t, newAnalyzer()))
	view, err := analysis.Poll(context.Background(), client, "job-err", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusError, view.Status)
}
