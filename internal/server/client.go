package server

import (
	"context"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

// AnalysisClient calls sponsorship.v1.AnalysisService with the JSON codec.
// It satisfies analysis.StatusGetter, so it can be polled.
type AnalysisClient struct {
	cc grpc.ClientConnInterface
}

func NewAnalysisClient(cc grpc.ClientConnInterface) *AnalysisClient {
	return &AnalysisClient{cc: cc}
}

func (c *AnalysisClient) Submit(ctx context.Context, req analysis.SubmitRequest, opts ...grpc.CallOption) (analysis.SubmitResponse, error) {
	var out analysis.SubmitResponse
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	err := c.cc.Invoke(ctx, "/"+AnalysisServiceName+"/Submit", &req, &out, opts...)
	return out, err
}

func (c *AnalysisClient) GetStatus(ctx context.Context, jobID string) (analysis.StatusView, error) {
	var out analysis.StatusView
	err := c.cc.Invoke(ctx, "/"+AnalysisServiceName+"/GetStatus", &GetStatusRequest{JobID: jobID}, &out,
		grpc.CallContentSubtype(CodecName))
	return out, err
}
