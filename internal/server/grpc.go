package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/sponsorship-analyzer/internal/common"
	"github.com/joseph-ayodele/sponsorship-analyzer/internal/services/analysis"
)

const AnalysisServiceName = "sponsorship.v1.AnalysisService"

const maxJobIDLen = 128

// GetStatusRequest is the GetStatus input message.
type GetStatusRequest struct {
	JobID string `json:"jobId"`
}

// AnalysisServiceServer is the server API for sponsorship.v1.AnalysisService.
type AnalysisServiceServer interface {
	Submit(context.Context, *analysis.SubmitRequest) (*analysis.SubmitResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*analysis.StatusView, error)
}

// AnalysisServer adapts Analyzer to gRPC, converting errors to status codes.
type AnalysisServer struct {
	svc    Analyzer
	logger *slog.Logger
}

func NewAnalysisServer(svc Analyzer, logger *slog.Logger) *AnalysisServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisServer{svc: svc, logger: logger}
}

func (s *AnalysisServer) Submit(ctx context.Context, req *analysis.SubmitRequest) (*analysis.SubmitResponse, error) {
	resp, err := s.svc.Submit(ctx, *req)
	if err != nil {
		return nil, s.toStatus("submit", err)
	}
	return &resp, nil
}

func (s *AnalysisServer) GetStatus(ctx context.Context, req *GetStatusRequest) (*analysis.StatusView, error) {
	v := common.NewValidator().Field("job_id", req.JobID, common.Required, common.MaxLen(maxJobIDLen))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	view, err := s.svc.GetStatus(ctx, req.JobID)
	if err != nil {
		return nil, s.toStatus("get_status", err)
	}
	return &view, nil
}

func (s *AnalysisServer) toStatus(op string, err error) error {
	st := common.ToStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error("grpc."+op+".failed", "error", err)
	}
	return st
}

func _AnalysisService_Submit_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(analysis.SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AnalysisServiceName + "/Submit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalysisServiceServer).Submit(ctx, req.(*analysis.SubmitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnalysisService_GetStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + AnalysisServiceName + "/GetStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalysisServiceServer).GetStatus(ctx, req.(*GetStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AnalysisServiceDesc is written by hand; requests use the JSON codec.
var AnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalysisServiceName,
	HandlerType: (*AnalysisServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: _AnalysisService_Submit_Handler},
		{MethodName: "GetStatus", Handler: _AnalysisService_GetStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sponsorship/v1/analysis",
}

func RegisterAnalysisServiceServer(s grpc.ServiceRegistrar, srv AnalysisServiceServer) {
	s.RegisterService(&AnalysisServiceDesc, srv)
}

// NewGRPCServer returns a server with the analysis and health services registered.
func NewGRPCServer(svc Analyzer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	RegisterAnalysisServiceServer(gs, NewAnalysisServer(svc, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AnalysisServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	return gs, hs
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
