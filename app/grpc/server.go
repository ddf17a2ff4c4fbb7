package grpc

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	UsageServiceName    = "skywatch.v1.UsageService"
	SightingServiceName = "skywatch.v1.SightingService"

	GetUsageMethod      = "/" + UsageServiceName + "/GetUsage"
	GetShapeStatsMethod = "/" + SightingServiceName + "/GetShapeStats"
)

// MethodTiers lists the RPCs that require a minimum tier.
var MethodTiers = map[string]string{
	GetShapeStatsMethod: tier.Basic,
}

// NewServer builds a gRPC server with the gateway interceptors, the usage
// and sighting services and the standard health service.
func NewServer(gateway *service.Gateway, apiKeyService service.APIKeyService, sightingService service.SightingService) *gogrpc.Server {
	server := gogrpc.NewServer(
		gogrpc.ChainUnaryInterceptor(
			APIKeyUnaryInterceptor(gateway),
			TierUnaryInterceptor(MethodTiers),
		),
		gogrpc.ChainStreamInterceptor(APIKeyStreamInterceptor(gateway)),
	)

	server.RegisterService(&UsageServiceDesc, NewUsageServer(apiKeyService))
	server.RegisterService(&SightingServiceDesc, NewSightingServer(sightingService))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(UsageServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(SightingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server
}

type UsageServiceServer interface {
	GetUsage(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

type UsageServer struct {
	apiKeyService service.APIKeyService
}

func NewUsageServer(apiKeyService service.APIKeyService) *UsageServer {
	return &UsageServer{apiKeyService: apiKeyService}
}

// GetUsage returns the same summary as GET /v1/auth/usage for the calling key.
func (s *UsageServer) GetUsage(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	key, ok := service.APIKeyFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "API key required")
	}

	stats, err := s.apiKeyService.UsageStats(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("api_key_id", key.ID).Error("Usage stats failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	endpoints := make([]interface{}, 0, len(stats.MostUsedEndpoints))
	for _, e := range stats.MostUsedEndpoints {
		endpoints = append(endpoints, map[string]interface{}{"endpoint": e.Endpoint, "count": e.Count})
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"api_key_id":          key.ID,
		"tier":                key.Tier,
		"hourly_rate_limit":   tier.HourlyRateLimit(key.Tier),
		"total_requests":      stats.TotalRequests,
		"requests_this_month": stats.RequestsThisMonth,
		"quota_limit":         stats.QuotaLimit,
		"quota_used":          stats.QuotaUsed,
		"quota_remaining":     stats.QuotaRemaining,
		"quota_reset_date":    stats.QuotaResetDate.UTC().Format(time.RFC3339),
		"most_used_endpoints": endpoints,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to encode usage stats (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

type SightingServiceServer interface {
	GetShapeStats(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

type SightingServer struct {
	sightingService service.SightingService
}

func NewSightingServer(sightingService service.SightingService) *SightingServer {
	return &SightingServer{sightingService: sightingService}
}

func (s *SightingServer) GetShapeStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	counts, err := s.sightingService.ShapeStats(ctx)
	if err != nil {
		logrus.WithError(err).Error("Shape stats failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	out, err := structpb.NewStruct(shapeStatsMap(counts))
	if err != nil {
		logrus.WithError(err).Error("Failed to encode shape stats (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

func shapeStatsMap(counts []entity.ShapeCount) map[string]interface{} {
	shapes := make([]interface{}, 0, len(counts))
	var total int64
	for _, c := range counts {
		shapes = append(shapes, map[string]interface{}{"shape": c.Shape, "count": c.Count})
		total += c.Count
	}
	return map[string]interface{}{"shapes": shapes, "total": total}
}
