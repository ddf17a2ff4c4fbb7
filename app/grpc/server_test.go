package grpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/dto"
	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	skygrpc "github.com/vibast-solutions/ms-go-skywatch/app/grpc"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/service/servicetest"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
)

// fakeAPIKeyService only answers UsageStats; other methods panic through
// the nil embedded interface.
type fakeAPIKeyService struct {
	service.APIKeyService
	stats *dto.UsageStats
	err   error
}

func (f *fakeAPIKeyService) UsageStats(ctx context.Context, key *entity.APIKey) (*dto.UsageStats, error) {
	return f.stats, f.err
}

type fakeSightingService struct {
	service.SightingService
	counts []entity.ShapeCount
	err    error
}

func (f *fakeSightingService) ShapeStats(ctx context.Context) ([]entity.ShapeCount, error) {
	return f.counts, f.err
}

func startServer(t *testing.T, store *servicetest.Store, keys service.APIKeyService, sightings service.SightingService) *grpc.ClientConn {
	t.Helper()

	listener := bufconn.Listen(1024 * 1024)
	server := skygrpc.NewServer(servicetest.NewGateway(store), keys, sightings)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServer_GetUsage(t *testing.T) {
	store := servicetest.NewStore()
	reset := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	rawKey, id := store.AddKey(tier.Free, time.Now().Add(24*time.Hour))

	keys := &fakeAPIKeyService{stats: &dto.UsageStats{
		TotalRequests:     12,
		RequestsThisMonth: 5,
		QuotaLimit:        1000,
		QuotaUsed:         5,
		QuotaRemaining:    995,
		QuotaResetDate:    reset,
		MostUsedEndpoints: []entity.EndpointCount{{Endpoint: "/v1/sightings", Count: 4}},
	}}
	conn := startServer(t, store, keys, &fakeSightingService{})

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", rawKey)
	out, err := skygrpc.NewUsageServiceClient(conn).GetUsage(ctx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}

	fields := out.AsMap()
	if fields["tier"] != tier.Free {
		t.Fatalf("unexpected tier: %v", fields["tier"])
	}
	if fields["quota_remaining"] != float64(995) || fields["hourly_rate_limit"] != float64(60) {
		t.Fatalf("unexpected quota fields: %v", fields)
	}
	if fields["quota_reset_date"] != "2026-11-01T00:00:00Z" {
		t.Fatalf("unexpected reset date: %v", fields["quota_reset_date"])
	}
	endpoints, ok := fields["most_used_endpoints"].([]interface{})
	if !ok || len(endpoints) != 1 {
		t.Fatalf("unexpected endpoints: %v", fields["most_used_endpoints"])
	}

	usage := store.Usage()
	if len(usage) != 1 || usage[0].Endpoint != skygrpc.GetUsageMethod || usage[0].ResponseStatus != 200 {
		t.Fatalf("unexpected usage records: %+v", usage)
	}
	if store.Key(id).QuotaUsed != 1 {
		t.Fatalf("expected quota charged once, got %d", store.Key(id).QuotaUsed)
	}
}

func TestServer_GetUsageWithoutKey(t *testing.T) {
	store := servicetest.NewStore()
	conn := startServer(t, store, &fakeAPIKeyService{}, &fakeSightingService{})

	_, err := skygrpc.NewUsageServiceClient(conn).GetUsage(context.Background(), &emptypb.Empty{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if info := errorInfo(t, err); info.Reason != "API_KEY_MISSING" {
		t.Fatalf("unexpected reason: %s", info.Reason)
	}
}

func TestServer_GetUsageServiceFailure(t *testing.T) {
	store := servicetest.NewStore()
	rawKey, _ := store.AddKey(tier.Free, time.Now().Add(24*time.Hour))
	conn := startServer(t, store, &fakeAPIKeyService{err: errors.New("db down")}, &fakeSightingService{})

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", rawKey)
	_, err := skygrpc.NewUsageServiceClient(conn).GetUsage(ctx, &emptypb.Empty{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected internal, got %v", err)
	}

	usage := store.Usage()
	if len(usage) != 1 || usage[0].ResponseStatus != 500 {
		t.Fatalf("expected failed call recorded with status 500, got %+v", usage)
	}
}

func TestServer_GetShapeStatsRequiresBasicTier(t *testing.T) {
	store := servicetest.NewStore()
	freeKey, _ := store.AddKey(tier.Free, time.Now().Add(24*time.Hour))
	basicKey, _ := store.AddKey(tier.Basic, time.Now().Add(24*time.Hour))

	sightings := &fakeSightingService{counts: []entity.ShapeCount{
		{Shape: "light", Count: 7},
		{Shape: "disk", Count: 3},
	}}
	conn := startServer(t, store, &fakeAPIKeyService{}, sightings)
	client := skygrpc.NewSightingServiceClient(conn)

	freeCtx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", freeKey)
	_, err := client.GetShapeStats(freeCtx, &emptypb.Empty{})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if info := errorInfo(t, err); info.Reason != "INSUFFICIENT_TIER" || info.Metadata["required_tier"] != tier.Basic {
		t.Fatalf("unexpected error info: %+v", info)
	}

	basicCtx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", basicKey)
	out, err := client.GetShapeStats(basicCtx, &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetShapeStats failed: %v", err)
	}
	if total := out.AsMap()["total"]; total != float64(10) {
		t.Fatalf("expected total 10, got %v", total)
	}

	usage := store.Usage()
	if len(usage) != 2 {
		t.Fatalf("expected both admitted calls recorded, got %d", len(usage))
	}
	if usage[0].ResponseStatus != 403 || usage[1].ResponseStatus != 200 {
		t.Fatalf("unexpected statuses: %d %d", usage[0].ResponseStatus, usage[1].ResponseStatus)
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	store := servicetest.NewStore()
	conn := startServer(t, store, &fakeAPIKeyService{}, &fakeSightingService{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health status: %v", resp.GetStatus())
	}
	if store.Lookups() != 0 || len(store.Usage()) != 0 {
		t.Fatalf("expected health check to bypass the gateway")
	}
}
