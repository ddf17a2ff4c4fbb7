package grpc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/app/tier"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"
)

const (
	errorDomain = "skywatch"

	// UsageMethod is stored as the usage record method for RPCs.
	UsageMethod = "GRPC"
)

var publicMethodPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isPublicMethod(fullMethod string) bool {
	for _, prefix := range publicMethodPrefixes {
		if strings.HasPrefix(fullMethod, prefix) {
			return true
		}
	}
	return false
}

// APIKeyUnaryInterceptor runs the gateway for every non-public RPC. The
// handler's status code, translated to its HTTP equivalent, is what the
// usage record stores.
func APIKeyUnaryInterceptor(gateway *service.Gateway) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if isPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}

		key, err := gateway.Admit(ctx, incomingAPIKeyFromMetadata(ctx))
		if err != nil {
			return nil, rejectionStatus(err)
		}

		start := time.Now()
		resp, err := handler(service.WithAPIKey(ctx, key), req)
		gateway.Complete(ctx, key, newUsage(ctx, info.FullMethod, err, time.Since(start)))

		return resp, err
	}
}

func APIKeyStreamInterceptor(gateway *service.Gateway) gogrpc.StreamServerInterceptor {
	return func(srv any, ss gogrpc.ServerStream, info *gogrpc.StreamServerInfo, handler gogrpc.StreamHandler) error {
		if isPublicMethod(info.FullMethod) {
			return handler(srv, ss)
		}

		key, err := gateway.Admit(ss.Context(), incomingAPIKeyFromMetadata(ss.Context()))
		if err != nil {
			return rejectionStatus(err)
		}

		start := time.Now()
		ctx := service.WithAPIKey(ss.Context(), key)
		err = handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
		gateway.Complete(ctx, key, newUsage(ctx, info.FullMethod, err, time.Since(start)))

		return err
	}
}

// TierUnaryInterceptor rejects calls to the listed methods when the key
// resolved by APIKeyUnaryInterceptor ranks below the required tier.
func TierUnaryInterceptor(required map[string]string) gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		minTier, guarded := required[info.FullMethod]
		if !guarded {
			return handler(ctx, req)
		}

		key, ok := service.APIKeyFromContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "API key required")
		}
		if !tier.Satisfies(key.Tier, minTier) {
			return nil, withDetails(codes.PermissionDenied,
				fmt.Sprintf("This endpoint requires %s tier or higher. Current tier: %s", minTier, key.Tier),
				&errdetails.ErrorInfo{
					Reason:   "INSUFFICIENT_TIER",
					Domain:   errorDomain,
					Metadata: map[string]string{"required_tier": minTier, "current_tier": key.Tier},
				},
			)
		}

		return handler(ctx, req)
	}
}

func rejectionStatus(err error) error {
	var quotaErr *service.QuotaExceededError
	var rateErr *service.RateLimitExceededError

	switch {
	case errors.Is(err, service.ErrMissingAPIKey):
		return unauthenticated("API_KEY_MISSING", "API key required. Include 'x-api-key' or 'authorization: Bearer <key>' metadata.")
	case errors.Is(err, service.ErrAPIKeyDisabled):
		return unauthenticated("API_KEY_DISABLED", "This API key has been disabled.")
	case errors.Is(err, service.ErrInvalidAPIKey):
		return unauthenticated("API_KEY_INVALID", "The provided API key is invalid or has been revoked.")
	case errors.As(err, &quotaErr):
		retry := time.Until(quotaErr.ResetDate)
		if retry < 0 {
			retry = 0
		}
		return withDetails(codes.ResourceExhausted,
			fmt.Sprintf("Monthly quota of %d requests exceeded.", quotaErr.Limit),
			&errdetails.ErrorInfo{
				Reason: "QUOTA_EXCEEDED",
				Domain: errorDomain,
				Metadata: map[string]string{
					"quota_limit":      strconv.FormatInt(quotaErr.Limit, 10),
					"quota_used":       strconv.FormatInt(quotaErr.Used, 10),
					"quota_reset_date": quotaErr.ResetDate.UTC().Format(time.RFC3339),
				},
			},
			&errdetails.QuotaFailure{Violations: []*errdetails.QuotaFailure_Violation{{
				Subject:     "monthly_quota",
				Description: fmt.Sprintf("%d of %d requests used", quotaErr.Used, quotaErr.Limit),
			}}},
			&errdetails.RetryInfo{RetryDelay: durationpb.New(retry)},
		)
	case errors.As(err, &rateErr):
		return withDetails(codes.ResourceExhausted,
			fmt.Sprintf("Rate limit of %d requests per hour exceeded.", rateErr.Limit),
			&errdetails.ErrorInfo{
				Reason: "RATE_LIMIT_EXCEEDED",
				Domain: errorDomain,
				Metadata: map[string]string{
					"rate_limit":  strconv.Itoa(rateErr.Limit),
					"retry_after": strconv.FormatInt(int64(rateErr.RetryAfter.Seconds()), 10),
				},
			},
			&errdetails.QuotaFailure{Violations: []*errdetails.QuotaFailure_Violation{{
				Subject:     "hourly_rate_limit",
				Description: fmt.Sprintf("more than %d requests in the last hour", rateErr.Limit),
			}}},
			&errdetails.RetryInfo{RetryDelay: durationpb.New(rateErr.RetryAfter)},
		)
	default:
		logrus.WithError(err).Error("API key validation failed (grpc)")
		return unauthenticated("API_KEY_UNVERIFIABLE", "Unable to validate API key at this time.")
	}
}

func unauthenticated(reason, message string) error {
	return withDetails(codes.Unauthenticated, message, &errdetails.ErrorInfo{Reason: reason, Domain: errorDomain})
}

func withDetails(code codes.Code, message string, details ...protoadapt.MessageV1) error {
	st := status.New(code, message)
	detailed, err := st.WithDetails(details...)
	if err != nil {
		logrus.WithError(err).Warn("Failed to attach grpc error details")
		return st.Err()
	}
	return detailed.Err()
}

func newUsage(ctx context.Context, fullMethod string, handlerErr error, latency time.Duration) *entity.Usage {
	md, _ := metadata.FromIncomingContext(ctx)
	return &entity.Usage{
		Endpoint:       fullMethod,
		Method:         UsageMethod,
		ResponseStatus: runtime.HTTPStatusFromCode(status.Code(handlerErr)),
		ResponseTimeMS: latency.Milliseconds(),
		UserAgent:      nullString(firstValue(md, "user-agent")),
		IPAddress:      nullString(peerIP(ctx)),
		Timestamp:      time.Now().UTC(),
	}
}

func incomingAPIKeyFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if key := strings.TrimSpace(firstValue(md, "x-api-key")); key != "" {
		return key
	}

	parts := strings.Fields(firstValue(md, "authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type wrappedServerStream struct {
	gogrpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
