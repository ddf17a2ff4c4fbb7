package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	skygrpc "github.com/vibast-solutions/ms-go-skywatch/app/grpc"
	"github.com/vibast-solutions/ms-go-skywatch/app/metrics"
	"github.com/vibast-solutions/ms-go-skywatch/app/ratelimit"
	"github.com/vibast-solutions/ms-go-skywatch/app/repository"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
	"github.com/vibast-solutions/ms-go-skywatch/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start the HTTP (Echo) and gRPC servers. Every non-public request passes the API key gateway.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	sightingRepo := repository.NewSightingRepository(db)

	var store ratelimit.Store
	switch cfg.RateLimitBackend {
	case config.RateLimitBackendMySQL:
		store = ratelimit.NewSQLStore(db)
	default:
		store = ratelimit.NewMemoryStore()
	}
	defer store.Close()
	limiter := ratelimit.NewSlidingWindowLimiter(store)

	var (
		registry    *prometheus.Registry
		gatewayOpts []service.GatewayOption
	)
	if cfg.MetricsEnabled {
		registry = metrics.NewRegistry()
		observer, err := metrics.NewGateway(registry)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to register gateway metrics")
		}
		gatewayOpts = append(gatewayOpts, service.WithGatewayObserver(observer))
	}

	gateway := service.NewGateway(
		service.NewKeyStore(apiKeyRepo),
		service.NewQuotaTracker(apiKeyRepo),
		limiter,
		service.NewUsageLedger(usageRepo),
		gatewayOpts...,
	)

	userAuthService := service.NewUserAuthService(userRepo, cfg)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, usageRepo, cfg)
	sightingService := service.NewSightingService(sightingRepo)

	e := newHTTPServer(cfg, httpDeps{
		gateway:         gateway,
		userAuthService: userAuthService,
		apiKeyService:   apiKeyService,
		sightingService: sightingService,
		registry:        registry,
	})
	grpcServer := skygrpc.NewServer(gateway, apiKeyService, sightingService)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		grpcAddr := net.JoinHostPort(cfg.GRPCHost, cfg.GRPCPort)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return err
		}
		logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		limiter.RunSweeper(gctx, cfg.RateLimitSweepEvery, func(removed int, err error) {
			if err != nil {
				logrus.WithError(err).Warn("Rate limit sweep failed")
				return
			}
			logrus.WithField("removed", removed).Debug("Rate limit windows swept")
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("HTTP server shutdown failed")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("Server stopped")
	}
	logrus.Info("Server stopped")
}
