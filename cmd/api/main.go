package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nsprdjake/bailey-dashboard/internal/api"
	"github.com/nsprdjake/bailey-dashboard/internal/auth"
	"github.com/nsprdjake/bailey-dashboard/internal/config"
	"github.com/nsprdjake/bailey-dashboard/internal/domain"
	"github.com/nsprdjake/bailey-dashboard/internal/events"
	"github.com/nsprdjake/bailey-dashboard/internal/logging"
	"github.com/nsprdjake/bailey-dashboard/internal/persistence/memory"
	"github.com/nsprdjake/bailey-dashboard/internal/persistence/postgres"
	"github.com/nsprdjake/bailey-dashboard/internal/storage"
	syncsvc "github.com/nsprdjake/bailey-dashboard/internal/sync"
	httptransport "github.com/nsprdjake/bailey-dashboard/internal/transport/http"
	"github.com/nsprdjake/bailey-dashboard/internal/tryfi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store domain.Store
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		store = postgres.NewRepository(pool)
	} else {
		logger.Warn().Msg("POSTGRES_URL not set; using in-memory store")
		store = memory.New()
	}

	domainOpts := []domain.Option{}
	if cfg.StorageConfigured() {
		photos, err := storage.NewPhotoStore(ctx, storage.Config{
			Endpoint:     cfg.StorageEndpoint,
			Region:       cfg.StorageRegion,
			Bucket:       cfg.StorageBucket,
			AccessKey:    cfg.StorageAccessKey,
			SecretKey:    cfg.StorageSecretKey,
			PublicURL:    cfg.StoragePublicURL,
			UsePathStyle: cfg.StorageUsePathStyle,
			PresignTTL:   cfg.StoragePresignTTL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure photo storage")
		}
		if err := photos.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Str("bucket", cfg.StorageBucket).Msg("photo bucket unavailable")
		}
		domainOpts = append(domainOpts, domain.WithObjectStore(photos))
	}
	service := domain.NewService(store, domainOpts...)

	publisher := events.New(cfg.KafkaBrokers, cfg.SyncEventsTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing event publisher")
		}
	}()

	vendorHTTP := &http.Client{Timeout: cfg.VendorTimeout}
	sessions := tryfi.NewSessionClient(cfg.FiBaseURL, vendorHTTP, tryfi.WithSessionCookie(cfg.FiSessionCookie))
	vendor := tryfi.NewClient(cfg.FiBaseURL, vendorHTTP)
	syncer := syncsvc.NewService(syncsvc.Config{
		Email:        cfg.FiEmail,
		Password:     cfg.FiPassword,
		PetID:        cfg.FiPetID,
		PetName:      cfg.FiPetName,
		DefaultDays:  cfg.FiSyncDays,
		Timeout:      cfg.VendorTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
	}, sessions, vendor, store, syncsvc.WithPublisher(publisher))
	if !syncer.Configured() {
		logger.Warn().Msg("FI_EMAIL/FI_PASSWORD not set; sync requests will fail until configured")
	}

	authEnabled := cfg.JWTSecret != ""
	handler := api.NewHandler(service, syncer, api.Options{
		AuthEnabled:    authEnabled,
		SyncRateLimit:  cfg.SyncRateLimit,
		SyncRateWindow: cfg.SyncRateWindow,
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	var authn httptransport.Middleware
	if authEnabled {
		authn = auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}).Wrap
	} else {
		logger.Warn().Msg("JWT_SECRET not set; API is unauthenticated")
	}

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress, cfg.VendorTimeout)
	server := httptransport.NewServer(serverCfg, httptransport.Chain(mux,
		logging.Middleware,
		httptransport.CORS(cfg.CORSOrigin),
		authn,
	))

	if err := httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("server error")
		stop()
		os.Exit(1)
	}
	logger.Info().Msg("bailey-dashboard stopped")
}
