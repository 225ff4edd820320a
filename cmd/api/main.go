package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	goredis "github.com/redis/go-redis/v9"

	config "skeenode/configs"
	"skeenode/pkg/api"
	"skeenode/pkg/api/middleware"
	"skeenode/pkg/auth"
	"skeenode/pkg/bootstrap"
	"skeenode/pkg/coordination/etcd"
	"skeenode/pkg/cronschedule"
	"skeenode/pkg/logger"
	"skeenode/pkg/pipeline"
	"skeenode/pkg/store/postgres"
)

func main() {
	cfg := config.LoadConfig()

	if _, err := logger.Init(logger.DefaultConfig("skeenode-api")); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Get().Info("starting up")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	connStr := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := postgres.New(connStr)
	if err != nil {
		logger.Get().Fatal("failed to initialize storage", zap.Error(err))
	}
	defer db.Close()
	logger.Get().Info("postgres connected")

	etcdCoord, err := etcd.NewEtcdCoordinator(cfg.EtcdEndpoints, cfg.LeaderElectionTTL)
	if err != nil {
		logger.Get().Fatal("failed to connect to etcd", zap.Error(err))
	}
	defer etcdCoord.Close()
	logger.Get().Info("etcd connected")

	nodeID, err := os.Hostname()
	if err != nil || nodeID == "" {
		nodeID = "api-" + time.Now().Format("150405")
	}
	if err := etcdCoord.RegisterNode(ctx, nodeID); err != nil {
		logger.Get().Warn("failed to register node", zap.Error(err))
	}

	providers := bootstrap.Providers(cfg)
	agents := bootstrap.Agents(cfg, providers)

	logs, err := bootstrap.LogStore(cfg)
	if err != nil {
		logger.Get().Fatal("failed to initialize log store", zap.Error(err))
	}

	tracer, err := bootstrap.Tracing(ctx, cfg, "skeenode-api")
	if err != nil {
		logger.Get().Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer tracer.Shutdown(context.Background())

	p := pipeline.New(pipeline.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		MaxQueueSize:      cfg.MaxQueueSize,
		RetryDelayBase:    cfg.RetryDelayBase,
		RetryDelayCap:     cfg.RetryDelayCap,
		NodeID:            nodeID,
		Logs:              logs,
		Tracer:            tracer,
	}, db, agents, nil)
	p.Start(ctx)

	authConfig, err := buildAuthConfig(cfg)
	if err != nil {
		logger.Get().Fatal("failed to configure authentication", zap.Error(err))
	}

	// A local, never-.Run() scheduler value solely so the API can reuse
	// RunNow against the shared store and in-process pipeline; the real
	// sweep loop belongs exclusively to cmd/scheduler.
	runNowScheduler := cronschedule.New(cronschedule.Config{}, db, p)

	server := api.NewServer(api.Config{
		Port:          cfg.APIPort,
		JobStore:      db,
		ScheduleStore: db,
		Pipeline:      p,
		Agents:        agents,
		Providers:     providers,
		Coordinator:   etcdCoord,
		Auth:          authConfig,
		Tracer:        tracer,
		Scheduler:     runNowScheduler,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Get().Error("server error", zap.Error(err))
		}
	}()

	logger.Get().Info("server started", zap.String("port", cfg.APIPort))

	sig := <-sigChan
	logger.Get().Info("received signal, shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Get().Error("shutdown error", zap.Error(err))
	}
	if err := p.Stop(10 * time.Second); err != nil {
		logger.Get().Error("pipeline shutdown error", zap.Error(err))
	}

	cancel()
	logger.Get().Info("shutdown complete")
}

// buildAuthConfig wires JWT and API-key authentication when AUTH_ENABLED is
// set. The API key store needs a raw go-redis client, dialed separately
// from the cross-node task queue since pkg/store/redis doesn't expose its
// underlying client.
func buildAuthConfig(cfg *config.Config) (*middleware.AuthConfig, error) {
	if !cfg.AuthEnabled {
		return nil, nil
	}

	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.SecretKey = cfg.JWTSecret
	jwtCfg.Issuer = cfg.JWTIssuer
	jwtService, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jwt service: %w", err)
	}

	redisAddr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
	client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	keyStore := auth.NewRedisAPIKeyStore(client)

	return &middleware.AuthConfig{
		JWTService:  jwtService,
		APIKeyStore: keyStore,
		SkipPaths:   []string{"/health", "/metrics"},
	}, nil
}
