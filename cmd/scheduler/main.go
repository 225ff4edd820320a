package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "skeenode/configs"
	"skeenode/pkg/bootstrap"
	"skeenode/pkg/coordination/etcd"
	"skeenode/pkg/cronschedule"
	"skeenode/pkg/logger"
	"skeenode/pkg/reaper"
	"skeenode/pkg/store/postgres"
	"skeenode/pkg/store/redis"
)

func main() {
	cfg := config.LoadConfig()

	if _, err := logger.Init(logger.DefaultConfig("skeenode-scheduler")); err != nil {
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

	redisAddr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
	queue, err := redis.New(redisAddr)
	if err != nil {
		logger.Get().Fatal("failed to initialize redis queue", zap.Error(err))
	}
	defer queue.Close()
	logger.Get().Info("redis connected")

	etcdCoord, err := etcd.NewEtcdCoordinator(cfg.EtcdEndpoints, cfg.LeaderElectionTTL)
	if err != nil {
		logger.Get().Fatal("failed to connect to etcd", zap.Error(err))
	}
	defer etcdCoord.Close()
	logger.Get().Info("etcd connected")

	tracer, err := bootstrap.Tracing(ctx, cfg, "skeenode-scheduler")
	if err != nil {
		logger.Get().Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer tracer.Shutdown(context.Background())

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "scheduler"
	}
	election := etcdCoord.NewElection("skeenode-leader")

	logger.Get().Info("campaigning for leadership", zap.String("candidate", hostname))
	if err := election.Campaign(ctx, hostname); err != nil {
		logger.Get().Fatal("election campaign failed", zap.Error(err))
	}
	logger.Get().Info("leadership acquired", zap.String("leader", hostname))

	schedCfg := cronschedule.DefaultConfig()
	if d, err := time.ParseDuration(cfg.SchedulerInterval); err == nil {
		schedCfg.CheckInterval = d
	}
	if d, err := time.ParseDuration(cfg.SchedulerTolerance); err == nil {
		schedCfg.Tolerance = d
	}

	dispatcher := cronschedule.NewRemoteDispatcher(db, queue)
	sched := cronschedule.New(schedCfg, db, dispatcher)

	logger.Get().Info("starting sweep loop")
	go sched.Run(ctx, election)

	logger.Get().Info("starting orphan reaper")
	go reaper.Run(ctx, reaper.DefaultConfig(), db, etcdCoord, election)

	sig := <-sigChan
	logger.Get().Info("received signal, shutting down", zap.String("signal", sig.String()))

	cancel()

	if err := election.Resign(context.Background()); err != nil {
		logger.Get().Warn("failed to resign leadership", zap.Error(err))
	} else {
		logger.Get().Info("leadership resigned")
	}

	logger.Get().Info("shutdown complete")
}
