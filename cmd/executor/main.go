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
	"skeenode/pkg/logger"
	"skeenode/pkg/pipeline"
	"skeenode/pkg/store/postgres"
	"skeenode/pkg/store/redis"
)

const consumerGroup = "skeenode-workers"

func main() {
	cfg := config.LoadConfig()

	if _, err := logger.Init(logger.DefaultConfig("skeenode-executor")); err != nil {
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

	etcdCoord, err := etcd.NewEtcdCoordinator(cfg.EtcdEndpoints, cfg.LeaderElectionTTL)
	if err != nil {
		logger.Get().Fatal("failed to connect to etcd", zap.Error(err))
	}
	defer etcdCoord.Close()

	redisAddr := fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort)
	queue, err := redis.New(redisAddr)
	if err != nil {
		logger.Get().Fatal("failed to initialize redis queue", zap.Error(err))
	}
	defer queue.Close()

	if err := queue.EnsureGroup(ctx, consumerGroup); err != nil {
		logger.Get().Fatal("failed to ensure consumer group", zap.Error(err))
	}

	nodeID, err := os.Hostname()
	if err != nil || nodeID == "" {
		nodeID = "worker-" + time.Now().Format("150405")
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

	capacity := bootstrap.WorkerCapacity(cfg)
	logger.Get().Info("sizing worker pool", zap.Int("max_concurrent_jobs", capacity))

	tracer, err := bootstrap.Tracing(ctx, cfg, "skeenode-executor")
	if err != nil {
		logger.Get().Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer tracer.Shutdown(context.Background())

	p := pipeline.New(pipeline.Config{
		MaxConcurrentJobs: capacity,
		MaxQueueSize:      cfg.MaxQueueSize,
		RetryDelayBase:    cfg.RetryDelayBase,
		RetryDelayCap:     cfg.RetryDelayCap,
		NodeID:            nodeID,
		Logs:              logs,
		Tracer:            tracer,
	}, db, agents, nil)
	p.Start(ctx)

	go consumeLoop(ctx, queue, p, nodeID)

	logger.Get().Info("worker ready", zap.String("node_id", nodeID))

	sig := <-sigChan
	logger.Get().Info("received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := p.Stop(10 * time.Second); err != nil {
		logger.Get().Error("pipeline shutdown error", zap.Error(err))
	}

	logger.Get().Info("shutdown complete")
}

// consumeLoop drains tasks published to the cross-node queue by the API
// and scheduler processes, handing each to this node's local pipeline
// for priority-ordered execution. A task is acknowledged as soon as
// it's accepted into the pipeline, not when it finishes running — the
// durable record of success or failure lives on the job row itself,
// and a crash after acknowledgement does not redeliver the task. When
// the local ready queue is full, the message is left unacknowledged so
// the consumer group redelivers it once capacity frees up.
func consumeLoop(ctx context.Context, queue *redis.Queue, p *pipeline.Pipeline, nodeID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgID, task, err := queue.Pop(ctx, consumerGroup, nodeID)
		if err != nil {
			logger.Get().Warn("failed to pop task", zap.Error(err))
			continue
		}
		if task == nil {
			continue
		}

		if !p.Resume(task) {
			logger.Get().Warn("ready queue full, leaving task unacknowledged for redelivery",
				zap.String("job_id", task.JobID.String()))
			continue
		}

		if err := queue.Ack(ctx, consumerGroup, msgID); err != nil {
			logger.Get().Warn("failed to ack task", zap.String("job_id", task.JobID.String()), zap.Error(err))
		}
	}
}
