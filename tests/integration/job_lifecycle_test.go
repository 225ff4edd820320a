package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"skeenode/pkg/agent"
	"skeenode/pkg/models"
	"skeenode/pkg/pipeline"
	"skeenode/pkg/store/postgres"
	"skeenode/pkg/store/redis"
)

// echoAgent is a deterministic in-process agent so these tests don't
// depend on any real LLM provider being reachable.
type echoAgent struct {
	fail bool
}

func (a *echoAgent) Name() string        { return "integration_echo" }
func (a *echoAgent) Description() string { return "echoes its payload back" }
func (a *echoAgent) Validate(payload map[string]interface{}) error { return nil }

func (a *echoAgent) Execute(ctx context.Context, payload map[string]interface{}, opts models.JobOptions) (agent.Result, error) {
	if a.fail {
		return agent.Result{}, fmt.Errorf("integration: simulated provider failure")
	}
	return agent.Result{Output: payload}, nil
}

// IntegrationTestSuite exercises the job pipeline, store, and cross-node
// queue against real Postgres and Redis instances.
type IntegrationTestSuite struct {
	suite.Suite
	store *postgres.PostgresStore
	queue *redis.Queue
}

// SetupSuite runs once before all tests
func (s *IntegrationTestSuite) SetupSuite() {
	if os.Getenv("SKIP_INTEGRATION_TESTS") == "true" {
		s.T().Skip("Skipping integration tests (SKIP_INTEGRATION_TESTS=true)")
	}

	gin.SetMode(gin.TestMode)

	dbHost := getEnv("TEST_DB_HOST", "localhost")
	dbPort := getEnv("TEST_DB_PORT", "5432")
	dbUser := getEnv("TEST_DB_USER", "skeenode")
	dbPass := getEnv("TEST_DB_PASS", "password")
	dbName := getEnv("TEST_DB_NAME", "skeenode_test")

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPass, dbName,
	)

	store, err := postgres.New(connStr)
	if err != nil {
		s.T().Skipf("Skipping integration tests: %v", err)
	}
	s.store = store

	redisAddr := fmt.Sprintf("%s:%s",
		getEnv("TEST_REDIS_HOST", "localhost"),
		getEnv("TEST_REDIS_PORT", "6379"),
	)
	queue, err := redis.New(redisAddr)
	if err != nil {
		s.T().Skipf("Skipping integration tests: %v", err)
	}
	s.queue = queue
}

// TearDownSuite runs once after all tests
func (s *IntegrationTestSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
	if s.queue != nil {
		s.queue.Close()
	}
}

func newPipeline(s *IntegrationTestSuite, a agent.Agent) *pipeline.Pipeline {
	agents := agent.NewRegistry()
	agents.Register(a)
	return pipeline.New(pipeline.Config{
		MaxConcurrentJobs: 2,
		NodeID:            "integration-test-node",
	}, s.store, agents, nil)
}

// TestJobLifecycle walks a job from submission through the pipeline to
// a persisted completed status.
func (s *IntegrationTestSuite) TestJobLifecycle() {
	ctx := context.Background()

	p := newPipeline(s, &echoAgent{})
	p.Start(ctx)
	defer p.Stop(5 * time.Second)

	job := &models.Job{
		AgentName: "integration_echo",
		OwnerID:   "integration-suite",
		Payload:   models.JSONMap{"greeting": "hello"},
		Options:   models.DefaultJobOptions(),
		Priority:  models.PriorityNormal,
		Status:    models.JobStatusPending,
		RunAt:     time.Now(),
	}

	err := s.store.CreateJob(ctx, job)
	require.NoError(s.T(), err, "failed to create job")

	err = p.Submit(ctx, job)
	require.NoError(s.T(), err, "failed to submit job")

	require.Eventually(s.T(), func() bool {
		got, err := s.store.GetJob(ctx, job.ID, "")
		return err == nil && got.Status == models.JobStatusCompleted
	}, 3*time.Second, 50*time.Millisecond, "job did not reach completed status")

	retrieved, err := s.store.GetJob(ctx, job.ID, "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "hello", retrieved.Result["greeting"])
}

// TestRetryBehavior verifies a retriable failure keeps the job in
// "running" status while bumping retry_count, and the job eventually
// fails terminally once retries are exhausted.
func (s *IntegrationTestSuite) TestRetryBehavior() {
	ctx := context.Background()

	p := newPipeline(s, &echoAgent{fail: true})
	p.Start(ctx)
	defer p.Stop(5 * time.Second)

	opts := models.DefaultJobOptions()
	opts.MaxRetries = 2

	job := &models.Job{
		AgentName: "integration_echo",
		OwnerID:   "integration-suite",
		Payload:   models.JSONMap{},
		Options:   opts,
		Priority:  models.PriorityNormal,
		Status:    models.JobStatusPending,
		RunAt:     time.Now(),
	}

	err := s.store.CreateJob(ctx, job)
	require.NoError(s.T(), err)

	err = p.Submit(ctx, job)
	require.NoError(s.T(), err)

	require.Eventually(s.T(), func() bool {
		got, err := s.store.GetJob(ctx, job.ID, "")
		return err == nil && got.Status == models.JobStatusFailed
	}, 15*time.Second, 100*time.Millisecond, "job did not reach a terminal failed status")

	retrieved, err := s.store.GetJob(ctx, job.ID, "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), opts.MaxRetries, retrieved.RetryCount)
}

// TestCrossNodeQueue exercises the Redis Streams transport a scheduler
// uses to hand a task to a worker node, independent of the pipeline.
func (s *IntegrationTestSuite) TestCrossNodeQueue() {
	ctx := context.Background()
	const group = "test-workers"

	require.NoError(s.T(), s.queue.EnsureGroup(ctx, group))

	job := &models.Job{
		AgentName: "integration_echo",
		OwnerID:   "integration-suite",
		Payload:   models.JSONMap{"n": 1},
		Options:   models.DefaultJobOptions(),
	}
	require.NoError(s.T(), s.store.CreateJob(ctx, job))

	task := pipeline.NewTask(job)
	require.NoError(s.T(), s.queue.Push(ctx, task))

	msgID, popped, err := s.queue.Pop(ctx, group, "test-consumer-1")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), popped, "pop returned no task")
	assert.Equal(s.T(), job.ID, popped.JobID)

	require.NoError(s.T(), s.queue.Ack(ctx, group, msgID))
}

// TestConcurrentSubmissions submits many jobs at once and verifies they
// all reach a terminal state, exercising the worker pool's bounded
// concurrency under load.
func (s *IntegrationTestSuite) TestConcurrentSubmissions() {
	ctx := context.Background()
	const numJobs = 10

	p := newPipeline(s, &echoAgent{})
	p.Start(ctx)
	defer p.Stop(5 * time.Second)

	for i := 0; i < numJobs; i++ {
		job := &models.Job{
			AgentName: "integration_echo",
			OwnerID:   "integration-suite",
			Payload:   models.JSONMap{"i": i},
			Options:   models.DefaultJobOptions(),
			Priority:  models.PriorityNormal,
			Status:    models.JobStatusPending,
			RunAt:     time.Now(),
		}
		require.NoError(s.T(), s.store.CreateJob(ctx, job))
		require.NoError(s.T(), p.Submit(ctx, job))
	}

	require.Eventually(s.T(), func() bool {
		snap := p.Snapshot()
		return snap.Completed+snap.Failed >= int64(numJobs)
	}, 10*time.Second, 100*time.Millisecond, "not all concurrent jobs finished")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// TestIntegration runs the integration test suite
func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}
