// Package redis provides the cross-node job transport: a Redis Stream
// that a submitting node (API or scheduler) publishes onto, and that
// every worker node's pipeline consumer group drains from. It sits
// above the in-process priority queue inside pkg/pipeline, not instead
// of it — a worker node pops a Task off this stream and then calls
// Pipeline.Submit, which is what actually orders it for local
// execution.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"skeenode/pkg/pipeline"
)

const streamKeyPending = "jobs:queue:pending"

type Queue struct {
	client *redis.Client
}

// New connects to Redis and verifies reachability.
func New(addr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Push publishes a task onto the pending stream for any worker node's
// consumer group to pick up.
func (q *Queue) Push(ctx context.Context, t *pipeline.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKeyPending,
		Values: map[string]interface{}{
			"payload": payload,
			"job_id":  t.JobID.String(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to push task: %w", err)
	}
	return nil
}

// EnsureGroup creates the consumer group if it doesn't already exist.
func (q *Queue) EnsureGroup(ctx context.Context, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, streamKeyPending, group, "$").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Pop blocks up to 2s for the next task available to this consumer.
// A nil task with a nil error means the wait simply timed out.
func (q *Queue) Pop(ctx context.Context, group, consumer string) (msgID string, task *pipeline.Task, err error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{streamKeyPending, ">"},
		Count:    1,
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil, nil
		}
		return "", nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return "", nil, nil
	}

	msg := streams[0].Messages[0]
	payloadStr, ok := msg.Values["payload"].(string)
	if !ok {
		return msg.ID, nil, fmt.Errorf("invalid payload format")
	}

	var t pipeline.Task
	if err := json.Unmarshal([]byte(payloadStr), &t); err != nil {
		return msg.ID, nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return msg.ID, &t, nil
}

// Ack acknowledges a message as handled, removing it from the group's
// pending entries list.
func (q *Queue) Ack(ctx context.Context, group, msgID string) error {
	return q.client.XAck(ctx, streamKeyPending, group, msgID).Err()
}
