package cronschedule

import (
	"context"
	"fmt"

	"skeenode/pkg/models"
	"skeenode/pkg/pipeline"
	"skeenode/pkg/store"
)

// QueuePublisher hands a task to the cross-node transport for whichever
// worker node picks it up next. Implemented by store/redis.Queue.
type QueuePublisher interface {
	Push(ctx context.Context, t *pipeline.Task) error
}

// RemoteDispatcher implements Pipeline by persisting the job and
// publishing it to a cross-node queue instead of running it in-process.
// It is what ties the scheduler process, which never executes jobs
// itself, to a separate fleet of worker nodes.
type RemoteDispatcher struct {
	jobs  store.JobStore
	queue QueuePublisher
}

// NewRemoteDispatcher builds a RemoteDispatcher.
func NewRemoteDispatcher(jobs store.JobStore, queue QueuePublisher) *RemoteDispatcher {
	return &RemoteDispatcher{jobs: jobs, queue: queue}
}

// Submit persists job and publishes it for a worker node to execute.
func (d *RemoteDispatcher) Submit(ctx context.Context, job *models.Job) error {
	if err := d.jobs.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("dispatch: persist job: %w", err)
	}
	if err := d.queue.Push(ctx, pipeline.NewTask(job)); err != nil {
		return fmt.Errorf("dispatch: publish task: %w", err)
	}
	return nil
}
