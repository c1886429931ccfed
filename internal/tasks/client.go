package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/illusia-ry-organization/illusia-ry/internal/events"
)

// Enqueuer pushes tasks onto the asynq queue. It satisfies the event bus's
// Scheduler so every emitted domain event gets a background dispatch job.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
}

func (e Enqueuer) enqueue(ctx context.Context, task *asynq.Task) error {
	if e.Client == nil {
		return nil
	}
	opts := []asynq.Option{}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("tasks: enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// Schedule enqueues a dispatch job for the event.
func (e Enqueuer) Schedule(ctx context.Context, ev events.Event) error {
	task, err := NewEventDispatchTask(ev)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task)
}

// EnqueueEmail queues an outbound email.
func (e Enqueuer) EnqueueEmail(ctx context.Context, p EmailPayload) error {
	task, err := NewEmailTask(p)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task)
}
