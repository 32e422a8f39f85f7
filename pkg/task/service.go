package task

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer publishes tasks for cmd/worker. The reward service holds it as an optional dependency.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type asynqEnqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps client. A nil client yields a nil Enqueuer.
func NewEnqueuer(client *asynq.Client) Enqueuer {
	if client == nil {
		return nil
	}
	return &asynqEnqueuer{client: client}
}

func (e *asynqEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	zap.L().Debug("task enqueued", zap.String("task_type", task.Type()), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return info, nil
}
